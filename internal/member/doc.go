// Package member はメンバーサービスを実装する。
//
// メンバーの作成・取得・論理削除と、ログイン名とパスワードによるトークン発行を担当する。
// ログイン名とメールアドレスは論理削除済みのメンバーを含めて一意であり、
// 事前確認をすり抜けた書き込み時の衝突も同じDuplicateDataとして返す。
//
// 有効なメンバーが0件の一覧取得はNoDataFoundとなる。
// /internal/members/{id}/hard のみが物理削除を行い、Gatewayからは公開しない。
package member
