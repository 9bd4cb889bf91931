// Package feedback はフィードバックサービスを実装する。
//
// フィードバックの投稿者は検証済みトークンのログイン名であり、リクエストボディでは指定できない。
// 同じ投稿者が同じ本文の有効なフィードバックを2件持つことはできない。
package feedback
