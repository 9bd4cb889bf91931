// Package apperror は全サービス共通のエラー分類（タクソノミー）を提供する。
//
// エラー種別ごとに固定の数値コードを持ち、サービス境界では
// {"error_code", "message", "details"} 形式のエンベロープとして返す。
// クライアントやGatewayはHTTPステータスではなくerror_codeで分岐する。
package apperror
