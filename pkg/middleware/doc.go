// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの検証、リクエストIDとアクセスログ、パニックリカバリ、
// CORS設定など、全サービスで共通して使用するミドルウェアを含む。
// エラーはすべてapperrorのエンベロープとして返す。
package middleware
