// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として機能する。
// トークン発行はメンバーサービスに委譲し、それ以外のルートではBearerトークンを
// 検証してから同じパスで内部サービスに転送する。検証済みトークンは転送時に
// 付け直され、内部サービスも独自に再検証する。
//
// 内部サービスの2xx応答とエラーエンベロープはそのまま返す。
// 接続できない場合や想定外の応答はConnectionFailure（HTTP 502）に変換する。
package gateway
