// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// Gatewayが各バックエンドを呼び出す際に使用する。すべての呼び出しに
// タイムアウトを設定し、リトライは行わない。到達できなかった場合は
// ErrUnavailableで呼び出し元に知らせる。
package httpclient
