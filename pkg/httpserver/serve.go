// Package httpserver は各サービス共通のHTTPサーバー起動処理を提供する。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

const (
	// readHeaderTimeout はリクエストヘッダー読み取りのタイムアウト。
	readHeaderTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待機上限。
	shutdownTimeout = 10 * time.Second
)

// Serve は指定ポートでhandlerを公開し、ctxが終了するまで待つ。
// ctx終了時は処理中のリクエストの完了を待ってから停止する。
func Serve(ctx context.Context, service, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	log.Printf("[%s] サービスを起動します: %s", service, srv.Addr)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		log.Printf("[%s] サービスを停止しました", service)
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	}
}
