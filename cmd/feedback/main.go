// フィードバックサービスのエントリポイント。
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nao1215/orghub/internal/feedback"
	"github.com/nao1215/orghub/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFeedback()
	if err != nil {
		log.Fatalf("フィードバックサービスの設定の読み込みに失敗: %v", err)
	}

	server, err := feedback.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("フィードバックサーバーの初期化に失敗: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("フィードバックサービスの起動に失敗: %v", err)
	}
}
