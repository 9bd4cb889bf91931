// API Gatewayサービスのエントリポイント。
// トークン検証とリクエストルーティングを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nao1215/orghub/internal/gateway"
	"github.com/nao1215/orghub/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("Gatewayの設定の読み込みに失敗: %v", err)
	}

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s (member=%s, feedback=%s)", cfg.Port, cfg.MemberServiceURL, cfg.FeedbackServiceURL)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
