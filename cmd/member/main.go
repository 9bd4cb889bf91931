// メンバーサービスのエントリポイント。
// メンバーの管理とログイン名・パスワードによるトークン発行を担当する。
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nao1215/orghub/internal/member"
	"github.com/nao1215/orghub/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadMember()
	if err != nil {
		log.Fatalf("メンバーサービスの設定の読み込みに失敗: %v", err)
	}

	server, err := member.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("メンバーサーバーの初期化に失敗: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("メンバーサービスの起動に失敗: %v", err)
	}
}
