// Package config は各サービスの設定を環境変数から読み込む。
//
// 設定は起動時に一度だけ構築し、値として各コンポーネントへ渡す。
// 実行中に変更されることはない。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/orghub/pkg/token"
)

// Auth はトークンの発行・検証に関する設定。全サービスで共通。
type Auth struct {
	// Secret は署名用の共有秘密鍵。
	Secret string `env:"SECRET_KEY" envDefault:"dev-secret-key"`
	// Algorithm は署名アルゴリズム（HS256/HS384/HS512）。
	Algorithm string `env:"ALGORITHM" envDefault:"HS256"`
	// ExpireMinutes はトークンの有効期間（分）。
	ExpireMinutes int `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
}

// TTL はトークンの有効期間を返す。
func (a Auth) TTL() time.Duration {
	return time.Duration(a.ExpireMinutes) * time.Minute
}

// Authority は設定からトークンAuthorityを生成する。
func (a Auth) Authority() (*token.Authority, error) {
	return token.NewAuthority(a.Secret, a.Algorithm, a.TTL())
}

// Gateway はAPI Gatewayの設定。
type Gateway struct {
	Auth
	// Port はリッスンポート。
	Port string `env:"PORT" envDefault:"8080"`
	// MemberServiceURL はメンバーサービスのベースURL。
	MemberServiceURL string `env:"MEMBER_SERVICE_URL" envDefault:"http://localhost:8002"`
	// FeedbackServiceURL はフィードバックサービスのベースURL。
	FeedbackServiceURL string `env:"FEEDBACK_SERVICE_URL" envDefault:"http://localhost:8001"`
	// UpstreamTimeout は上流サービス呼び出しのタイムアウト。
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	// AllowedOrigins はCORSで許可するオリジン。"*"はすべてを許可する。
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Member はメンバーサービスの設定。
type Member struct {
	Auth
	// Port はリッスンポート。
	Port string `env:"PORT" envDefault:"8002"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `env:"DATABASE_PATH" envDefault:"/data/member.db"`
	// MaintenanceKey は内部メンテナンスAPIの認証キー。空の場合は認証しない。
	MaintenanceKey string `env:"MAINTENANCE_KEY"`
	// BootstrapLogin は起動時に作成する初期メンバーのログイン名。
	BootstrapLogin string `env:"BOOTSTRAP_LOGIN"`
	// BootstrapPassword は初期メンバーのパスワード。
	BootstrapPassword string `env:"BOOTSTRAP_PASSWORD"`
	// BootstrapEmail は初期メンバーのメールアドレス。
	BootstrapEmail string `env:"BOOTSTRAP_EMAIL" envDefault:"admin@localhost"`
	// PasswordCost はパスワードハッシュのbcryptコスト。
	PasswordCost int `env:"BCRYPT_COST" envDefault:"10"`
}

// Feedback はフィードバックサービスの設定。
type Feedback struct {
	Auth
	// Port はリッスンポート。
	Port string `env:"PORT" envDefault:"8001"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `env:"DATABASE_PATH" envDefault:"/data/feedback.db"`
	// MaintenanceKey は内部メンテナンスAPIの認証キー。空の場合は認証しない。
	MaintenanceKey string `env:"MAINTENANCE_KEY"`
}

// LoadGateway は環境変数からGatewayの設定を読み込む。
func LoadGateway() (Gateway, error) {
	var cfg Gateway
	if err := parse(&cfg); err != nil {
		return Gateway{}, err
	}
	return cfg, cfg.Validate()
}

// LoadMember は環境変数からメンバーサービスの設定を読み込む。
func LoadMember() (Member, error) {
	var cfg Member
	if err := parse(&cfg); err != nil {
		return Member{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFeedback は環境変数からフィードバックサービスの設定を読み込む。
func LoadFeedback() (Feedback, error) {
	var cfg Feedback
	if err := parse(&cfg); err != nil {
		return Feedback{}, err
	}
	return cfg, cfg.Validate()
}

// parse は環境変数をtargetに読み込む。
func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return nil
}

// Validate は認証設定の整合性を検証する。
func (a Auth) Validate() error {
	if _, err := a.Authority(); err != nil {
		return fmt.Errorf("認証設定が不正です: %w", err)
	}
	return nil
}

// Validate はGateway設定の整合性を検証する。
func (g Gateway) Validate() error {
	if err := g.Auth.Validate(); err != nil {
		return err
	}
	if g.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUTは正の値である必要があります: %s", g.UpstreamTimeout)
	}
	for name, raw := range map[string]string{
		"MEMBER_SERVICE_URL":   g.MemberServiceURL,
		"FEEDBACK_SERVICE_URL": g.FeedbackServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%sが不正です: %q", name, raw)
		}
	}
	return nil
}

// Validate はメンバーサービス設定の整合性を検証する。
func (m Member) Validate() error {
	if err := m.Auth.Validate(); err != nil {
		return err
	}
	if m.DatabasePath == "" {
		return errors.New("DATABASE_PATHが空です")
	}
	if (m.BootstrapLogin == "") != (m.BootstrapPassword == "") {
		return errors.New("BOOTSTRAP_LOGINとBOOTSTRAP_PASSWORDは両方指定する必要があります")
	}
	if m.PasswordCost < bcrypt.MinCost || m.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COSTは%dから%dの範囲で指定してください: %d", bcrypt.MinCost, bcrypt.MaxCost, m.PasswordCost)
	}
	return nil
}

// Validate はフィードバックサービス設定の整合性を検証する。
func (f Feedback) Validate() error {
	if err := f.Auth.Validate(); err != nil {
		return err
	}
	if f.DatabasePath == "" {
		return errors.New("DATABASE_PATHが空です")
	}
	return nil
}
