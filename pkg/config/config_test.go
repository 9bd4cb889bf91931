package config

import (
	"testing"
	"time"
)

// TestLoadGateway はGateway設定の読み込みを検証する。
// t.Setenvを使用するため並列実行しない。
func TestLoadGateway(t *testing.T) {
	t.Run("環境変数が無い場合はデフォルト値になること", func(t *testing.T) {
		cfg, err := LoadGateway()
		if err != nil {
			t.Fatalf("LoadGateway()でエラーが発生: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.Secret != "dev-secret-key" {
			t.Errorf("Secret = %q, want %q", cfg.Secret, "dev-secret-key")
		}
		if cfg.Algorithm != "HS256" {
			t.Errorf("Algorithm = %q, want %q", cfg.Algorithm, "HS256")
		}
		if cfg.TTL() != 30*time.Minute {
			t.Errorf("TTL() = %v, want %v", cfg.TTL(), 30*time.Minute)
		}
		if cfg.UpstreamTimeout != 10*time.Second {
			t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 10*time.Second)
		}
		if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
			t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
		}
	})

	t.Run("環境変数の値が反映されること", func(t *testing.T) {
		t.Setenv("SECRET_KEY", "prod-secret")
		t.Setenv("ALGORITHM", "HS512")
		t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
		t.Setenv("MEMBER_SERVICE_URL", "http://member:8002")
		t.Setenv("FEEDBACK_SERVICE_URL", "http://feedback:8001")
		t.Setenv("UPSTREAM_TIMEOUT", "3s")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example,http://b.example")

		cfg, err := LoadGateway()
		if err != nil {
			t.Fatalf("LoadGateway()でエラーが発生: %v", err)
		}
		if cfg.Secret != "prod-secret" || cfg.Algorithm != "HS512" {
			t.Errorf("Auth = %+v", cfg.Auth)
		}
		if cfg.TTL() != 15*time.Minute {
			t.Errorf("TTL() = %v, want %v", cfg.TTL(), 15*time.Minute)
		}
		if cfg.MemberServiceURL != "http://member:8002" {
			t.Errorf("MemberServiceURL = %q", cfg.MemberServiceURL)
		}
		if cfg.UpstreamTimeout != 3*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 3s", cfg.UpstreamTimeout)
		}
		if len(cfg.AllowedOrigins) != 2 {
			t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
		}
	})

	t.Run("非対称アルゴリズムはエラーになること", func(t *testing.T) {
		t.Setenv("ALGORITHM", "RS256")
		if _, err := LoadGateway(); err == nil {
			t.Error("LoadGateway()がエラーを返さなかった")
		}
	})

	t.Run("相対URLはエラーになること", func(t *testing.T) {
		t.Setenv("MEMBER_SERVICE_URL", "member:8002/path")
		if _, err := LoadGateway(); err == nil {
			t.Error("LoadGateway()がエラーを返さなかった")
		}
	})

	t.Run("有効期間が0の場合はエラーになること", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "0")
		if _, err := LoadGateway(); err == nil {
			t.Error("LoadGateway()がエラーを返さなかった")
		}
	})
}

// TestLoadMember はメンバーサービス設定の読み込みを検証する。
func TestLoadMember(t *testing.T) {
	t.Run("デフォルト値で読み込めること", func(t *testing.T) {
		cfg, err := LoadMember()
		if err != nil {
			t.Fatalf("LoadMember()でエラーが発生: %v", err)
		}
		if cfg.Port != "8002" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8002")
		}
		if cfg.DatabasePath != "/data/member.db" {
			t.Errorf("DatabasePath = %q", cfg.DatabasePath)
		}
	})

	t.Run("初期メンバーのパスワードのみ欠けている場合はエラーになること", func(t *testing.T) {
		t.Setenv("BOOTSTRAP_LOGIN", "admin")
		if _, err := LoadMember(); err == nil {
			t.Error("LoadMember()がエラーを返さなかった")
		}
	})

	t.Run("範囲外のbcryptコストはエラーになること", func(t *testing.T) {
		t.Setenv("BCRYPT_COST", "64")
		if _, err := LoadMember(); err == nil {
			t.Error("LoadMember()がエラーを返さなかった")
		}
	})
}

// TestLoadFeedback はフィードバックサービス設定の読み込みを検証する。
func TestLoadFeedback(t *testing.T) {
	t.Run("DATABASE_PATHが反映されること", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", "/tmp/feedback.db")
		t.Setenv("PORT", "9001")
		cfg, err := LoadFeedback()
		if err != nil {
			t.Fatalf("LoadFeedback()でエラーが発生: %v", err)
		}
		if cfg.DatabasePath != "/tmp/feedback.db" || cfg.Port != "9001" {
			t.Errorf("cfg = %+v", cfg)
		}
	})
}
