package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/orghub/pkg/apperror"
	"github.com/nao1215/orghub/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

func newTestAuthority(t *testing.T) *token.Authority {
	t.Helper()
	authority, err := token.NewAuthority(testSecret, "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewAuthority()でエラーが発生: %v", err)
	}
	return authority
}

// TestBearerAuth はBearerAuthミドルウェアを検証する。
func TestBearerAuth(t *testing.T) {
	t.Parallel()

	authority := newTestAuthority(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	valid, err := authority.Issue("alice", now)
	if err != nil {
		t.Fatalf("Issue()でエラーが発生: %v", err)
	}

	newRouter := func(calls *int) *gin.Engine {
		router := gin.New()
		router.Use(BearerAuth(authority, func() time.Time { return now }))
		router.GET("/protected", func(c *gin.Context) {
			*calls++
			c.JSON(http.StatusOK, gin.H{"login": GetLogin(c), "token": GetToken(c)})
		})
		return router
	}

	t.Run("有効なトークンでログイン名と生トークンが設定されること", func(t *testing.T) {
		t.Parallel()

		calls := 0
		router := newRouter(&calls)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスのデコードに失敗: %v", err)
		}
		if body["login"] != "alice" {
			t.Errorf("login = %q, want %q", body["login"], "alice")
		}
		if body["token"] != valid {
			t.Errorf("token = %q, want %q", body["token"], valid)
		}
	})

	t.Run("スキーム名の大文字小文字を区別しないこと", func(t *testing.T) {
		t.Parallel()

		calls := 0
		router := newRouter(&calls)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "bearer "+valid)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	expired, err := authority.Issue("alice", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue()でエラーが発生: %v", err)
	}
	other, err := token.NewAuthority("another-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewAuthority()でエラーが発生: %v", err)
	}
	forged, err := other.Issue("alice", now)
	if err != nil {
		t.Fatalf("Issue()でエラーが発生: %v", err)
	}

	failures := []struct {
		name   string
		header string
	}{
		{name: "ヘッダー無し", header: ""},
		{name: "Bearer以外のスキーム", header: "Basic " + valid},
		{name: "トークンが空", header: "Bearer "},
		{name: "スキームのみ", header: "Bearer"},
		{name: "不正な形式", header: "Bearer not-a-jwt"},
		{name: "期限切れ", header: "Bearer " + expired},
		{name: "別のシークレットで署名", header: "Bearer " + forged},
	}
	for _, tt := range failures {
		t.Run(tt.name+"の場合はAuthenticationFailureでハンドラが呼ばれないこと", func(t *testing.T) {
			t.Parallel()

			calls := 0
			router := newRouter(&calls)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != apperror.Status {
				t.Errorf("ステータスコード = %d, want %d", w.Code, apperror.Status)
			}
			var env apperror.Envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("レスポンスのデコードに失敗: %v", err)
			}
			if env.ErrorCode != apperror.CodeAuthentication {
				t.Errorf("error_code = %d, want %d", env.ErrorCode, apperror.CodeAuthentication)
			}
			if env.Message != invalidCredentialsMessage {
				t.Errorf("message = %q, want %q", env.Message, invalidCredentialsMessage)
			}
			if calls != 0 {
				t.Errorf("ハンドラの呼び出し回数 = %d, want 0", calls)
			}
		})
	}
}

// TestBearerToken はBearerToken関数を検証する。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "  Bearer   abc  ", want: "abc", ok: true},
		{header: "BEARER abc", want: "abc", ok: true},
		{header: "Token abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
