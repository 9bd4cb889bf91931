package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// respondWith はerrをRespondで返すルーターを構築し、レスポンスを返すヘルパー関数。
func respondWith(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		Respond(c, err)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	return w
}

// parseEnvelope はレスポンスボディをmapにデコードするヘルパー関数。
func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// TestCodes はエラーコードの値が固定であることを検証する。
func TestCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
		name string
	}{
		{CodeInternal, 1000, "INTERNAL_ERROR"},
		{CodeValidation, 1001, "VALIDATION_ERROR"},
		{CodeNotFound, 1002, "NOT_FOUND_ERROR"},
		{CodeDuplicateData, 1003, "DUPLICATE_DATA_ERROR"},
		{CodeDatabase, 1004, "DATABASE_ERROR"},
		{CodeNoDataFound, 1005, "NO_DATA_FOUND_ERROR"},
		{CodeConnection, 1006, "CONNECTION_ERROR"},
		{CodeAuthentication, 1007, "AUTHENTICATION_ERROR"},
		{CodeAuthorization, 1008, "AUTHORIZATION_ERROR"},
		{CodeRateLimit, 1009, "RATE_LIMIT_ERROR"},
		{CodeMemberNotFound, 2000, "MEMBER_NOT_FOUND"},
		{CodeFeedbackNotFound, 3000, "FEEDBACK_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if int(tt.code) != tt.want {
				t.Errorf("code = %d, want %d", int(tt.code), tt.want)
			}
			if tt.code.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.code.String(), tt.name)
			}
			if !tt.code.Known() {
				t.Errorf("Known() = false, want true")
			}
		})
	}

	t.Run("未知のコードはKnownがfalseになること", func(t *testing.T) {
		t.Parallel()
		if Code(4242).Known() {
			t.Error("Known() = true, want false")
		}
		if got := Code(4242).String(); got != "CODE_4242" {
			t.Errorf("String() = %q, want %q", got, "CODE_4242")
		}
	})
}

// TestErrorHelpers はエラー生成とアンラップを検証する。
func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	t.Run("ラップされたエラーからタクソノミーエラーを取り出せること", func(t *testing.T) {
		t.Parallel()

		base := NotFound("メンバーが見つかりません")
		wrapped := fmt.Errorf("handler: %w", base)

		got, ok := As(wrapped)
		if !ok {
			t.Fatal("As() = false, want true")
		}
		if got.Code != CodeNotFound {
			t.Errorf("Code = %d, want %d", got.Code, CodeNotFound)
		}
		if !HasCode(wrapped, CodeNotFound) {
			t.Error("HasCode() = false, want true")
		}
		if HasCode(errors.New("plain"), CodeNotFound) {
			t.Error("通常のエラーでHasCode() = true")
		}
	})

	t.Run("WithCauseは元のエラーを変更しないこと", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		base := Database("保存に失敗しました")
		withCause := base.WithCause(cause)

		if base.Unwrap() != nil {
			t.Error("元のエラーに原因が設定された")
		}
		if !errors.Is(withCause, cause) {
			t.Error("errors.Is(withCause, cause) = false")
		}
	})

	t.Run("DuplicateDataは衝突したフィールドをdetailsに持つこと", func(t *testing.T) {
		t.Parallel()

		err := DuplicateData("ログインは既に使用されています", "login", "alice")
		if err.Details["field"] != "login" {
			t.Errorf("details.field = %v, want login", err.Details["field"])
		}
		if err.Details["value"] != "alice" {
			t.Errorf("details.value = %v, want alice", err.Details["value"])
		}
	})

	t.Run("WithDetailは元のdetailsを変更しないこと", func(t *testing.T) {
		t.Parallel()

		base := Validation("不正な入力", map[string]any{"a": 1})
		extended := base.WithDetail("b", 2)
		if _, ok := base.Details["b"]; ok {
			t.Error("元のdetailsが変更された")
		}
		if extended.Details["a"] != 1 || extended.Details["b"] != 2 {
			t.Errorf("details = %v", extended.Details)
		}
	})
}

// TestRespond はエンベロープ応答を検証する。
func TestRespond(t *testing.T) {
	t.Parallel()

	t.Run("タクソノミーエラーは固定ステータスでエンベロープを返すこと", func(t *testing.T) {
		t.Parallel()

		w := respondWith(t, DuplicateData("メールアドレスは既に使用されています", "email", "a@example.com"))

		if w.Code != Status {
			t.Errorf("ステータスコード = %d, want %d", w.Code, Status)
		}
		body := parseEnvelope(t, w)
		if body["error_code"] != float64(CodeDuplicateData) {
			t.Errorf("error_code = %v, want %d", body["error_code"], CodeDuplicateData)
		}
		if body["message"] != "メールアドレスは既に使用されています" {
			t.Errorf("message = %v", body["message"])
		}
		details, ok := body["details"].(map[string]any)
		if !ok {
			t.Fatalf("detailsがオブジェクトではない: %v", body["details"])
		}
		if details["field"] != "email" {
			t.Errorf("details.field = %v, want email", details["field"])
		}
	})

	t.Run("未分類エラーは内部情報を含まないInternalになること", func(t *testing.T) {
		t.Parallel()

		w := respondWith(t, errors.New("pq: connection reset by peer"))

		if w.Code != Status {
			t.Errorf("ステータスコード = %d, want %d", w.Code, Status)
		}
		body := parseEnvelope(t, w)
		if body["error_code"] != float64(CodeInternal) {
			t.Errorf("error_code = %v, want %d", body["error_code"], CodeInternal)
		}
		if body["message"] != internalMessage {
			t.Errorf("message = %v, want %q", body["message"], internalMessage)
		}
	})

	t.Run("原因エラーはレスポンスに含まれないこと", func(t *testing.T) {
		t.Parallel()

		w := respondWith(t, Database("保存に失敗しました").WithCause(errors.New("secret sql detail")))

		if got := w.Body.String(); got == "" || strings.Contains(got, "secret sql detail") {
			t.Errorf("原因がレスポンスに漏れている: %s", got)
		}
	})

	t.Run("ConnectionFailureは転送失敗用のステータスになること", func(t *testing.T) {
		t.Parallel()

		w := respondWith(t, Connection("サービスに接続できません", "member"))
		if w.Code != TransportStatus {
			t.Errorf("ステータスコード = %d, want %d", w.Code, TransportStatus)
		}
	})

	t.Run("認証失敗ではWWW-Authenticateヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		w := respondWith(t, Authentication("認証情報が無効です"))
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
		}
	})
}

// TestDecode は上流レスポンスのエンベロープ解釈を検証する。
func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("正しいエンベロープを解釈できること", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"error_code":1002,"message":"見つかりません","details":{"id":"x"}}`)
		got, ok := Decode(Status, body)
		if !ok {
			t.Fatal("Decode() = false, want true")
		}
		if got.Code != CodeNotFound {
			t.Errorf("Code = %d, want %d", got.Code, CodeNotFound)
		}
		if got.Details["id"] != "x" {
			t.Errorf("details.id = %v, want x", got.Details["id"])
		}
	})

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"ステータスが異なる", http.StatusInternalServerError, `{"error_code":1002,"message":"x","details":{}}`},
		{"JSONではない", Status, `Bad Request`},
		{"error_codeが無い", Status, `{"message":"x"}`},
		{"messageが無い", Status, `{"error_code":1002}`},
		{"未知のコード", Status, `{"error_code":9999,"message":"x","details":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合は解釈しないこと", func(t *testing.T) {
			t.Parallel()
			if _, ok := Decode(tt.status, []byte(tt.body)); ok {
				t.Error("Decode() = true, want false")
			}
		})
	}
}
