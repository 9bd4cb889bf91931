package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/orghub/pkg/apperror"
	"github.com/nao1215/orghub/pkg/token"
)

const (
	// contextKeyLogin は検証済みログイン名を格納するコンテキストキー。
	contextKeyLogin = "login"
	// contextKeyToken は検証済みの生トークンを格納するコンテキストキー。
	contextKeyToken = "bearer_token"
)

// invalidCredentialsMessage は認証失敗時の共通メッセージ。
// 失敗理由（署名不正・期限切れ等）は外部に区別させない。
const invalidCredentialsMessage = "認証情報が無効です"

// Verifier はトークンを検証するインターフェース。*token.Authorityが実装する。
type Verifier interface {
	Verify(tokenString string, now time.Time) (token.Principal, error)
}

// BearerAuth はAuthorizationヘッダーのBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにログイン名と生トークンを設定する。
// 失敗した場合はAuthenticationFailureのエンベロープを返し、後続のハンドラは実行しない。
// nowは検証時刻を返す関数で、通常はtime.Nowを渡す。
func BearerAuth(verifier Verifier, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperror.Respond(c, apperror.Authentication(invalidCredentialsMessage))
			return
		}

		principal, err := verifier.Verify(tokenString, now())
		if err != nil {
			apperror.Respond(c, apperror.Authentication(invalidCredentialsMessage))
			return
		}

		c.Set(contextKeyLogin, principal.Login)
		c.Set(contextKeyToken, tokenString)
		c.Next()
	}
}

// BearerToken はAuthorizationヘッダーの値からトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func BearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// GetLogin はGinコンテキストから検証済みログイン名を取得する。
// BearerAuthミドルウェアが事前に適用されている必要がある。
func GetLogin(c *gin.Context) string {
	return c.GetString(contextKeyLogin)
}

// GetToken はGinコンテキストから検証済みの生トークンを取得する。
func GetToken(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}
