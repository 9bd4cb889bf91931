package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/orghub/pkg/apperror"
)

// HeaderMaintenanceKey は内部メンテナンスAPIの認証キーを渡すヘッダー。
const HeaderMaintenanceKey = "X-Maintenance-Key"

// MaintenanceKey は内部メンテナンスAPIを保護するGinミドルウェアを返す。
// keyが空の場合は認証を行わない。一致しない場合はAuthorizationFailureを返す。
func MaintenanceKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderMaintenanceKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			apperror.Respond(c, apperror.Authorization("メンテナンスキーが正しくありません"))
			return
		}
		c.Next()
	}
}
