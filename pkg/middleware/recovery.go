package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/orghub/pkg/apperror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時に内容をログに出力し、Internalのエンベロープを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] request_id=%s %s %s: %v", GetRequestID(c), c.Request.Method, c.Request.URL.Path, r)
				apperror.Respond(c, apperror.Internal("内部サーバーエラーが発生しました"))
			}
		}()
		c.Next()
	}
}
