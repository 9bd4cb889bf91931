package apperror

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// Status はタクソノミーエラーで常に使用するHTTPステータス。
	Status = http.StatusBadRequest
	// TransportStatus はGatewayが上流に到達できなかった場合のHTTPステータス。
	TransportStatus = http.StatusBadGateway
)

// internalMessage は未分類エラーを外部に返す際の固定メッセージ。
const internalMessage = "内部エラーが発生しました"

// Envelope はエラーをサービス境界越しに伝えるJSON構造。
type Envelope struct {
	// ErrorCode はエラー種別のコード。
	ErrorCode Code `json:"error_code"`
	// Message は利用者向けのメッセージ。
	Message string `json:"message"`
	// Details は構造化された補足情報。
	Details map[string]any `json:"details"`
}

// Envelope はエラーをエンベロープに変換する。
func (e *Error) Envelope() Envelope {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return Envelope{ErrorCode: e.Code, Message: e.Message, Details: details}
}

// StatusFor はコードに対応するHTTPステータスを返す。
// ConnectionFailureのみ転送失敗として区別する。
func StatusFor(code Code) int {
	if code == CodeConnection {
		return TransportStatus
	}
	return Status
}

// Respond はerrをエンベロープとしてレスポンスし、以降のハンドラを中断する。
// タクソノミーに分類されていないエラーはログに記録し、Internalとして返す。
func Respond(c *gin.Context, err error) {
	appErr, ok := As(err)
	if !ok {
		log.Printf("未分類エラー: method=%s, path=%s, error=%v", c.Request.Method, c.Request.URL.Path, err)
		appErr = Internal(internalMessage)
	} else if appErr.Unwrap() != nil {
		log.Printf("エラー応答: method=%s, path=%s, code=%d, cause=%v", c.Request.Method, c.Request.URL.Path, appErr.Code, appErr.Unwrap())
	}

	if appErr.Code == CodeAuthentication {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(StatusFor(appErr.Code), appErr.Envelope())
}

// Decode は上流サービスのレスポンスをエンベロープとして解釈する。
// タクソノミーのステータスかつ既知のコードを持つ場合のみ成功する。
func Decode(status int, body []byte) (*Error, bool) {
	if status != Status {
		return nil, false
	}

	var raw struct {
		ErrorCode *Code          `json:"error_code"`
		Message   *string        `json:"message"`
		Details   map[string]any `json:"details"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if raw.ErrorCode == nil || raw.Message == nil || !raw.ErrorCode.Known() {
		return nil, false
	}
	return New(*raw.ErrorCode, *raw.Message, raw.Details), true
}
