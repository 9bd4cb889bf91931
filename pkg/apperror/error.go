package apperror

import (
	"errors"
	"fmt"
)

// Error はタクソノミーに分類されたエラー。
// Codeがエラー種別を決定し、Messageは発生箇所ごとに変わってよい。
type Error struct {
	// Code はエラー種別のコード。
	Code Code
	// Message は利用者向けのメッセージ。
	Message string
	// Details は構造化された補足情報（重複したフィールド名など）。
	Details map[string]any
	// cause は内部の原因エラー。エンベロープには含めない。
	cause error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s(%d): %s: %v", e.Code, int(e.Code), e.Message, e.cause)
	}
	return fmt.Sprintf("%s(%d): %s", e.Code, int(e.Code), e.Message)
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause は原因エラーを保持したコピーを返す。
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithDetail は補足情報を1件追加したコピーを返す。
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New は指定コードのエラーを生成する。
func New(code Code, message string, details map[string]any) *Error {
	if details == nil {
		details = map[string]any{}
	}
	return &Error{Code: code, Message: message, Details: details}
}

// Internal は内部エラーを生成する。
func Internal(message string) *Error { return New(CodeInternal, message, nil) }

// Validation は入力検証エラーを生成する。
func Validation(message string, details map[string]any) *Error {
	return New(CodeValidation, message, details)
}

// NotFound はリソース不在エラーを生成する。
func NotFound(message string) *Error { return New(CodeNotFound, message, nil) }

// DuplicateData は一意制約違反エラーを生成する。fieldには衝突したフィールド名を指定する。
func DuplicateData(message, field string, value any) *Error {
	return New(CodeDuplicateData, message, map[string]any{"field": field, "value": value})
}

// Database はストア操作の失敗を生成する。
func Database(message string) *Error { return New(CodeDatabase, message, nil) }

// NoDataFound は有効なレコードが0件であることを表すエラーを生成する。
func NoDataFound(message string) *Error { return New(CodeNoDataFound, message, nil) }

// Connection は上流サービスへの接続失敗を表すエラーを生成する。
func Connection(message, service string) *Error {
	return New(CodeConnection, message, map[string]any{"service": service})
}

// Authentication は認証失敗を生成する。
func Authentication(message string) *Error { return New(CodeAuthentication, message, nil) }

// Authorization は認可失敗を生成する。
func Authorization(message string) *Error { return New(CodeAuthorization, message, nil) }

// RateLimit はレート制限超過を生成する。
func RateLimit(message string) *Error { return New(CodeRateLimit, message, nil) }

// As はerrをタクソノミーエラーとして取り出す。
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode はerrが指定コードのタクソノミーエラーかを返す。
func HasCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
