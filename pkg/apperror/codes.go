package apperror

import "strconv"

// Code はエラー種別を表す固定の数値コード。
// 一度割り当てたコードの意味は変更しないこと。
type Code int

const (
	// 汎用エラー (1000-1999)

	// CodeInternal は分類不能な内部エラー。
	CodeInternal Code = 1000
	// CodeValidation は入力値の検証エラー。
	CodeValidation Code = 1001
	// CodeNotFound は指定されたリソースが存在しない。
	CodeNotFound Code = 1002
	// CodeDuplicateData は一意制約に違反するデータ。
	CodeDuplicateData Code = 1003
	// CodeDatabase はストア操作の失敗。
	CodeDatabase Code = 1004
	// CodeNoDataFound はコレクション取得で有効なレコードが0件。
	CodeNoDataFound Code = 1005
	// CodeConnection は上流サービスへの接続失敗またはタイムアウト。
	CodeConnection Code = 1006
	// CodeAuthentication は認証失敗。
	CodeAuthentication Code = 1007
	// CodeAuthorization は認可失敗。
	CodeAuthorization Code = 1008
	// CodeRateLimit はレート制限超過。
	CodeRateLimit Code = 1009

	// メンバーサービス (2000-2999)。予約済み。

	CodeMemberNotFound      Code = 2000
	CodeMemberAlreadyExists Code = 2001
	CodeInvalidMemberData   Code = 2002

	// フィードバックサービス (3000-3999)。予約済み。

	CodeFeedbackNotFound      Code = 3000
	CodeFeedbackAlreadyExists Code = 3001
	CodeInvalidFeedbackData   Code = 3002
)

// codeNames は各コードの識別名。
var codeNames = map[Code]string{
	CodeInternal:              "INTERNAL_ERROR",
	CodeValidation:            "VALIDATION_ERROR",
	CodeNotFound:              "NOT_FOUND_ERROR",
	CodeDuplicateData:         "DUPLICATE_DATA_ERROR",
	CodeDatabase:              "DATABASE_ERROR",
	CodeNoDataFound:           "NO_DATA_FOUND_ERROR",
	CodeConnection:            "CONNECTION_ERROR",
	CodeAuthentication:        "AUTHENTICATION_ERROR",
	CodeAuthorization:         "AUTHORIZATION_ERROR",
	CodeRateLimit:             "RATE_LIMIT_ERROR",
	CodeMemberNotFound:        "MEMBER_NOT_FOUND",
	CodeMemberAlreadyExists:   "MEMBER_ALREADY_EXISTS",
	CodeInvalidMemberData:     "INVALID_MEMBER_DATA",
	CodeFeedbackNotFound:      "FEEDBACK_NOT_FOUND",
	CodeFeedbackAlreadyExists: "FEEDBACK_ALREADY_EXISTS",
	CodeInvalidFeedbackData:   "INVALID_FEEDBACK_DATA",
}

// String はコードの識別名を返す。未知のコードは数値をそのまま返す。
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "CODE_" + strconv.Itoa(int(c))
}

// Known はコードがタクソノミーに含まれるかを返す。
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}
