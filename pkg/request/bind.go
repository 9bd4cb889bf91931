// Package request はリクエストボディのバインドと検証を行う。
//
// 検証にはginに組み込まれたgo-playground/validatorを使用し、
// 失敗はapperrorのValidationとして返す。フィールド名はJSONタグ名で報告する。
package request

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/orghub/pkg/apperror"
)

// maxBodyBytes はリクエストボディの最大サイズ。
const maxBodyBytes = 1 << 20

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName は検証エラーで報告するフィールド名をJSONタグ（無ければformタグ）から求める。
func jsonFieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Normalizer は検証前に値を正規化（前後の空白除去など）するリクエスト型が実装する。
type Normalizer interface {
	Normalize()
}

// BindJSON はJSONボディをtargetにデコードし、正規化してから検証する。
func BindJSON(c *gin.Context, target any) *apperror.Error {
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("リクエストボディが空です", nil)
		}
		return apperror.Validation("リクエストボディが不正なJSONです", nil).WithCause(err)
	}
	return validate(target)
}

// Bind はContent-Typeに応じてフォームまたはJSONをtargetにバインドし、検証する。
func Bind(c *gin.Context, target any) *apperror.Error {
	if c.ContentType() == binding.MIMEJSON {
		return BindJSON(c, target)
	}
	if err := c.ShouldBindWith(target, binding.Form); err != nil {
		return FromError(err)
	}
	if n, ok := target.(Normalizer); ok {
		n.Normalize()
		return validate(target)
	}
	return nil
}

func validate(target any) *apperror.Error {
	if n, ok := target.(Normalizer); ok {
		n.Normalize()
	}
	if err := binding.Validator.ValidateStruct(target); err != nil {
		return FromError(err)
	}
	return nil
}

// FromError はバインド・検証エラーをValidationに変換する。
// detailsのerrorsにはフィールド名と違反した検証ルールの対応を格納する。
func FromError(err error) *apperror.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Validation("リクエストが不正です", nil).WithCause(err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	first := verrs[0].Field()
	return apperror.Validation("入力値が不正です: "+first, map[string]any{
		"field":  first,
		"errors": fields,
	})
}
