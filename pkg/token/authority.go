// Package token は共有秘密鍵で署名されたBearerトークンの発行と検証を提供する。
//
// トークンはsub（ログイン名）とexp（有効期限）のみを持つJWTで、
// サーバー側に状態を持たない。GatewayとバックエンドはこのAuthorityを
// 同じ設定で生成し、それぞれ独立に検証する。
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentials は検証失敗を表す唯一のエラー。
// 署名不正・期限切れ・形式不正・sub欠落を区別しない。
var ErrInvalidCredentials = errors.New("認証情報が無効です")

// DefaultTTL はトークン有効期間のデフォルト値。
const DefaultTTL = 30 * time.Minute

// Principal は検証済みの利用者を表す。
type Principal struct {
	// Login は利用者の一意なログイン名。
	Login string
}

// Authority はトークンの発行と検証を行う。生成後は不変。
type Authority struct {
	// secret は署名用の共有秘密鍵。
	secret []byte
	// method は署名アルゴリズム。HMAC系のみ許可する。
	method *jwt.SigningMethodHMAC
	// ttl はトークンの有効期間。
	ttl time.Duration
}

// NewAuthority は新しいAuthorityを生成する。
// algorithmにはHS256/HS384/HS512のいずれかを指定する。
func NewAuthority(secret, algorithm string, ttl time.Duration) (*Authority, error) {
	if secret == "" {
		return nil, errors.New("署名用の秘密鍵が空です")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("トークン有効期間が不正です: %s", ttl)
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("対称鍵の署名アルゴリズムではありません: %q", algorithm)
	}
	return &Authority{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Issue はloginをsubに持ち、now+TTLで失効するトークンを発行する。
// expは秒精度のため、端数がある場合は次の秒に切り上げる。
func (a *Authority) Issue(login string, now time.Time) (string, error) {
	if strings.TrimSpace(login) == "" {
		return "", errors.New("ログイン名が空です")
	}
	claims := jwt.RegisteredClaims{
		Subject:   login,
		ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(a.ttl))),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ceilSecond はtを秒単位に切り上げる。
func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return truncated
	}
	return truncated.Add(time.Second)
}

// Verify はトークンを検証し、subに対応するPrincipalを返す。
// 失敗理由にかかわらずErrInvalidCredentialsを返す。I/Oは行わない。
func (a *Authority) Verify(tokenString string, now time.Time) (Principal, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidCredentials
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Login: claims.Subject}, nil
}
