// Package auth は外部のIDサービスが発行した JWT を検証する
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 認証エラー
var (
	ErrInvalidToken = errors.New("トークンが不正です")
	ErrMissingToken = errors.New("トークンがありません")
)

// Claims はアクセストークンのクレーム。sub がユーザーIDを表す
type Claims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email"`
	FirstName string   `json:"given_name,omitempty"`
	LastName  string   `json:"family_name,omitempty"`
	Roles     []string `json:"roles"`
}

// Verifier は HS256 で署名されたトークンを検証する
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier は Verifier を作成する
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify はトークンの署名と有効期限を検証してクレームを返す
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub がありません", ErrInvalidToken)
	}
	return claims, nil
}

// Issuer はテスト・開発用にトークンを発行する
type Issuer struct {
	secret []byte
}

// NewIssuer は Issuer を作成する
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue は HS256 で署名したトークンを発行する
func (i *Issuer) Issue(userID, email string, roles []string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Email: email,
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return s, nil
}
