package edge

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenCookieName — кука с bearer-токеном сессии.
	TokenCookieName = "payload-token"
	// LocalStorageTokenHeader — fallback: зеркало токена из localStorage клиента.
	LocalStorageTokenHeader = "X-Local-Storage-Token"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrInvalidToken   = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// ExtractToken — приоритет источников: кука → Authorization: Bearer →
// fallback-заголовок. Первый непустой выигрывает.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(auth) > 7 {
		return strings.TrimSpace(auth[7:])
	}

	return r.Header.Get(LocalStorageTokenHeader)
}

// TokenValidator проверяет HMAC-подпись и срок действия по общему секрету.
type TokenValidator struct {
	secret []byte
	skew   time.Duration
}

func NewTokenValidator(secret string, skew time.Duration) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), skew: skew}
}

// Validate: структура из трёх сегментов, подпись, exp в будущем.
// Любое нарушение — nil claims.
func (v *TokenValidator) Validate(tokenStr string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.skew), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (v *TokenValidator) IsValid(tokenStr string) bool {
	_, err := v.Validate(tokenStr)
	return err == nil
}
