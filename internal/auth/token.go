package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleUndefined Role = ""
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

var TokenSecretKey = os.Getenv("TOKEN_AUTH_SECRET")

type TokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(role Role, subject string, dur time.Duration) (string, error) {
	claims := TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(dur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TokenSecretKey))
}

func VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Wrap(ErrInvalidSigningMethod, token.Header["alg"].(string))
		}
		return []byte(TokenSecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func IsValidToken(tokenString string) (Role, bool) {
	claims, err := VerifyToken(tokenString)
	if err != nil {
		return "", false
	}
	return claims.Role, true
}
