package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"leadflow/config"
)

// Claims identifies the calling subsystem (scheduler, dashboard, crm).
type Claims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// GenerateServiceToken issues a bearer token for an internal caller.
func GenerateServiceToken(service string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.AuthSecret))
}

// ParseServiceToken validates a bearer token and returns its claims.
func ParseServiceToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.AuthSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
