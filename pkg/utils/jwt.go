package utils

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var (
	secretMu sync.RWMutex
	secret   []byte
	tokenTTL = 24 * time.Hour
)

// SetJWTSecret overrides the JWT_SECRET environment variable.
func SetJWTSecret(s string) {
	secretMu.Lock()
	secret = []byte(s)
	secretMu.Unlock()
}

func jwtSecret() ([]byte, error) {
	secretMu.RLock()
	s := secret
	secretMu.RUnlock()
	if len(s) == 0 {
		s = []byte(os.Getenv("JWT_SECRET"))
	}
	if len(s) == 0 {
		return nil, errors.New("missing jwt secret")
	}
	return s, nil
}

func GenerateJWT(userID, role string) (string, error) {
	key, err := jwtSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ParseJWT(tokenString string) (*JWTClaims, error) {
	key, err := jwtSecret()
	if err != nil {
		return nil, err
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
