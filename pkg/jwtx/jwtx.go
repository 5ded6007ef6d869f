package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Config struct {
	SigningKey string `json:"signingKey" yaml:"signing-key" mapstructure:"signing-key"`
}

// VerifyToken 校验token
func VerifyToken(signingKey, tokenString string) (*jwt.Token, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("bearer token not found")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected jwt signing method: %v", token.Header["alg"])
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// OwnerFromToken 从token中解析用户标识
func OwnerFromToken(signingKey, tokenString string) (string, error) {
	token, err := VerifyToken(signingKey, tokenString)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid jwt claims")
	}
	identity, ok := claims["user_identity"].(string)
	if !ok || identity == "" {
		return "", fmt.Errorf("user_identity claim not found")
	}
	return identity, nil
}
