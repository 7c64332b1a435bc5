package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const realtimeAudience = "realtime"

// RealtimeClaims is carried by the short-lived ticket a client presents when it
// cannot send the session cookie on the websocket upgrade.
type RealtimeClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func GenerateRealtimeToken(userID int64, username, secret string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("realtime token secret is not configured")
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &RealtimeClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "socialize",
			Audience:  jwt.ClaimStrings{realtimeAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

func VerifyRealtimeToken(tokenString, secret string) (*RealtimeClaims, error) {
	if secret == "" {
		return nil, jwt.ErrInvalidKey
	}
	token, err := jwt.ParseWithClaims(tokenString, &RealtimeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithAudience(realtimeAudience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*RealtimeClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
