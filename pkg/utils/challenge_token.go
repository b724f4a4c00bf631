package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// A challenge token is the marker returned by login when the account requires
// a second factor: the password has been verified but no session exists yet.
// It is a short-lived signed JWT so the client does not have to resubmit the
// password alongside the TOTP code.

const challengeTokenExpiry = 5 * time.Minute

var jwtSecret = []byte("change-me-in-production")

func ConfigureJWT(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

type ChallengeClaims struct {
	UserID    uuid.UUID `json:"userID"`
	Username  string    `json:"username"`
	TokenType string    `json:"tokenType"`
	JTI       string    `json:"jti"`
	jwt.RegisteredClaims
}

func GenerateChallengeToken(userID uuid.UUID, username string) (string, error) {
	expiresAt := time.Now().Add(challengeTokenExpiry)
	jti := uuid.New().String()
	claims := ChallengeClaims{
		UserID:    userID,
		Username:  username,
		TokenType: "totp_challenge",
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        jti,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateChallengeToken(tokenString string) (*ChallengeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChallengeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ChallengeClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid challenge token")
	}

	if claims.TokenType != "totp_challenge" {
		return nil, fmt.Errorf("invalid token type")
	}

	if claims.JTI == "" {
		return nil, fmt.Errorf("missing token ID")
	}

	return claims, nil
}

var consumedJTIs = make(map[string]time.Time)
var jtiMu sync.Mutex

// IsJTIValid reports whether the token has not been spent yet.
func IsJTIValid(jti string) bool {
	jtiMu.Lock()
	defer jtiMu.Unlock()
	_, exists := consumedJTIs[jti]
	return !exists
}

// ConsumeJTI marks the token as spent. Entries older than the token lifetime
// cannot validate anymore, so they are pruned on the way in and the set stays
// bounded by recent logins.
func ConsumeJTI(jti string) {
	jtiMu.Lock()
	defer jtiMu.Unlock()
	now := time.Now()
	for id, consumedAt := range consumedJTIs {
		if now.Sub(consumedAt) > challengeTokenExpiry {
			delete(consumedJTIs, id)
		}
	}
	consumedJTIs[jti] = now
}
