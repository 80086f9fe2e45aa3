package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Claims is the access token payload. RegisteredClaims.ID carries the
// session id that must still exist in the session store.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionID is the jti claim.
func (c *Claims) SessionID() string {
	return c.ID
}

// UserSixID parses the user_id claim.
func (c *Claims) UserSixID() (utils.SixID, error) {
	id, err := utils.ParseSixID(c.UserID)
	if err != nil {
		return utils.SixID{}, fmt.Errorf("invalid user_id claim: %w", err)
	}
	if id.IsZero() {
		return utils.SixID{}, errors.New("empty user_id claim")
	}
	return id, nil
}

// GenerateJWT signs an HS256 token for one session.
func GenerateJWT(userID utils.SixID, role models.Role, sessionID string, secretKey string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(ttl)
	claims := &Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, expirationTime, nil
}

// ValidateJWT verifies the signature and expiry and returns the claims.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	return claims, nil
}
