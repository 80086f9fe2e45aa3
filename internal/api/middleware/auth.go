package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

const (
	// ContextKeyUserID holds the caller's utils.SixID.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the caller's models.Role.
	ContextKeyRole = "role"
	// ContextKeyClaims holds the validated *auth.Claims.
	ContextKeyClaims = "claims"
)

// SessionValidator is satisfied by *auth.Sessions.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// BearerToken returns the token from the Authorization header, or from the
// access_token query parameter for websocket upgrades that cannot set headers.
func BearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// Authenticate validates a token and stores the caller in the context.
func Authenticate(c *gin.Context, sessions SessionValidator, token string) (*auth.Claims, error) {
	claims, err := sessions.Validate(c.Request.Context(), token)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserSixID()
	if err != nil {
		return nil, err
	}
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyRole, claims.Role)
	c.Set(ContextKeyClaims, claims)
	return claims, nil
}

// AuthMiddleware rejects requests without a live session.
func AuthMiddleware(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if _, err := Authenticate(c, sessions, token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "This action requires the " + string(role) + " role"})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated caller, if any.
func CurrentUserID(c *gin.Context) (utils.SixID, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return utils.SixID{}, false
	}
	id, ok := v.(utils.SixID)
	return id, ok && !id.IsZero()
}

func CurrentRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextKeyRole)
	r, _ := role.(models.Role)
	return r
}

func CurrentClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(ContextKeyClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}
