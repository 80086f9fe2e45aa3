package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
)

// SignInArgs is the argument of signInWithPassword.
type SignInArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) signUp(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var in services.SignUpInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, profile, err := h.userService.SignUp(ctx, in)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to create account")
	}

	session, err := h.sessions.Issue(ctx, user.ID, profile.Role, realtime.AuthSignedIn)
	if err != nil {
		log.Printf("Failed to issue session for new user %s: %v", user.ID, err)
		return nil, NewApiError("Account created but sign-in failed")
	}

	if h.taskClient != nil {
		welcome := tasks.EmailTaskPayload{
			To:         user.Email,
			TemplateID: models.TemplateWelcome,
			Data:       map[string]string{"first_name": profile.FirstName},
		}
		if err := tasks.EnqueueEmail(ctx, h.taskClient, welcome); err != nil {
			log.Printf("Warning: welcome email for user %s not queued: %v", user.ID, err)
		}
	}

	log.Printf("Signed up user %s as %s", user.ID, profile.Role)
	return session, nil
}

func (h *JsonApiHandler) signInWithPassword(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs SignInArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.Email == "" || reqArgs.Password == "" {
		return nil, NewApiError("invalid_credentials")
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, reqArgs.Email, reqArgs.Password)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to sign in")
	}

	role := models.RoleRenter
	if profile, err := h.profileService.Get(ctx, user.ID); err == nil {
		role = profile.Role
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apiErrorFrom(err, "Failed to sign in")
	}

	session, err := h.sessions.Issue(ctx, user.ID, role, realtime.AuthSignedIn)
	if err != nil {
		log.Printf("Failed to issue session for user %s: %v", user.ID, err)
		return nil, NewApiError("Failed to sign in")
	}
	return session, nil
}

func (h *JsonApiHandler) signOut(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.Claims == nil {
		return nil, NewApiError("Authentication required")
	}
	if err := h.sessions.Revoke(c.Request.Context(), authInfo.Claims); err != nil {
		return nil, apiErrorFrom(err, "Failed to sign out")
	}
	return true, nil
}

func (h *JsonApiHandler) getSession(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil || authInfo.Claims == nil {
		return nil, NewApiError("Authentication required")
	}

	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, *authInfo.UserID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to load session")
	}
	profile, err := h.profileService.Get(ctx, *authInfo.UserID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apiErrorFrom(err, "Failed to load session")
	}

	result := gin.H{"user": user, "profile": profile}
	if authInfo.Claims.ExpiresAt != nil {
		result["expires_at"] = authInfo.Claims.ExpiresAt.Time
	}
	return result, nil
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil || authInfo.Claims == nil {
		return nil, NewApiError("Authentication required for refreshToken")
	}

	// The role may have changed since the token was issued.
	role := authInfo.Role
	if profile, err := h.profileService.Get(c.Request.Context(), *authInfo.UserID); err == nil {
		role = profile.Role
	}

	session, err := h.sessions.Refresh(c.Request.Context(), authInfo.Claims, role)
	if err != nil {
		log.Printf("Failed to refresh session for user %s: %v", authInfo.UserID, err)
		return nil, NewApiError("Failed to refresh session token")
	}
	return session, nil
}

func (h *JsonApiHandler) changePassword(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var passwords []string
	if err := json.Unmarshal(args, &passwords); err != nil || len(passwords) != 2 {
		return nil, NewApiError("Expected arguments [current_password, new_password]")
	}

	if err := h.userService.ChangePassword(c.Request.Context(), userID, passwords[0], passwords[1]); err != nil {
		return nil, apiErrorFrom(err, "Failed to change password")
	}
	return true, nil
}

var _ SessionManager = (*auth.Sessions)(nil)
