package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

const maxJsonApiBodyBytes = 1 << 20

type authContextKey string

const authResultKey authContextKey = "authResult"

// AuthResult is the caller of a JSON API method. UserID is nil for guests.
type AuthResult struct {
	UserID *utils.SixID
	Role   models.Role
	Claims *auth.Claims
}

func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// requireUser returns the authenticated caller's id.
func requireUser(c *gin.Context) (utils.SixID, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return utils.SixID{}, NewApiError("Authentication required")
	}
	return *authInfo.UserID, nil
}

// SessionManager is satisfied by *auth.Sessions.
type SessionManager interface {
	Issue(ctx context.Context, userID utils.SixID, role models.Role, event string) (*auth.Session, error)
	Validate(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
	Refresh(ctx context.Context, claims *auth.Claims, role models.Role) (*auth.Session, error)
}

// MethodLimiter is satisfied by *middleware.RateLimiterMiddleware.
type MethodLimiter interface {
	Check(c *gin.Context, apiType models.APIType, endpoint string) bool
}

// JsonApiRequest is the body of POST /v1/api.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse is always sent with HTTP 200.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler serves the method-dispatch API.
type JsonApiHandler struct {
	cfg             *config.Config
	sessions        SessionManager
	taskClient      tasks.Enqueuer
	limiter         MethodLimiter
	userService     services.IUserService
	profileService  services.IProfileService
	propertyService services.IPropertyService
	inquiryService  services.IInquiryService
	chatService     services.IChatService
	favoriteService services.IFavoriteService
	storageService  storage.IObjectStorage
	methods         map[string]apiMethodFunc
	authRequired    map[string]bool
}

func NewJsonApiHandler(
	cfg *config.Config,
	sessions SessionManager,
	taskClient tasks.Enqueuer,
	limiter MethodLimiter,
	userService services.IUserService,
	profileService services.IProfileService,
	propertyService services.IPropertyService,
	inquiryService services.IInquiryService,
	chatService services.IChatService,
	favoriteService services.IFavoriteService,
	storageService storage.IObjectStorage,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:             cfg,
		sessions:        sessions,
		taskClient:      taskClient,
		limiter:         limiter,
		userService:     userService,
		profileService:  profileService,
		propertyService: propertyService,
		inquiryService:  inquiryService,
		chatService:     chatService,
		favoriteService: favoriteService,
		storageService:  storageService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":               h.ping,
		"signUp":             h.signUp,
		"signInWithPassword": h.signInWithPassword,
		"signOut":            h.signOut,
		"getSession":         h.getSession,
		"refreshToken":       h.refreshToken,
		"changePassword":     h.changePassword,
		"submitInquiry":      h.submitInquiry,
		"respondToInquiry":   h.respondToInquiry,
		"setInquiryStatus":   h.setInquiryStatus,
		"sendMessage":        h.sendMessage,
		"markThreadRead":     h.markThreadRead,
		"createProperty":     h.createProperty,
		"updateProperty":     h.updateProperty,
		"deleteProperty":     h.deleteProperty,
		"getUploadURL":       h.getUploadURL,
		"confirmImageUpload": h.confirmImageUpload,
		"addFavorite":        h.addFavorite,
		"removeFavorite":     h.removeFavorite,
		"updateProfile":      h.updateProfile,
	}
	// Everything not listed here needs a live session.
	public := map[string]bool{
		"ping":               true,
		"signUp":             true,
		"signInWithPassword": true,
		"submitInquiry":      true,
	}
	h.authRequired = make(map[string]bool, len(h.methods))
	for name := range h.methods {
		h.authRequired[name] = !public[name]
	}
	return h
}

// HandleRequest is the entry point for POST /v1/api.
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJsonApiBodyBytes))
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if h.limiter != nil && !h.limiter.Check(c, models.APITypeJSON, req.Method) {
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}
	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod stores an AuthResult in the request context. Public
// methods accept an optional token and fall back to guest when it is bad.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	authRes := &AuthResult{}
	token, hasToken := middleware.BearerToken(c)

	if hasToken {
		claims, err := middleware.Authenticate(c, h.sessions, token)
		if err == nil {
			userID, _ := middleware.CurrentUserID(c)
			authRes = &AuthResult{UserID: &userID, Role: claims.Role, Claims: claims}
		} else if h.methodRequiresAuth(method) {
			return NewApiError("Invalid or expired session")
		} else {
			log.Printf("DEBUG: Ignoring invalid optional token for method %s: %v", method, err)
		}
	} else if h.methodRequiresAuth(method) {
		return NewApiError("Authorization header required")
	}

	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	required, known := h.authRequired[method]
	return !known || required
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: message})
}

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return "pong", nil
}

// parseRequiredSingleArgFromArray decodes the first element of the
// arguments array into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	var argArray []json.RawMessage
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// parseSixIDArg decodes a single id argument, given as a string.
func (h *JsonApiHandler) parseSixIDArg(args json.RawMessage, name string) (utils.SixID, *ApiError) {
	var raw string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &raw); apiErr != nil {
		return utils.SixID{}, apiErr
	}
	return parseRequiredSixID(raw, name)
}

func parseRequiredSixID(raw, name string) (utils.SixID, *ApiError) {
	id, err := utils.ParseSixID(raw)
	if err != nil || id.IsZero() {
		return utils.SixID{}, NewApiError(fmt.Sprintf("Invalid %s format", name))
	}
	return id, nil
}
