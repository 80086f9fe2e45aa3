package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/thread"
)

// ApiError is returned by JSON API methods; Message reaches the client.
type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// apiErrorFrom turns a service error into a client message. Errors with no
// client meaning are logged and replaced by fallback.
func apiErrorFrom(err error, fallback string) *ApiError {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewApiError(verr.Error())
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, storage.ErrObjectNotFound):
		return NewApiError("not_found")
	case errors.Is(err, services.ErrForbidden):
		return NewApiError("forbidden")
	case errors.Is(err, services.ErrNotLister):
		return NewApiError("lister_role_required")
	case errors.Is(err, services.ErrInvalidCredentials):
		return NewApiError("invalid_credentials")
	case errors.Is(err, services.ErrEmailTaken):
		return NewApiError("email_taken")
	case errors.Is(err, services.ErrAlreadyFavorited):
		return NewApiError("already_favorited")
	case errors.Is(err, services.ErrInquiryClosed):
		return NewApiError("inquiry_closed")
	case errors.Is(err, services.ErrInvalidInput):
		return NewApiError(err.Error())
	case errors.Is(err, thread.ErrEmptyMessage):
		return NewApiError("content is required")
	case errors.Is(err, auth.ErrSessionRevoked):
		return NewApiError("session_expired")
	}
	log.Printf("%s: %v", fallback, err)
	return NewApiError(fallback)
}

// restError writes the REST error response for err.
func restError(c *gin.Context, err error, fallback string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, storage.ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrNotLister):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, services.ErrAlreadyFavorited):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInquiryClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
