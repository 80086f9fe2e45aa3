package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
)

type RestFavoriteHandler struct {
	favoriteService services.IFavoriteService
}

func NewRestFavoriteHandler(favoriteService services.IFavoriteService) *RestFavoriteHandler {
	return &RestFavoriteHandler{favoriteService: favoriteService}
}

// ListFavorites handles GET /v1/me/favorites
func (h *RestFavoriteHandler) ListFavorites(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	items, err := h.favoriteService.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		restError(c, err, "Failed to load favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// IsFavorite handles GET /v1/me/favorites/:property_id
func (h *RestFavoriteHandler) IsFavorite(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	propertyID, ok := pathSixID(c, "property_id")
	if !ok {
		return
	}
	favorite, err := h.favoriteService.IsFavorite(c.Request.Context(), userID, propertyID)
	if err != nil {
		restError(c, err, "Failed to load favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"property_id": propertyID, "favorite": favorite}})
}
