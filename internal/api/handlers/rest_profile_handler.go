package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
)

// RestProfileHandler serves profiles and avatars.
type RestProfileHandler struct {
	cfg            *config.Config
	profileService services.IProfileService
	storageService storage.IObjectStorage
	taskClient     tasks.Enqueuer
}

func NewRestProfileHandler(cfg *config.Config, profileService services.IProfileService, storageService storage.IObjectStorage, taskClient tasks.Enqueuer) *RestProfileHandler {
	return &RestProfileHandler{
		cfg:            cfg,
		profileService: profileService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// GetProfile handles GET /v1/profile/:id
func (h *RestProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := pathSixID(c, "id")
	if !ok {
		return
	}
	profile, err := h.profileService.Get(c.Request.Context(), userID)
	if err != nil {
		restError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

// GetMyProfile handles GET /v1/me/profile
func (h *RestProfileHandler) GetMyProfile(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	profile, err := h.profileService.Get(c.Request.Context(), userID)
	if err != nil {
		restError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

// UploadAvatar handles POST /v1/me/avatar (multipart field "file").
func (h *RestProfileHandler) UploadAvatar(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	key, ok := receiveImage(c, h.cfg, h.storageService, storage.BucketAvatars, userID, "avatar")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	url := h.storageService.PublicURL(storage.BucketAvatars, key)
	previous, err := h.profileService.SetAvatar(ctx, userID, key, url)
	if err != nil {
		h.deleteObject(ctx, key)
		restError(c, err, "Failed to update avatar")
		return
	}
	if previous != "" && previous != key {
		h.deleteObject(ctx, previous)
	}

	if h.taskClient != nil {
		if err := tasks.EnqueueImage(ctx, h.taskClient, tasks.ImageTaskPayload{Bucket: storage.BucketAvatars, Key: key}); err != nil {
			log.Printf("Warning: avatar %s stored but not queued for processing: %v", key, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"avatar_url": url}})
}

// DeleteAvatar handles DELETE /v1/me/avatar
func (h *RestProfileHandler) DeleteAvatar(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	ctx := c.Request.Context()
	previous, err := h.profileService.ClearAvatar(ctx, userID)
	if err != nil {
		restError(c, err, "Failed to remove avatar")
		return
	}
	if previous != "" {
		h.deleteObject(ctx, previous)
	}
	c.Status(http.StatusNoContent)
}

func (h *RestProfileHandler) deleteObject(ctx context.Context, key string) {
	if err := h.storageService.Delete(ctx, storage.BucketAvatars, key); err != nil {
		log.Printf("Warning: failed to delete avatar object %s: %v", key, err)
	}
}
