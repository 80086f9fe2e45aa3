package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
)

// RestStorageHandler serves stored objects when the backend has no public
// URL of its own (GridFS).
type RestStorageHandler struct {
	storageService storage.IObjectStorage
}

func NewRestStorageHandler(storageService storage.IObjectStorage) *RestStorageHandler {
	return &RestStorageHandler{storageService: storageService}
}

// GetObject handles GET /v1/storage/:bucket/*key
func (h *RestStorageHandler) GetObject(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !storage.IsKnownBucket(bucket) || key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	obj, err := h.storageService.Download(c.Request.Context(), bucket, key)
	if err != nil {
		restError(c, err, "Failed to read object")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj.Body, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}
