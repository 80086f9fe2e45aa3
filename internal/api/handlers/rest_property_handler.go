package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// RestPropertyHandler handles REST requests for properties and their images.
type RestPropertyHandler struct {
	cfg             *config.Config
	propertyService services.IPropertyService
	storageService  storage.IObjectStorage
	taskClient      tasks.Enqueuer
}

func NewRestPropertyHandler(cfg *config.Config, propertyService services.IPropertyService, storageService storage.IObjectStorage, taskClient tasks.Enqueuer) *RestPropertyHandler {
	return &RestPropertyHandler{
		cfg:             cfg,
		propertyService: propertyService,
		storageService:  storageService,
		taskClient:      taskClient,
	}
}

// splitList parses a comma-separated query value.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseQuery(c *gin.Context) (services.PropertyQuery, error) {
	q := services.PropertyQuery{
		Text:          c.Query("q"),
		City:          c.Query("city"),
		State:         c.Query("state"),
		ListingType:   models.ListingType(c.Query("listing_type")),
		PropertyTypes: splitList(c.Query("property_type")),
		Sort:          c.Query("sort"),
		Cursor:        c.Query("cursor"),
		WithCount:     c.Query("count") == "true" || c.Query("count") == "exact",
	}
	for _, s := range splitList(c.Query("status")) {
		q.Statuses = append(q.Statuses, models.PropertyStatus(s))
	}

	floatParam := func(name string) (*float64, error) {
		raw := c.Query(name)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewValidationError(name, "must be a number")
		}
		return &v, nil
	}
	intParam := func(name string) (int, error) {
		raw := c.Query(name)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, models.NewValidationError(name, "must be a non-negative integer")
		}
		return v, nil
	}

	var err error
	if q.MinPrice, err = floatParam("min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = floatParam("max_price"); err != nil {
		return q, err
	}
	if q.MinBedrooms, err = intParam("min_bedrooms"); err != nil {
		return q, err
	}
	if q.MinBathrooms, err = intParam("min_bathrooms"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam("limit"); err != nil {
		return q, err
	}
	return q, nil
}

// SearchProperties handles GET /v1/property/search
func (h *RestPropertyHandler) SearchProperties(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		restError(c, err, "Failed to search properties")
		return
	}

	result, err := h.propertyService.SearchProperties(c.Request.Context(), q)
	if err != nil {
		restError(c, err, "Failed to search properties")
		return
	}

	body := gin.H{
		"data":        result.Properties,
		"next_cursor": result.NextCursor,
	}
	if result.Count != nil {
		body["count"] = *result.Count
	}
	c.JSON(http.StatusOK, body)
}

// GetPropertyByID handles GET /v1/property/:id
func (h *RestPropertyHandler) GetPropertyByID(c *gin.Context) {
	propertyID, ok := pathSixID(c, "id")
	if !ok {
		return
	}
	property, err := h.propertyService.FindPropertyByID(c.Request.Context(), propertyID)
	if err != nil {
		restError(c, err, "Failed to retrieve property")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": property})
}

// GetUserProperties handles GET /v1/user/:id/property
func (h *RestPropertyHandler) GetUserProperties(c *gin.Context) {
	ownerID, ok := pathSixID(c, "id")
	if !ok {
		return
	}
	properties, err := h.propertyService.ListOwnerProperties(c.Request.Context(), ownerID)
	if err != nil {
		restError(c, err, "Failed to retrieve properties")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": properties})
}

// UploadImage handles POST /v1/property/:id/image (multipart field "file").
// The image is attached once the image task has normalized it.
func (h *RestPropertyHandler) UploadImage(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	propertyID, ok := pathSixID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	property, err := h.propertyService.FindPropertyByID(ctx, propertyID)
	if err != nil {
		restError(c, err, "Failed to upload image")
		return
	}
	if property.OwnerID != userID {
		restError(c, services.ErrForbidden, "Failed to upload image")
		return
	}

	key, ok := receiveImage(c, h.cfg, h.storageService, storage.BucketPropertyImages, userID, propertyID.String())
	if !ok {
		return
	}

	if h.taskClient == nil {
		// No worker to normalize it; attach the original.
		img := models.PropertyImage{Key: key, URL: h.storageService.PublicURL(storage.BucketPropertyImages, key)}
		if err := h.propertyService.AddImage(ctx, propertyID, img); err != nil {
			restError(c, err, "Failed to attach image")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": img})
		return
	}

	err = tasks.EnqueueImage(ctx, h.taskClient, tasks.ImageTaskPayload{
		Bucket:     storage.BucketPropertyImages,
		Key:        key,
		PropertyID: propertyID.String(),
	})
	if err != nil {
		restError(c, err, "Failed to schedule image processing")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"key": key}})
}

// DeleteImage handles DELETE /v1/property/:id/image?key=
func (h *RestPropertyHandler) DeleteImage(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	propertyID, ok := pathSixID(c, "id")
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.propertyService.RemoveImage(ctx, propertyID, userID, key); err != nil {
		restError(c, err, "Failed to remove image")
		return
	}
	if err := h.storageService.Delete(ctx, storage.BucketPropertyImages, key); err != nil {
		log.Printf("Warning: image %s detached from property %s but not deleted: %v", key, propertyID, err)
	}
	c.Status(http.StatusNoContent)
}

// pathSixID parses a path parameter, writing a 400 on failure.
func pathSixID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil || id.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return utils.SixID{}, false
	}
	return id, true
}

// receiveImage stores the multipart "file" field under a fresh key owned by
// userID and returns the key. It writes the error response itself.
func receiveImage(c *gin.Context, cfg *config.Config, store storage.IObjectStorage, bucket string, userID utils.SixID, scope string) (string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", false
	}
	if limit := cfg.ImageMaxSizeBytes(); limit > 0 && fileHeader.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return "", false
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "file must be an image"})
		return "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		restError(c, err, "Failed to read upload")
		return "", false
	}
	defer file.Close()

	key := storage.ObjectKey(userID, scope, fileHeader.Filename)
	if err := store.Upload(c.Request.Context(), bucket, key, file, fileHeader.Size, contentType); err != nil {
		restError(c, err, "Failed to store upload")
		return "", false
	}
	return key, true
}
