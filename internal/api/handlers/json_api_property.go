package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

type UpdatePropertyArgs struct {
	PropertyID string                 `json:"property_id"`
	Updates    map[string]interface{} `json:"updates"`
}

type GetUploadURLArgs struct {
	PropertyID  string `json:"property_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type ConfirmImageUploadArgs struct {
	PropertyID string `json:"property_id"`
	ObjectKey  string `json:"object_key"` // as returned by getUploadURL
}

func (h *JsonApiHandler) createProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in models.PropertyInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}

	property, err := h.propertyService.CreateProperty(c.Request.Context(), userID, in)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to create property")
	}
	log.Printf("User %s created property %s", userID, property.ID)
	return property, nil
}

func (h *JsonApiHandler) updateProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs UpdatePropertyArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	propertyID, apiErr := parseRequiredSixID(reqArgs.PropertyID, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}
	if len(reqArgs.Updates) == 0 {
		return nil, NewApiError("Missing required argument (updates)")
	}

	property, err := h.propertyService.UpdateProperty(c.Request.Context(), propertyID, userID, reqArgs.Updates)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to update property")
	}
	return property, nil
}

func (h *JsonApiHandler) deleteProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	propertyID, apiErr := h.parseSixIDArg(args, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}

	if err := h.propertyService.DeleteProperty(c.Request.Context(), propertyID, userID); err != nil {
		return nil, apiErrorFrom(err, "Failed to delete property")
	}
	log.Printf("User %s deleted property %s", userID, propertyID)
	return true, nil
}

// ownedProperty loads a property and checks the caller owns it.
func (h *JsonApiHandler) ownedProperty(ctx context.Context, propertyID, userID utils.SixID) (*models.Property, error) {
	property, err := h.propertyService.FindPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != userID {
		return nil, services.ErrForbidden
	}
	return property, nil
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.PropertyID == "" || reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (property_id, filename, content_type)")
	}
	if !strings.HasPrefix(reqArgs.ContentType, "image/") {
		return nil, NewApiError("content_type must be an image type")
	}
	propertyID, apiErr := parseRequiredSixID(reqArgs.PropertyID, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if _, err := h.ownedProperty(ctx, propertyID, userID); err != nil {
		return nil, apiErrorFrom(err, "Failed to generate upload URL")
	}

	objectKey := storage.ObjectKey(userID, propertyID.String(), reqArgs.Filename)
	presignedURL, err := h.storageService.GeneratePresignedPutURL(ctx, storage.BucketPropertyImages, objectKey, reqArgs.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrPresignUnsupported) {
			return nil, NewApiError("Direct uploads are not available; use the upload endpoint")
		}
		log.Printf("Error generating presigned URL for user %s, property %s: %v", userID, propertyID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}

	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.PropertyID == "" || reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required arguments (property_id, object_key)")
	}
	propertyID, apiErr := parseRequiredSixID(reqArgs.PropertyID, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}
	// Keys handed out by getUploadURL are <user>/<property>/<file>.
	if !strings.HasPrefix(reqArgs.ObjectKey, userID.String()+"/"+propertyID.String()+"/") {
		return nil, NewApiError("forbidden")
	}

	if h.taskClient == nil {
		return nil, NewApiError("Image processing is unavailable")
	}

	ctx := c.Request.Context()
	if _, err := h.ownedProperty(ctx, propertyID, userID); err != nil {
		return nil, apiErrorFrom(err, "Failed to schedule image processing")
	}

	err := tasks.EnqueueImage(ctx, h.taskClient, tasks.ImageTaskPayload{
		Bucket:     storage.BucketPropertyImages,
		Key:        reqArgs.ObjectKey,
		PropertyID: propertyID.String(),
	})
	if err != nil {
		log.Printf("ERROR enqueuing image processing for key %s, property %s: %v", reqArgs.ObjectKey, propertyID, err)
		return nil, NewApiError("Failed to schedule image processing")
	}

	return gin.H{"message": "Image upload confirmed, processing scheduled."}, nil
}

func (h *JsonApiHandler) addFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	propertyID, apiErr := h.parseSixIDArg(args, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}

	favorite, err := h.favoriteService.AddFavorite(c.Request.Context(), userID, propertyID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to add favorite")
	}
	return favorite, nil
}

func (h *JsonApiHandler) removeFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	propertyID, apiErr := h.parseSixIDArg(args, "property_id")
	if apiErr != nil {
		return nil, apiErr
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), userID, propertyID); err != nil {
		return nil, apiErrorFrom(err, "Failed to remove favorite")
	}
	return true, nil
}

func (h *JsonApiHandler) updateProfile(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var updates map[string]interface{}
	if apiErr := h.parseRequiredSingleArgFromArray(args, &updates); apiErr != nil {
		return nil, apiErr
	}
	if len(updates) == 0 {
		return nil, NewApiError("Nothing to update")
	}

	profile, err := h.profileService.Update(c.Request.Context(), userID, updates)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to update profile")
	}
	return profile, nil
}
