package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

const inquirySentMessage = "Inquiry sent successfully."

type RespondToInquiryArgs struct {
	InquiryID string `json:"inquiry_id"`
	Response  string `json:"response"`
}

type SetInquiryStatusArgs struct {
	InquiryID string               `json:"inquiry_id"`
	Status    models.InquiryStatus `json:"status"`
}

// SendMessageArgs is the argument of sendMessage. ID is optional and lets
// the client match its optimistic copy.
type SendMessageArgs struct {
	InquiryID string `json:"inquiry_id"`
	ID        string `json:"id,omitempty"`
	Content   string `json:"content"`
}

// submitInquiry works for guests too; a signed-in caller is recorded on the
// inquiry.
func (h *JsonApiHandler) submitInquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var form models.InquiryForm
	if apiErr := h.parseRequiredSingleArgFromArray(args, &form); apiErr != nil {
		return nil, apiErr
	}

	var userID *utils.SixID
	if authInfo, ok := getAuthFromContext(c.Request.Context()); ok {
		userID = authInfo.UserID
	}

	ctx := c.Request.Context()
	inquiry, property, err := h.inquiryService.CreateInquiry(ctx, form, userID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to send inquiry")
	}
	log.Printf("Inquiry %s submitted for property %s", inquiry.ID, property.ID)

	h.notifyOwnerOfInquiry(ctx, inquiry, property)

	return gin.H{"message": inquirySentMessage, "inquiry": inquiry}, nil
}

// notifyOwnerOfInquiry queues the new_inquiry email. Failures are logged only.
func (h *JsonApiHandler) notifyOwnerOfInquiry(ctx context.Context, inquiry *models.Inquiry, property *models.Property) {
	if h.taskClient == nil {
		return
	}
	owner, err := h.userService.FindByID(ctx, property.OwnerID)
	if err != nil {
		log.Printf("Warning: owner %s of property %s not found, inquiry %s not notified: %v", property.OwnerID, property.ID, inquiry.ID, err)
		return
	}
	payload := tasks.EmailTaskPayload{
		To:         owner.Email,
		TemplateID: models.TemplateNewInquiry,
		Data: map[string]string{
			"property_title": property.Title,
			"name":           inquiry.Name,
			"email":          inquiry.Email,
			"phone":          inquiry.Phone,
			"message":        inquiry.Message,
			"inquiry_id":     inquiry.ID.String(),
		},
		InquiryID: inquiry.ID.String(),
	}
	if err := tasks.EnqueueEmail(ctx, h.taskClient, payload); err != nil {
		log.Printf("Warning: new_inquiry email for inquiry %s not queued: %v", inquiry.ID, err)
	}
}

func (h *JsonApiHandler) respondToInquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs RespondToInquiryArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	inquiryID, apiErr := parseRequiredSixID(reqArgs.InquiryID, "inquiry_id")
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	inquiry, err := h.inquiryService.Respond(ctx, inquiryID, userID, reqArgs.Response)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to respond to inquiry")
	}

	if h.taskClient != nil {
		title := ""
		if property, err := h.propertyService.FindPropertyByID(ctx, inquiry.PropertyID); err == nil {
			title = property.Title
		}
		payload := tasks.EmailTaskPayload{
			To:         inquiry.Email,
			TemplateID: models.TemplateInquiryResponse,
			Data: map[string]string{
				"property_title": title,
				"name":           inquiry.Name,
				"response":       inquiry.Response,
				"inquiry_id":     inquiry.ID.String(),
			},
		}
		if err := tasks.EnqueueEmail(ctx, h.taskClient, payload); err != nil {
			log.Printf("Warning: inquiry_response email for inquiry %s not queued: %v", inquiry.ID, err)
		}
	}
	return inquiry, nil
}

func (h *JsonApiHandler) setInquiryStatus(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SetInquiryStatusArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	inquiryID, apiErr := parseRequiredSixID(reqArgs.InquiryID, "inquiry_id")
	if apiErr != nil {
		return nil, apiErr
	}

	inquiry, err := h.inquiryService.SetStatus(c.Request.Context(), inquiryID, userID, reqArgs.Status)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to update inquiry")
	}
	return inquiry, nil
}

func (h *JsonApiHandler) sendMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SendMessageArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	inquiryID, apiErr := parseRequiredSixID(reqArgs.InquiryID, "inquiry_id")
	if apiErr != nil {
		return nil, apiErr
	}
	messageID, err := utils.ParseSixID(reqArgs.ID)
	if err != nil {
		return nil, NewApiError("Invalid id format")
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), inquiryID, userID, messageID, reqArgs.Content)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to send message")
	}
	return msg, nil
}

// markThreadRead takes the inquiry id and returns how many messages changed.
func (h *JsonApiHandler) markThreadRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	userID, apiErr := requireUser(c)
	if apiErr != nil {
		return nil, apiErr
	}
	inquiryID, apiErr := h.parseSixIDArg(args, "inquiry_id")
	if apiErr != nil {
		return nil, apiErr
	}

	n, err := h.chatService.MarkRead(c.Request.Context(), inquiryID, userID)
	if err != nil {
		return nil, apiErrorFrom(err, "Failed to mark messages read")
	}
	return gin.H{"updated": n}, nil
}
