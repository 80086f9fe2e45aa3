package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
)

// RestInquiryHandler serves the lister dashboard, sent inquiries and
// thread history.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
	chatService    services.IChatService
}

func NewRestInquiryHandler(inquiryService services.IInquiryService, chatService services.IChatService) *RestInquiryHandler {
	return &RestInquiryHandler{inquiryService: inquiryService, chatService: chatService}
}

// ListReceived handles GET /v1/me/inquiries: inquiries about the caller's
// properties, newest first, with unread counts.
func (h *RestInquiryHandler) ListReceived(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	items, err := h.inquiryService.ListForLister(c.Request.Context(), userID)
	if err != nil {
		restError(c, err, "Failed to load inquiries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// ListSent handles GET /v1/me/sent-inquiries
func (h *RestInquiryHandler) ListSent(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	items, err := h.inquiryService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		restError(c, err, "Failed to load inquiries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetMessages handles GET /v1/inquiry/:id/messages
func (h *RestInquiryHandler) GetMessages(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	inquiryID, ok := pathSixID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	info, err := h.chatService.GetThread(ctx, inquiryID, userID)
	if err != nil {
		restError(c, err, "Failed to load thread")
		return
	}
	messages, err := h.chatService.ListMessages(ctx, inquiryID, userID)
	if err != nil {
		restError(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": info, "data": messages})
}
