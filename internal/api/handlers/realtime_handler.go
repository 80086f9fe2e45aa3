package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/teamhub254/Homeseeker-sub000/internal/api/middleware"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/thread"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Frame types exchanged over the websocket endpoints.
const (
	FrameSnapshot = "snapshot"
	FrameChange   = "change"
	FrameSent     = "sent"
	FrameError    = "error"
	FrameSend     = "send"
	FrameMarkRead = "mark_read"
)

const incomingFrameBuffer = 16

// OutFrame is a server-to-client frame.
type OutFrame struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// InFrame is a client-to-server frame on the thread socket.
type InFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// RealtimeHandler serves the live thread and the raw change stream.
type RealtimeHandler struct {
	chatService services.IChatService
	feed        realtime.IFeed
	hub         *realtime.Hub
	upgrader    websocket.Upgrader
}

// NewRealtimeHandler accepts websocket origins from allowedOrigins, a comma
// separated list or "*".
func NewRealtimeHandler(chatService services.IChatService, feed realtime.IFeed, hub *realtime.Hub, allowedOrigins string) *RealtimeHandler {
	return &RealtimeHandler{
		chatService: chatService,
		feed:        feed,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range splitList(allowedOrigins) {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

func errorFrame(message string) OutFrame {
	return OutFrame{Type: FrameError, Message: message}
}

// ServeThread handles GET /v1/inquiry/:id/thread. The caller must be a
// participant; the check happens before the upgrade so it can answer 403/404.
func (h *RealtimeHandler) ServeThread(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	inquiryID, ok := pathSixID(c, "id")
	if !ok {
		return
	}
	if _, err := h.chatService.GetThread(c.Request.Context(), inquiryID, userID); err != nil {
		restError(c, err, "Failed to open thread")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for thread %s: %v", inquiryID, err)
		return
	}

	incoming := make(chan []byte, incomingFrameBuffer)
	client := realtime.NewClient(userID, conn, h.hub, func(raw []byte) {
		select {
		case incoming <- raw:
		default:
			log.Printf("Dropping frame on thread %s for %s: handler busy", inquiryID, userID)
		}
	})
	client.Start()
	defer client.Close()

	view := thread.New(h.chatService, h.feed, inquiryID, userID, func(s thread.Snapshot) {
		client.Send(OutFrame{Type: FrameSnapshot, Data: s})
	})
	view.OnError = func(err error) {
		client.Send(errorFrame(apiErrorFrom(err, "Failed to refresh thread").Message))
	}

	// The request context ends with the hijacked connection's handler.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := view.Open(ctx); err != nil {
		client.Send(errorFrame(apiErrorFrom(err, "Failed to open thread").Message))
		return
	}
	defer view.Close()

	for {
		select {
		case <-client.Done():
			return
		case raw := <-incoming:
			h.handleThreadFrame(ctx, view, client, raw)
		}
	}
}

func (h *RealtimeHandler) handleThreadFrame(ctx context.Context, view *thread.Thread, client *realtime.Client, raw []byte) {
	var frame InFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.Send(errorFrame("Invalid frame"))
		return
	}
	switch frame.Type {
	case FrameSend:
		msg, err := view.Send(ctx, frame.Content)
		if err != nil {
			if !errors.Is(err, thread.ErrEmptyMessage) {
				log.Printf("Send on thread failed for %s: %v", client.UserID, err)
			}
			client.Send(errorFrame(apiErrorFrom(err, "Failed to send message").Message))
			return
		}
		client.Send(OutFrame{Type: FrameSent, Data: msg})
	case FrameMarkRead:
		if err := view.MarkRead(ctx); err != nil {
			client.Send(errorFrame(apiErrorFrom(err, "Failed to mark messages read").Message))
		}
	default:
		client.Send(errorFrame("Unknown frame type: " + frame.Type))
	}
}

// streamFilter resolves which feed channel the caller may follow.
func (h *RealtimeHandler) streamFilter(c *gin.Context, userID utils.SixID) (string, realtime.Filter, bool) {
	switch table := strings.TrimSpace(c.Query("table")); table {
	case realtime.TableAuth:
		return table, realtime.Eq("user_id", userID.String()), true
	case realtime.TableChatMessages:
		inquiryID, err := utils.ParseSixID(c.Query("inquiry_id"))
		if err != nil || inquiryID.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "inquiry_id is required"})
			return "", realtime.Filter{}, false
		}
		if _, err := h.chatService.GetThread(c.Request.Context(), inquiryID, userID); err != nil {
			restError(c, err, "Failed to subscribe")
			return "", realtime.Filter{}, false
		}
		return table, realtime.Eq("inquiry_id", inquiryID.String()), true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "table must be auth or chat_messages"})
		return "", realtime.Filter{}, false
	}
}

// ServeStream handles GET /v1/realtime and forwards every change on the
// selected channel as a "change" frame.
func (h *RealtimeHandler) ServeStream(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	table, filter, ok := h.streamFilter(c, userID)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for %s stream: %v", table, err)
		return
	}
	client := realtime.NewClient(userID, conn, h.hub, nil)
	client.Start()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.feed.Subscribe(ctx, table, filter)
	if err != nil {
		log.Printf("Failed to subscribe %s to %s: %v", userID, realtime.ChannelName(table, filter), err)
		client.Send(errorFrame("Failed to subscribe"))
		return
	}
	defer sub.Close()

	for {
		select {
		case <-client.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				return
			}
			if !client.Send(OutFrame{Type: FrameChange, Data: change}) {
				return
			}
		}
	}
}
