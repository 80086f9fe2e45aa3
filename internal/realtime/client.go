package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

const (
	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Pings are sent at this interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	maxMessageSize = 64 * 1024

	// Outgoing frames buffered per client before it is considered too slow.
	sendBufferSize = 64
)

// Client is one websocket connection. Incoming frames are handed to the
// onMessage callback from the read goroutine.
type Client struct {
	ID     uuid.UUID
	UserID utils.SixID

	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	onMessage func([]byte)
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID utils.SixID, conn *websocket.Conn, hub *Hub, onMessage func([]byte)) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       hub,
		onMessage: onMessage,
		done:      make(chan struct{}),
	}
}

// Start registers the client with its hub and runs the read and write pumps.
func (c *Client) Start() {
	if c.hub != nil {
		c.hub.Add(c)
	}
	go c.readPump()
	go c.writePump()
}

// Done is closed when the connection has gone away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send queues v as a JSON text frame. A client whose buffer is full is
// disconnected and Send reports false.
func (c *Client) Send(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding websocket frame for client %s: %v", c.ID, err)
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		log.Printf("Send buffer full for client %s, closing connection", c.ID)
		c.Close()
		return false
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.hub != nil {
			c.hub.Remove(c.ID)
		}
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected websocket close for client %s: %v", c.ID, err)
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing to client %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
