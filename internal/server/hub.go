package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rewired-gh/salesmap/internal/models"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 8
)

// wsMessage is the frame pushed to map clients.
type wsMessage struct {
	Type string                 `json:"type"`
	Data *models.AnalysisResult `json:"data"`
}

// Hub fans analysis updates out to websocket clients. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan *wsMessage
	done       chan struct{}
	latest     *wsMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan *wsMessage, 16),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			if h.latest != nil {
				client.send <- h.latest
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case msg := <-h.broadcast:
			h.latest = msg
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// slow consumer
					log.Warn("Dropping slow websocket client %s", client.addr)
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast queues result for every connected client. It never blocks; when
// the queue is full the update is dropped and the next one supersedes it.
func (h *Hub) Broadcast(result *models.AnalysisResult) {
	select {
	case h.broadcast <- &wsMessage{Type: "analysis", Data: result}:
	default:
		log.Warn("Websocket broadcast queue full, dropping update")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Hub) serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade websocket: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan *wsMessage, sendBuffer),
		addr: c.ClientIP(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *wsMessage
	addr string
}

// readPump only watches for close and pong frames; clients send nothing.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("Websocket read error from %s: %v", c.addr, err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Debug("Websocket write error to %s: %v", c.addr, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
