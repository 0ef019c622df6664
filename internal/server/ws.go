package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/events"
	"attendanceconsole/internal/metrics"
	"attendanceconsole/internal/session"
	"attendanceconsole/internal/workflow"
)

const maxFrameBytes = 4 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 4 << 10,
}

// Hub fans attendance events out to connected dashboard sockets.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.Mutex
}

// NewHub returns a hub; call Start to run it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is done, then closes every client.
func (h *Hub) Start(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("event socket connected. Total: %d", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("event socket disconnected. Total: %d", n)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("event socket write failed: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Clients is the number of connected sockets.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast queues evt for every client. It drops the event when the queue is full.
func (h *Hub) Broadcast(evt events.Event) {
	message, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal event %s: %v", evt.ID, err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		log.Println("broadcast channel is full, dropping event", evt.ID)
	}
}

// Relay broadcasts every event from bus until ctx is done.
func (h *Hub) Relay(ctx context.Context, bus events.Bus) error {
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for evt := range ch {
		h.Broadcast(evt)
	}
	return nil
}

// EventsSocket streams attendance events to the dashboard.
func (h *Handler) EventsSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("failed to upgrade event socket: %v", err)
		return
	}
	select {
	case h.hub.register <- conn:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.hub.unregister <- conn:
			case <-h.hub.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("event socket error: %v", err)
				}
				return
			}
		}
	}()
}

// CameraSocket receives browser frames for ?flow= and feeds them to the
// session's camera. Binary messages are raw JPEG/PNG/WebP; text messages
// are data URIs. Frames sent while the flow is not live are dropped.
// Closing the socket stops the live feed it was serving.
func (h *Handler) CameraSocket(c *gin.Context) {
	s := session.From(c)
	feed, ok := s.Feed(workflow.Kind(c.Query("flow")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow"})
		return
	}
	m, _ := machineFor(s, c.Query("flow"))
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("failed to upgrade camera socket: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	var token uint64
	var serving bool
	defer func() {
		if !serving {
			return
		}
		if err := m.Stop(token); err != nil && !errors.Is(err, workflow.ErrClosed) {
			log.Printf("camera socket: release feed: %v", err)
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("camera socket error: %v", err)
			}
			return
		}
		if kind == websocket.TextMessage {
			uri := strings.TrimSpace(string(data))
			if data, err = camera.DecodeDataURI(uri); err != nil {
				log.Printf("camera socket: bad frame: %v", err)
				continue
			}
		}
		if err := feed.Push(data); err != nil {
			if !errors.Is(err, camera.ErrNotLive) {
				log.Printf("camera socket: push frame: %v", err)
			}
			continue
		}
		if t, live := m.LiveToken(); live {
			token, serving = t, true
		}
		metrics.FramesReceived.Inc()
	}
}
