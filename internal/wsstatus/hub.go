// Package wsstatus streams job lifecycle events to websocket subscribers at
// /ws/status, adapted from the teacher's upload-progress broadcast hub.
package wsstatus

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

// Event is the JSON payload pushed to every connected subscriber whenever a
// job's status or progress changes.
type Event struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Hub is a single-writer fan-out broadcaster: one goroutine owns the
// client set and the broadcast channel, same shape as the teacher's
// WebSocketHub, generalized from file-upload progress to job status events.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *logging.ArchiverLogger
}

// New creates a Hub and starts its run loop.
func New(logger *logging.ArchiverLogger) *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleConnection registers c, blocks reading (discarding) client frames to
// detect disconnects, and unregisters c on return. Meant to be run as the
// fiber/websocket handler body for the /ws/status route.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	defer func() {
		h.unregister <- c
	}()
	h.register <- c

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastStatus pushes a status-change event for jobID. Never blocks: a
// full broadcast channel drops the event rather than stall the caller, same
// posture as the teacher's hub.
func (h *Hub) BroadcastStatus(jobID string, status jobmodel.Status, progress int) {
	h.send(Event{Type: "job_status", JobID: jobID, Status: string(status), Progress: progress})
}

// BroadcastError pushes a fatal-error event for jobID.
func (h *Hub) BroadcastError(jobID, message string) {
	h.send(Event{Type: "job_error", JobID: jobID, Message: message})
}

func (h *Hub) send(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		if h.logger != nil {
			h.logger.ForWebSocket(evt.JobID).Warn("broadcast channel full, dropping status event")
		}
	}
}

// ClientCount returns the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
