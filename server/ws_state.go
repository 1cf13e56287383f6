package server

import (
	"net/http"
	"sync"
	"time"

	"Cadenza/core/library"
	"Cadenza/core/queue"
	"Cadenza/logger"
	"Cadenza/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stateEvent is one frame on the /ws/state feed.
type stateEvent struct {
	Type    string            `json:"type"` // "queue" or "library"
	Queue   *model.QueueState `json:"queue,omitempty"`
	Library *library.Snapshot `json:"library,omitempty"`
}

// StateHub pushes queue and library snapshots to websocket clients.
// Each client gets the current state on connect, then every change.
type StateHub struct {
	manager *queue.Manager
	scanner *library.Scanner

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan stateEvent
}

func NewStateHub(manager *queue.Manager, scanner *library.Scanner) *StateHub {
	h := &StateHub{
		manager: manager,
		scanner: scanner,
		clients: make(map[*wsClient]struct{}),
	}
	go h.run()
	return h
}

func (h *StateHub) run() {
	queueCh, cancelQueue := h.manager.Subscribe()
	libraryCh, cancelLibrary := h.scanner.Subscribe()
	defer cancelQueue()
	defer cancelLibrary()

	for {
		select {
		case state, ok := <-queueCh:
			if !ok {
				return
			}
			h.broadcast(stateEvent{Type: "queue", Queue: &state})
		case snapshot, ok := <-libraryCh:
			if !ok {
				return
			}
			h.broadcast(stateEvent{Type: "library", Library: &snapshot})
		}
	}
}

func (h *StateHub) broadcast(event stateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Slow consumer; drop it rather than block the feed.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *StateHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan stateEvent, 16)}

	// Seed before registering: the channel is not visible to broadcast
	// yet, so these sends cannot race a close and never block.
	queueState := h.manager.Snapshot()
	librarySnapshot := h.scanner.Current()
	client.send <- stateEvent{Type: "queue", Queue: &queueState}
	client.send <- stateEvent{Type: "library", Library: &librarySnapshot}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writeLoop()
	go h.readLoop(client)
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains control frames and detects disconnects.
func (h *StateHub) readLoop(client *wsClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		client.conn.Close()
	}()
	client.conn.SetReadLimit(1024)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
