package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/sitstand/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = time.Second

// Message is one WebSocket payload. Kind is "frame" or "event".
type Message struct {
	Kind  string               `json:"kind"`
	Frame *session.FrameResult `json:"frame,omitempty"`
	Event *session.Event       `json:"event,omitempty"`
}

// LiveHandler broadcasts frame results and session events over WebSocket.
type LiveHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewLiveHandler creates a LiveHandler with no clients.
func NewLiveHandler() *LiveHandler {
	return &LiveHandler{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *LiveHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastFrame sends res to every client. It is an app.FrameHook.
func (h *LiveHandler) BroadcastFrame(res session.FrameResult) {
	h.broadcast(Message{Kind: "frame", Frame: &res})
}

// BroadcastEvent sends e to every client. It is a session.Handler.
func (h *LiveHandler) BroadcastEvent(e session.Event) {
	h.broadcast(Message{Kind: "event", Event: &e})
}

func (h *LiveHandler) broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(m)
	if err != nil {
		log.Printf("json marshal error (%s): %v", m.Kind, err)
		return
	}

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
