package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sparques/rftrx"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// Hub streams events to every connected WebSocket client
type Hub struct {
	clients   map[*websocket.Conn]*sync.Mutex // each connection has its own write mutex
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients is the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and keeps it until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket: Upgrade failed: %v", err)
		return
	}
	writeMu := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = writeMu
	count := len(h.clients)
	h.clientsMu.Unlock()
	log.Printf("WebSocket: Client connected from %s (total: %d)", r.RemoteAddr, count)

	h.handleClient(conn, writeMu)
}

func (h *Hub) handleClient(conn *websocket.Conn, writeMu *sync.Mutex) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.clientsMu.Lock()
		delete(h.clients, conn)
		count := len(h.clients)
		h.clientsMu.Unlock()
		conn.Close()
		log.Printf("WebSocket: Client disconnected (remaining: %d)", count)
	}()

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Clients only ever send keepalives; reading also notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket: Read error: %v", err)
			}
			return
		}
	}
}

// Publish broadcasts ev to all clients. Clients that fail to take it are
// dropped.
func (h *Hub) Publish(ev rftrx.Event) error {
	msg, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// copy the client list, then write without holding clientsMu
	h.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mus := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mu := range h.clients {
		conns = append(conns, conn)
		mus = append(mus, mu)
	}
	h.clientsMu.RUnlock()

	var failed int
	for i, conn := range conns {
		mus[i].Lock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteMessage(websocket.TextMessage, msg)
		mus[i].Unlock()
		if err != nil {
			failed++
			conn.Close()
		}
	}
	if failed > 0 {
		return fmt.Errorf("websocket: %d of %d clients failed", failed, len(conns))
	}
	return nil
}

// Close disconnects every client
func (h *Hub) Close() error {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for conn, mu := range h.clients {
		mu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		mu.Unlock()
		conn.Close()
	}
	return nil
}
