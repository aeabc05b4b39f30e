package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = time.Second

// StateHub broadcasts the session state to WebSocket clients at a fixed
// cadence.
type StateHub struct {
	state    func() any
	interval time.Duration
	log      logrus.FieldLogger

	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewStateHub creates a hub that sends state() every interval once Run is
// called.
func NewStateHub(state func() any, interval time.Duration, log logrus.FieldLogger) *StateHub {
	return &StateHub{
		state:    state,
		interval: interval,
		log:      log,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		done:     make(chan struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests. The current state is sent
// immediately on connect.
func (h *StateHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	lock := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = lock
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	if msg, err := json.Marshal(h.state()); err == nil {
		h.send(conn, lock, msg)
	}

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Run broadcasts until Close is called.
func (h *StateHub) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.broadcast()
		}
	}
}

// Close stops Run.
func (h *StateHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *StateHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *StateHub) broadcast() {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	msg, err := json.Marshal(h.state())
	if err != nil {
		h.log.WithError(err).Error("encode state")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, lock := range h.clients {
		h.send(conn, lock, msg)
	}
}

func (h *StateHub) send(conn *websocket.Conn, lock *sync.Mutex, msg []byte) {
	lock.Lock()
	defer lock.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.log.WithError(err).Debug("websocket write failed")
	}
}
