package observability

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/mlfq"
)

const maxDashboardConnections = 200

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireEvent is the JSON payload pushed to every connected dashboard client
// on each level transition.
type wireEvent struct {
	Task       uint64 `json:"task"`
	OldLevel   string `json:"old_level"`
	NewLevel   string `json:"new_level"`
	PriorBurst uint32 `json:"prior_burst"`
	AtUnixMS   int64  `json:"at_unix_ms"`
}

// DashboardHub fans out scheduler transitions to WebSocket-connected
// clients, following the teacher lineage's MetricsHub: a single
// register/unregister/broadcast loop owning the client set, so there is
// never more than one writer per connection.
type DashboardHub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan wireEvent
	mu         sync.RWMutex
}

// NewDashboardHub creates a hub. It must be started with Run before any
// client connects.
func NewDashboardHub() *DashboardHub {
	return &DashboardHub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan wireEvent, 64),
	}
}

// Run is the hub's main loop. It owns the client map exclusively, so
// Register/Unregister/OnTransition communicate with it only over channels.
func (h *DashboardHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxDashboardConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("dashboard connection rejected: max connections (%d) reached", maxDashboardConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *DashboardHub) broadcast(ev wireEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("dashboard write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *DashboardHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register adds a new client connection to the hub.
func (h *DashboardHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes a client connection.
func (h *DashboardHub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of connected clients.
func (h *DashboardHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnTransition implements mlfq.Observer, queueing the transition for
// broadcast. Never blocks the scheduler manager: a full event buffer drops
// this transition rather than stall the caller.
func (h *DashboardHub) OnTransition(t mlfq.Transition, _ mlfq.Record) {
	ev := wireEvent{
		Task:       uint64(t.Task),
		OldLevel:   t.Old.String(),
		NewLevel:   t.New.String(),
		PriorBurst: t.PriorBurst,
		AtUnixMS:   t.At.UnixMilli(),
	}
	select {
	case h.events <- ev:
	default:
		log.Printf("dashboard hub event buffer full, dropping transition for task %d", t.Task)
	}
}

// HandleStream upgrades an HTTP request to a WebSocket connection and
// registers it with the hub. Mount under a path such as /ws/transitions.
func (h *DashboardHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard upgrade failed: %v", err)
		return
	}
	h.Register(conn)
	defer h.Unregister(conn)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("dashboard read error: %v", err)
			}
			break
		}
	}
}

var _ mlfq.Observer = (*DashboardHub)(nil)
