// Package opsfeed upgrades an HTTP connection to a websocket and streams a
// live JSON feed of ring events — leader transitions, election rounds,
// token-loss probes, and order dispatch/completion — to attached operator
// dashboards. The client bookkeeping, keepalive ping/pong, and
// send-channel writer pump follow this codebase's own broker-to-client
// push model, repurposed to carry ring telemetry instead of game state.
package opsfeed

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ringscoop/internal/logging"
)

const (
	writeWait          = 10 * time.Second
	pingInterval       = 30 * time.Second
	pongWaitMultiplier = 3
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Kind discriminates the ring events an operator dashboard is notified of.
type Kind string

const (
	LeaderTransition Kind = "leader_transition"
	ElectionRound    Kind = "election_round"
	TokenLossProbe   Kind = "token_loss_probe"
	OrderDispatched  Kind = "order_dispatched"
	OrderCompleted   Kind = "order_completed"
)

// Event is one ring occurrence pushed to every attached dashboard.
type Event struct {
	Kind     Kind   `json:"kind"`
	RobotID  int    `json:"robot_id,omitempty"`
	ScreenID int    `json:"screen_id,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// Hub tracks every attached dashboard connection and fans out published
// events to each of them. The zero value is not usable; construct with
// NewHub. A nil *Hub is safe to call Publish on, so callers that did not
// wire a dashboard feed don't need to nil-check at every call site.
type Hub struct {
	log        *logging.Logger
	maxClients int

	mu      sync.Mutex
	clients map[*client]bool
}

// NewHub builds an event hub. maxClients <= 0 means unlimited.
func NewHub(maxClients int, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.L()
	}
	return &Hub{
		log:        log,
		maxClients: maxClients,
		clients:    make(map[*client]bool),
	}
}

// Publish encodes ev as JSON and fans it out to every attached dashboard,
// dropping it for any client whose send buffer is full rather than
// blocking the caller.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("failed to marshal ops event", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("dropping ops event for slow dashboard client", logging.String("client_id", c.id))
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return false
	}
	h.clients[c] = true
	return true
}

func (h *Hub) deregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request to a websocket and registers it as a
// dashboard client. Implements http.Handler so it mounts directly onto
// internal/httpops's mux.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ops dashboard websocket upgrade failed", logging.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64), id: r.RemoteAddr, log: h.log}
	if !h.register(c) {
		h.log.Warn("refusing ops dashboard connection: client limit reached")
		_ = conn.Close()
		return
	}

	go h.readPump(c)
	go h.writePump(c)
}

// readPump exists only to detect the client going away (close frame,
// unexpected EOF) and to extend the read deadline on every pong; the
// dashboard feed is push-only, so inbound payloads are discarded.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.deregister(c)
		_ = c.conn.Close()
	}()
	waitDuration := pongWaitMultiplier * pingInterval
	if err := c.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.log.Warn("ops dashboard read deadline exceeded", logging.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.deregister(c)
				return
			}
		case <-pingTicker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				h.deregister(c)
				return
			}
		}
	}
}

// ClientCount reports how many dashboards are currently attached.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
