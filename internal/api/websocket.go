package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// WSMessage is the client-to-server message envelope.
type WSMessage struct {
	Type        string `json:"type"` // subscribe, unsubscribe, approve, reject, cancel
	ExecutionID string `json:"execution_id,omitempty"`
}

// WSHandler manages WebSocket connections over the event bus.
type WSHandler struct {
	upgrader websocket.Upgrader
	server   *Server
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*wsConnection]struct{}
}

// wsConnection tracks a single WebSocket connection and its subscription.
type wsConnection struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu          sync.Mutex
	executionID string
	eventCh     <-chan events.Event
	stopForward chan struct{}
}

// NewWSHandler creates a WebSocket handler.
func NewWSHandler(server *Server, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		server: server,
		logger: logger,
		conns:  make(map[*wsConnection]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConnection{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.readPump(c)
	go h.writePump(c)
}

func (h *WSHandler) readPump(c *wsConnection) {
	defer h.closeConnection(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error", "error", err)
			}
			return
		}
		h.handleMessage(c, raw)
	}
}

func (h *WSHandler) writePump(c *wsConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleMessage dispatches one client message.
func (h *WSHandler) handleMessage(c *wsConnection, raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("invalid websocket message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		h.subscribe(c, msg.ExecutionID)
	case "unsubscribe":
		h.unsubscribe(c)
	case "approve":
		if err := h.server.approvals.Resolve(msg.ExecutionID, true, db.SourceWeb); err != nil {
			h.sendError(c, err.Error())
		}
	case "reject":
		if err := h.server.approvals.Resolve(msg.ExecutionID, false, db.SourceWeb); err != nil {
			h.sendError(c, err.Error())
		}
	case "cancel":
		h.server.engine.Cancel(msg.ExecutionID)
	default:
		h.logger.Warn("unknown websocket message type", "type", msg.Type)
	}
}

// subscribe attaches the connection to an execution's event feed and sends
// the init snapshot. Any prior subscription is dropped first.
func (h *WSHandler) subscribe(c *wsConnection, executionID string) {
	if executionID == "" {
		executionID = events.GlobalID
	}
	h.unsubscribe(c)

	ch := h.server.bus.Subscribe(executionID)
	stop := make(chan struct{})

	c.mu.Lock()
	c.executionID = executionID
	c.eventCh = ch
	c.stopForward = stop
	c.mu.Unlock()

	if executionID != events.GlobalID {
		h.sendEvent(c, h.server.initSnapshot(executionID))
	}

	go func() {
		for {
			select {
			case ev, open := <-ch:
				if !open {
					return
				}
				h.sendEvent(c, ev)
			case <-stop:
				return
			case <-c.done:
				return
			}
		}
	}()
}

func (h *WSHandler) unsubscribe(c *wsConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventCh != nil {
		close(c.stopForward)
		h.server.bus.Unsubscribe(c.executionID, c.eventCh)
		c.eventCh = nil
		c.stopForward = nil
		c.executionID = ""
	}
}

func (h *WSHandler) sendEvent(c *wsConnection, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer drops behind.
	}
}

func (h *WSHandler) sendError(c *wsConnection, message string) {
	data, _ := json.Marshal(map[string]string{"type": "error", "error": message})
	select {
	case c.send <- data:
	default:
	}
}

func (h *WSHandler) closeConnection(c *wsConnection) {
	h.mu.Lock()
	_, open := h.conns[c]
	if open {
		delete(h.conns, c)
	}
	h.mu.Unlock()
	if !open {
		return
	}

	h.unsubscribe(c)
	close(c.done)
	_ = c.conn.Close()
}
