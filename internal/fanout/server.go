package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// spectator is one WebSocket connection. An empty session receives every
// session's events.
type spectator struct {
	session string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
}

func (c *spectator) label() string {
	if c.session == "" {
		return "all sessions"
	}
	return c.session
}

// Server fans out bus events to connected spectators.
type Server struct {
	mu      sync.Mutex
	clients map[*spectator]struct{}
}

func NewServer(bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*spectator]struct{}),
	}
	bus.Subscribe(events.EventSessionStart, s.forward)
	bus.Subscribe(events.EventKickResolved, s.forward)
	bus.Subscribe(events.EventSessionEnd, s.forward)
	return s
}

// forward is called on the publisher's goroutine. It serializes the event
// and enqueues it to matching clients' send channels (non-blocking).
func (s *Server) forward(evt events.Event) error {
	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if c.session != "" && c.session != evt.SessionID {
			continue
		}
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("fanout: dropping message for slow client (%s)", c.label())
		}
	}
	return nil
}

// HandleWS is the HTTP handler for WebSocket upgrade requests.
// Spectators may narrow the feed with ?session=<id>.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &spectator{
		session: r.URL.Query().Get("session"),
		conn:    conn,
		send:    make(chan []byte, clientSendBuf),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	telemetry.Plainf("Fanout: Spectator Connected [%s]", c.label())

	go s.writePump(c)
	go s.readPump(c)
}

// Clients returns the number of connected spectators.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every spectator. The pumps clean up after themselves.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeDeadline))
		c.conn.Close()
	}
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so forward never sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *spectator) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error (%s): %v", c.label(), err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// Spectators send nothing upstream.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *spectator) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *spectator) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Plainf("Fanout: Spectator Disconnected [%s]", c.label())
}
