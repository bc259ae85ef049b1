package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avenlon/sitepulse/scan"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

// MaxClients bounds concurrent websocket connections.
const MaxClients = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressMessage is the frame pushed to websocket clients on every
// processing tick.
type ProgressMessage struct {
	Type      string         `json:"type"`
	Job       *scan.Snapshot `json:"job"`
	Timestamp int64          `json:"timestamp"`
}

// wsClient is one websocket connection. Outbound frames go through send so
// the broadcaster never blocks on a slow peer.
type wsClient struct {
	conn      *websocket.Conn
	send      chan *ProgressMessage
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// HandleWebSocket handles requests to /ws/scan
// Upgrades to a websocket and streams scan progress until the peer leaves.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan *ProgressMessage, 16),
	}

	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection", "remote", r.RemoteAddr)
		conn.Close()
		return
	}
	s.clients[client] = true
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("WebSocket client connected", "remote", r.RemoteAddr, "total_clients", total)

	// Send the current state immediately so a mid-scan connection does not
	// wait for the next tick.
	if snap, _, err := s.engine.Status(); err == nil && snap != nil {
		select {
		case client.send <- &ProgressMessage{Type: "scan_progress", Job: snap, Timestamp: time.Now().Unix()}:
		default:
		}
	}

	s.wg.Add(2)
	go s.writePump(client)
	go s.readPump(client)
}

// writePump drains the client's send channel to the wire and keeps the
// connection alive with pings.
func (s *Server) writePump(client *wsClient) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				s.removeClient(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.removeClient(client)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// readPump discards inbound frames; its job is detecting the peer leaving.
func (s *Server) readPump(client *wsClient) {
	defer s.wg.Done()
	defer s.removeClient(client)

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
	}
	s.mu.Unlock()
	client.close()
}

// startProgressBroadcaster subscribes to engine progress and fans snapshots
// out to all connected clients.
func (s *Server) startProgressBroadcaster() {
	ch := s.engine.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			// Unsubscribe first (removes from list), then close.
			// Order matters: closing while still subscribed could panic on send
			s.engine.Unsubscribe(ch)
			close(ch)
		}()

		for {
			select {
			case <-s.ctx.Done():
				return
			case snap := <-ch:
				if snap == nil {
					continue
				}
				s.broadcastProgress(snap)
			}
		}
	}()
}

// broadcastProgress sends a snapshot to all connected clients with
// non-blocking sends.
func (s *Server) broadcastProgress(snap *scan.Snapshot) {
	msg := &ProgressMessage{
		Type:      "scan_progress",
		Job:       snap,
		Timestamp: time.Now().Unix(),
	}

	// Sends stay under the lock so a client torn down concurrently cannot be
	// written to after its channel closes. Sends are non-blocking, so the
	// lock is held only briefly.
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			// Channel full - skip
		}
	}
}
