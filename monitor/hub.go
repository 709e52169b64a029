// Package monitor streams run progress to websocket clients.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gweber/quotico-sub000/evolve"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// message types
const (
	TypeGeneration = "generation"
	TypeFinished   = "finished"
)

// Message is one frame sent to clients.
type Message struct {
	Type     string           `json:"type"`
	Progress *evolve.Progress `json:"progress,omitempty"`
	Outcome  *Outcome         `json:"outcome,omitempty"`
	Time     time.Time        `json:"time"`
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string        `json:"run_id"`
	Market     string        `json:"market"`
	Status     evolve.Status `json:"status"`
	Deployable bool          `json:"deployable"`
	Stage      string        `json:"stage"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans progress out to every connected client. It implements
// evolve.Observer; slow clients are dropped rather than blocking the run.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *Hub) Generation(p evolve.Progress) {
	h.broadcast(Message{Type: TypeGeneration, Progress: &p, Time: time.Now().UTC()})
}

func (h *Hub) Finished(rec *evolve.StrategyRecord) {
	h.broadcast(Message{
		Type: TypeFinished,
		Outcome: &Outcome{
			RunID:      rec.RunID,
			Market:     rec.Market,
			Status:     rec.Status,
			Deployable: rec.Deployable,
			Stage:      rec.Provenance.Stage,
		},
		Time: time.Now().UTC(),
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(m Message) {
	blob, err := json.Marshal(m)
	if err != nil {
		log.Printf("error: encoding %s message: %s", m.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- blob:
		default:
			log.Printf("warning: monitor client %s too slow, dropping", c.conn.RemoteAddr())
			h.drop(c)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the request and streams messages until the client
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error: websocket upgrade: %s", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("monitor client %s connected", conn.RemoteAddr())

	go c.writer()
	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
	log.Printf("monitor client %s disconnected", conn.RemoteAddr())
}

func (c *client) writer() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	defer c.conn.Close()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-t.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
