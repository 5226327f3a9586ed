// Package stream pushes committed cycles to websocket subscribers.
package stream

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
)

const (
	writeTimeout  = 5 * time.Second
	subscriberBuf = 4

	TypeSnapshot = "snapshot"
	TypeCycle    = "cycle"
)

type Message struct {
	Type  string        `json:"type"`
	Cycle *domain.Cycle `json:"cycle"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		return host == strings.ToLower(strings.TrimSpace(u.Host))
	},
}

// Hub fans each published cycle out to every connected client. Slow clients
// miss cycles rather than holding up the publisher.
type Hub struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[chan *domain.Cycle]struct{}
	latest *domain.Cycle
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[chan *domain.Cycle]struct{}),
	}
}

func (h *Hub) Publish(c *domain.Cycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = c
	for ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.logger.Debug("stream_subscriber_lagging", zap.String("cycle_id", c.ID))
		}
	}
}

// Subscribe returns the latest cycle seen so far together with a channel of
// future ones. Call cancel to unsubscribe.
func (h *Hub) Subscribe() (<-chan *domain.Cycle, *domain.Cycle, func()) {
	ch := make(chan *domain.Cycle, subscriberBuf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	var once sync.Once
	return ch, latest, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("stream_upgrade_failed", zap.Error(err))
		return
	}
	h.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()

	cycles, latest, cancel := h.Subscribe()
	defer cancel()

	if err := write(conn, Message{Type: TypeSnapshot, Cycle: latest}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case c := <-cycles:
			if err := write(conn, Message{Type: TypeCycle, Cycle: c}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func write(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}
