package controller

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
)

// LeadEvent is pushed to every dashboard subscribed to the lead stream.
type LeadEvent struct {
	Type         string    `json:"type"` // created, updated, archived
	LeadToken    string    `json:"lead_token"`
	LeadName     string    `json:"lead_name"`
	CompanyToken string    `json:"company_token"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// leadConn is the slice of the websocket connection the hub needs.
type leadConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// leadSubscriber wraps a connection with its tenant scope and a write
// lock: the websocket contract forbids concurrent writes to one conn,
// and two handlers can broadcast at the same time.
type leadSubscriber struct {
	conn    leadConn
	scope   string
	writeMu sync.Mutex
}

func (s *leadSubscriber) send(event LeadEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(event)
}

// LeadHub fans lead events out to websocket subscribers. Subscribers are
// keyed by company token so each dashboard only sees its own tenant;
// Super Admin connections subscribe with an empty token and see everything.
type LeadHub struct {
	mu    sync.RWMutex
	conns map[leadConn]*leadSubscriber
}

func NewLeadHub() *LeadHub {
	return &LeadHub{
		conns: make(map[leadConn]*leadSubscriber),
	}
}

func (h *LeadHub) add(c leadConn, companyToken string) {
	h.mu.Lock()
	h.conns[c] = &leadSubscriber{conn: c, scope: companyToken}
	h.mu.Unlock()
}

func (h *LeadHub) remove(c leadConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Broadcast delivers the event to every subscriber allowed to see it.
// Dead connections are dropped on the next write error.
func (h *LeadHub) Broadcast(event LeadEvent) {
	h.mu.RLock()
	targets := make([]*leadSubscriber, 0, len(h.conns))
	for _, sub := range h.conns {
		if sub.scope == "" || sub.scope == event.CompanyToken {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.send(event); err != nil {
			log.WithError(err).Debug("dropping dead lead stream subscriber")
			h.remove(sub.conn)
			sub.conn.Close()
		}
	}
}

// Subscribe is the websocket handler for /leads/stream. The route puts
// the tenant scope in Locals after resolving the session; the client has
// no say in it.
func (h *LeadHub) Subscribe(c *websocket.Conn) {
	scope, _ := c.Locals("stream_scope").(string)
	h.add(c, scope)
	defer func() {
		h.remove(c)
		c.Close()
	}()

	// Reads only serve to detect the peer going away
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
