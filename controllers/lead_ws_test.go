package controller

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeadConn records delivered events and flags overlapping writes.
type fakeLeadConn struct {
	mu       sync.Mutex
	events   []LeadEvent
	inFlight int32
	overlap  int32
	writeErr error
	closed   bool
}

func (f *fakeLeadConn) WriteJSON(v interface{}) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	f.events = append(f.events, v.(LeadEvent))
	f.mu.Unlock()
	return nil
}

func (f *fakeLeadConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestLeadHubScopesBroadcasts(t *testing.T) {
	hub := NewLeadHub()
	acmeConn := &fakeLeadConn{}
	globexConn := &fakeLeadConn{}
	adminConn := &fakeLeadConn{}
	hub.add(acmeConn, "comp_acme")
	hub.add(globexConn, "comp_globex")
	hub.add(adminConn, "")

	hub.Broadcast(LeadEvent{Type: "created", CompanyToken: "comp_acme"})

	require.Len(t, acmeConn.events, 1)
	assert.Empty(t, globexConn.events)
	require.Len(t, adminConn.events, 1)
	assert.Equal(t, "created", adminConn.events[0].Type)
}

func TestLeadHubDropsDeadSubscribers(t *testing.T) {
	hub := NewLeadHub()
	dead := &fakeLeadConn{writeErr: errors.New("broken pipe")}
	live := &fakeLeadConn{}
	hub.add(dead, "comp_acme")
	hub.add(live, "comp_acme")

	hub.Broadcast(LeadEvent{Type: "updated", CompanyToken: "comp_acme"})

	assert.True(t, dead.closed)
	require.Len(t, live.events, 1)

	hub.mu.RLock()
	_, stillThere := hub.conns[dead]
	hub.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestLeadHubSerializesWritesPerConnection(t *testing.T) {
	hub := NewLeadHub()
	conn := &fakeLeadConn{}
	hub.add(conn, "comp_acme")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(LeadEvent{Type: "updated", CompanyToken: "comp_acme"})
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&conn.overlap),
		"writes to one connection must never overlap")
	assert.Len(t, conn.events, 16)
}
