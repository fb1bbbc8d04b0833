package dbtask

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	id int

	mu      sync.Mutex
	pingErr error
	closed  bool
}

func (c *fakeConn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.pingErr
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) breakConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = errors.New("server has gone away")
}

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{id: len(d.conns) + 1}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dialed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) closedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if c.isClosed() {
			n++
		}
	}
	return n
}

func newTestPool(t *testing.T, softCap int) (*Pool, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	p, err := NewPool(context.Background(), d.Dial, softCap)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p, d
}

func waitReady[T any](t *testing.T, task *Task[T]) {
	t.Helper()
	select {
	case <-task.Wait():
	case <-time.After(2 * time.Second):
		t.Fatalf("%s task did not become ready", task.Category())
	}
}

func connID(_ context.Context, c Conn) (int, error) {
	return c.(*fakeConn).id, nil
}

func assertPoolInvariants(t *testing.T, p *Pool) {
	t.Helper()
	s := p.Stats()
	if s.Live < s.Idle {
		t.Fatalf("live %d < idle %d", s.Live, s.Idle)
	}
	if s.Outstanding < 0 {
		t.Fatalf("outstanding %d < 0", s.Outstanding)
	}
}
