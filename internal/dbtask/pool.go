package dbtask

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const DefaultIdleSoftCap = 30

var ErrPoolClosed = errors.New("dbtask: pool closed")

// Conn is a backend connection owned by the pool between leases.
type Conn interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a new backend connection.
type Dialer func(ctx context.Context) (Conn, error)

// lease binds one pool slot to one Task. conn is nil until the worker dials;
// it is only touched by the worker while the Task runs and by Reclaim after.
type lease struct {
	pool      *Pool
	conn      Conn
	reclaimed atomic.Bool
}

// connect reuses the leased connection when it still answers a ping and dials
// a replacement otherwise.
func (l *lease) connect(ctx context.Context, dial Dialer) error {
	if l.conn != nil {
		if err := l.conn.Ping(ctx); err == nil {
			return nil
		}
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
	c, err := dial(ctx)
	if err != nil {
		return err
	}
	l.conn = c
	return nil
}

type Stats struct {
	Idle        int `json:"idle"`
	Live        int `json:"live"`
	Outstanding int `json:"outstanding"`
}

// Pool lends connections to Tasks. idle may hold nil entries: slots whose
// connection was lost and will be redialled by the next worker that leases them.
type Pool struct {
	dial    Dialer
	softCap int

	mu          sync.Mutex
	idle        []Conn
	live        int
	outstanding int
	closed      bool
}

// NewPool dials the first connection eagerly so the pool never starts empty.
func NewPool(ctx context.Context, dial Dialer, softCap int) (*Pool, error) {
	if dial == nil {
		return nil, errors.New("dbtask: nil dialer")
	}
	if softCap <= 0 {
		softCap = DefaultIdleSoftCap
	}
	first, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial first connection: %w", err)
	}
	p := &Pool{dial: dial, softCap: softCap, idle: []Conn{first}, live: 1}
	p.publishLocked()
	return p, nil
}

func (p *Pool) acquire() *lease {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	l := &lease{pool: p}
	if len(p.idle) > 0 {
		l.conn = p.idle[0]
		p.idle[0] = nil
		p.idle = p.idle[1:]
	} else {
		p.live++
	}
	p.outstanding++
	p.publishLocked()
	return l
}

// Reclaim returns a ready Task's connection to the idle queue, or closes it
// when the queue is already at the soft cap. It reports whether the Task
// was reclaimed by this call.
func (p *Pool) Reclaim(h Handle) bool {
	l := h.lease()
	if l == nil {
		log.Warn().Str("category", string(h.Category())).Msg("tried to reclaim a task without a pooled connection")
		return false
	}
	if !h.Ready() {
		log.Warn().Str("category", string(h.Category())).Msg("tried to reclaim a task that is still running")
		return false
	}
	if !l.reclaimed.CompareAndSwap(false, true) {
		log.Warn().Str("category", string(h.Category())).Msg("task already reclaimed")
		return false
	}

	var toClose Conn
	p.mu.Lock()
	switch {
	case p.closed:
		toClose = l.conn
		p.live--
	case len(p.idle) >= p.softCap:
		toClose = l.conn
		p.live--
		metricEvictions.Inc()
	default:
		p.idle = append(p.idle, l.conn)
	}
	if p.outstanding == 0 {
		log.Warn().Str("category", string(h.Category())).Msg("reclaimed a task with zero outstanding")
	} else {
		p.outstanding--
	}
	p.publishLocked()
	p.mu.Unlock()

	if toClose != nil {
		_ = toClose.Close(context.Background())
	}
	if err := h.Err(); err != nil {
		log.Error().Err(err).Str("category", string(h.Category())).Msg("db task failed")
	}
	return true
}

// Release reclaims h into the pool that leased it. Callers holding Tasks from
// more than one pool use it instead of Pool.Reclaim. Tasks made by Done own
// no connection and are ignored.
func Release(h Handle) bool {
	l := h.lease()
	if l == nil || l.pool == nil {
		return false
	}
	return l.pool.Reclaim(h)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: len(p.idle), Live: p.live, Outstanding: p.outstanding}
}

func (p *Pool) Status() string {
	s := p.Stats()
	return fmt.Sprintf("DB STATUS --- Connections: %d/%d idle. Outstanding tasks: %d.", s.Idle, s.Live, s.Outstanding)
}

// Close closes idle connections. Connections still leased are closed when
// their Tasks are reclaimed.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	p.closed = true
	outstanding := p.outstanding
	p.publishLocked()
	p.mu.Unlock()

	log.Info().Int("idle", len(idle)).Msg("closing idle db connections")
	for _, c := range idle {
		if c != nil {
			_ = c.Close(ctx)
		}
	}
	if outstanding > 0 {
		log.Warn().Int("outstanding", outstanding).Msg("outstanding db tasks were never reclaimed")
	}
}

func (p *Pool) publishLocked() {
	metricConnections.WithLabelValues("idle").Set(float64(len(p.idle)))
	metricConnections.WithLabelValues("live").Set(float64(p.live))
	metricOutstanding.Set(float64(p.outstanding))
}
