package dbtask

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Reclaimer takes back a ready Task's connection.
type Reclaimer interface {
	Reclaim(h Handle) bool
}

// ReclaimFunc adapts a function to Reclaimer.
type ReclaimFunc func(h Handle) bool

func (f ReclaimFunc) Reclaim(h Handle) bool { return f(h) }

// AnyPool reclaims each Task into the pool that leased it.
var AnyPool Reclaimer = ReclaimFunc(Release)

// Orphans holds Tasks whose owner went away before they finished. It keeps
// polling them so their connections go back to the pool.
type Orphans struct {
	pool Reclaimer

	mu    sync.Mutex
	items []Handle
}

func NewOrphans(pool Reclaimer) *Orphans {
	return &Orphans{pool: pool}
}

func (o *Orphans) Adopt(hs ...Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			o.items = append(o.items, h)
		}
	}
	metricOrphans.Set(float64(len(o.items)))
}

// Poll reclaims every ready orphan and returns how many were reclaimed.
func (o *Orphans) Poll() int {
	o.mu.Lock()
	var ready []Handle
	kept := o.items[:0]
	for _, h := range o.items {
		if h.Ready() {
			ready = append(ready, h)
		} else {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(o.items); i++ {
		o.items[i] = nil
	}
	o.items = kept
	metricOrphans.Set(float64(len(o.items)))
	o.mu.Unlock()

	n := 0
	for _, h := range ready {
		if o.pool.Reclaim(h) {
			n++
		}
	}
	return n
}

func (o *Orphans) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

func (o *Orphans) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.Poll()
			}
		}
	}()
}

// Drain polls until no orphans remain or ctx ends. Used on shutdown.
func (o *Orphans) Drain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	for {
		o.Poll()
		left := o.Len()
		if left == 0 {
			return
		}
		select {
		case <-ctx.Done():
			log.Warn().Int("orphans", left).Msg("shutdown with db tasks still running")
			return
		case <-time.After(interval):
		}
	}
}

// Await blocks on task for a caller that cannot poll, such as a request
// goroutine. A finished Task goes back through rec. If ctx ends first the Task
// is adopted by orphans instead.
func Await[T any](ctx context.Context, task *Task[T], rec Reclaimer, orphans *Orphans) (T, error) {
	select {
	case <-task.Wait():
		_, v, err := task.Poll()
		rec.Reclaim(task)
		return v, err
	case <-ctx.Done():
		orphans.Adopt(task)
		var zero T
		return zero, ctx.Err()
	}
}
