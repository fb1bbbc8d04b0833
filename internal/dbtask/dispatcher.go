package dbtask

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxWorkers      = 64
	DefaultSpawnRetryDelay = 50 * time.Millisecond
	DefaultDialTimeout     = 5 * time.Second
)

// Work runs on a worker goroutine with the leased connection.
type Work[T any] func(ctx context.Context, conn Conn) (T, error)

type DispatcherOptions struct {
	MaxWorkers      int
	SpawnRetryDelay time.Duration
	DialTimeout     time.Duration
}

// Dispatcher starts Tasks on pooled connections within a bounded worker budget.
type Dispatcher struct {
	pool        *Pool
	workers     chan struct{}
	retryDelay  time.Duration
	dialTimeout time.Duration
}

func NewDispatcher(pool *Pool, opts DispatcherOptions) *Dispatcher {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.SpawnRetryDelay <= 0 {
		opts.SpawnRetryDelay = DefaultSpawnRetryDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return &Dispatcher{
		pool:        pool,
		workers:     make(chan struct{}, opts.MaxWorkers),
		retryDelay:  opts.SpawnRetryDelay,
		dialTimeout: opts.DialTimeout,
	}
}

func (d *Dispatcher) Pool() *Pool { return d.pool }

// Submit leases a connection and runs work on a new worker. When no worker can
// be started it waits the retry delay once; if that fails too the returned Task
// is already ready with ErrResourceExhausted. The Task still holds its lease and
// must be reclaimed like any other.
func Submit[T any](d *Dispatcher, category Category, work Work[T]) *Task[T] {
	metricSubmitted.WithLabelValues(string(category)).Inc()
	l := d.pool.acquire()
	if l == nil {
		metricFailed.WithLabelValues(string(category)).Inc()
		var zero T
		return Done(category, zero, ErrPoolClosed)
	}
	t := newTask[T](category, l)

	if !d.tryStart() {
		metricSpawnRetries.Inc()
		log.Warn().Str("category", string(category)).Dur("retry_in", d.retryDelay).Msg("error starting db worker on attempt #1, retrying")
		time.Sleep(d.retryDelay)
		if !d.tryStart() {
			metricSpawnFailures.Inc()
			metricFailed.WithLabelValues(string(category)).Inc()
			log.Error().Str("category", string(category)).Msg("error starting db worker on attempt #2, giving up")
			var zero T
			t.finish(zero, ErrResourceExhausted)
			return t
		}
	}

	go func() {
		defer func() { <-d.workers }()
		result, err := runWork(d, l, work)
		if err != nil {
			metricFailed.WithLabelValues(string(category)).Inc()
		}
		t.finish(result, err)
	}()
	return t
}

func (d *Dispatcher) tryStart() bool {
	select {
	case d.workers <- struct{}{}:
		return true
	default:
		return false
	}
}

func runWork[T any](d *Dispatcher, l *lease, work Work[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db task panicked: %v", r)
		}
	}()
	ctx := context.Background()
	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	err = l.connect(dialCtx, d.pool.dial)
	cancel()
	if err != nil {
		return result, fmt.Errorf("connect: %w", err)
	}
	return work(ctx, l.conn)
}
