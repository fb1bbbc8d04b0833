package dbtask

import (
	"errors"
	"sync"
)

// ErrResourceExhausted is attached to a Task whose worker could not be started.
var ErrResourceExhausted = errors.New("dbtask: no worker available")

// Category names the kind of backend operation a Task performs.
type Category string

// Handle is the type-erased view of a Task used by the pool and the orphan list.
type Handle interface {
	Category() Category
	Ready() bool
	Err() error
	lease() *lease
}

// Task is a deferred backend operation. It becomes ready exactly once, set by its
// worker, and is polled rather than awaited.
type Task[T any] struct {
	category Category
	l        *lease

	mu     sync.Mutex
	ready  bool
	result T
	err    error
	done   chan struct{}
}

func newTask[T any](category Category, l *lease) *Task[T] {
	return &Task[T]{category: category, l: l, done: make(chan struct{})}
}

// Done returns a ready Task that owns no pooled connection.
func Done[T any](category Category, result T, err error) *Task[T] {
	t := newTask[T](category, nil)
	t.finish(result, err)
	return t
}

// Poll reports readiness and, once ready, the result and error. It never blocks.
func (t *Task[T]) Poll() (bool, T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		var zero T
		return false, zero, nil
	}
	return true, t.result, t.err
}

func (t *Task[T]) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Err is nil until the Task is ready.
func (t *Task[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task[T]) Category() Category { return t.category }

// Wait returns a channel closed when the Task becomes ready. Only shutdown
// paths and tests may block on it; game loops use Poll.
func (t *Task[T]) Wait() <-chan struct{} { return t.done }

func (t *Task[T]) lease() *lease { return t.l }

func (t *Task[T]) finish(result T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return
	}
	t.result = result
	t.err = err
	t.ready = true
	close(t.done)
}
