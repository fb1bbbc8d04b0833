package session

import "hostbot/internal/dbtask"

// Requester is who a Task's result is reported to. Silent requests update
// state without any chat output.
type Requester struct {
	PID       uint8
	Name      string
	Broadcast bool
	Silent    bool
}

var broadcast = Requester{Broadcast: true}

type pendingEntry[T any] struct {
	who     Requester
	subject string
	task    *dbtask.Task[T]
}

// PendingQueue holds the outstanding Tasks of one category. Completion order
// is not submission order; each tick takes whatever is ready.
type PendingQueue[T any] struct {
	category dbtask.Category
	entries  []pendingEntry[T]
}

func (q *PendingQueue[T]) Add(who Requester, subject string, task *dbtask.Task[T]) {
	q.entries = append(q.entries, pendingEntry[T]{who: who, subject: subject, task: task})
}

func (q *PendingQueue[T]) Len() int { return len(q.entries) }

// Poll removes every ready entry, reclaims its Task and then applies it. An
// entry is never put back.
func (q *PendingQueue[T]) Poll(reclaim func(dbtask.Handle) bool, apply func(who Requester, subject string, result T, err error)) int {
	if len(q.entries) == 0 {
		return 0
	}
	var ready []pendingEntry[T]
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.task.Ready() {
			ready = append(ready, e)
		} else {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = pendingEntry[T]{}
	}
	q.entries = kept

	for _, e := range ready {
		_, result, err := e.task.Poll()
		reclaim(e.task)
		apply(e.who, e.subject, result, err)
	}
	return len(ready)
}

// Drain empties the queue and returns its Tasks for adoption elsewhere.
func (q *PendingQueue[T]) Drain() []dbtask.Handle {
	out := make([]dbtask.Handle, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.task)
	}
	q.entries = nil
	return out
}
