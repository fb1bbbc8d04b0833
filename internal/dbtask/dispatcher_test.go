package dbtask

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubmitDegradesToErrorTaskWhenNoWorkerAvailable(t *testing.T) {
	p, _ := newTestPool(t, 0)
	disp := NewDispatcher(p, DispatcherOptions{MaxWorkers: 1, SpawnRetryDelay: 5 * time.Millisecond})
	failuresBefore := testutil.ToFloat64(metricSpawnFailures)
	retriesBefore := testutil.ToFloat64(metricSpawnRetries)

	gate := make(chan struct{})
	busy := Submit(disp, testCategory, func(ctx context.Context, c Conn) (int, error) {
		<-gate
		return 1, nil
	})

	degraded := Submit(disp, testCategory, connID)
	ready, result, err := degraded.Poll()
	if !ready {
		t.Fatal("degraded task should be ready immediately")
	}
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
	if result != 0 {
		t.Fatalf("result = %d, want zero value", result)
	}
	if got := testutil.ToFloat64(metricSpawnRetries) - retriesBefore; got != 1 {
		t.Fatalf("spawn retries delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metricSpawnFailures) - failuresBefore; got != 1 {
		t.Fatalf("spawn failures delta = %v, want 1", got)
	}

	if !p.Reclaim(degraded) {
		t.Fatal("degraded task must still be reclaimable")
	}
	close(gate)
	waitReady(t, busy)
	p.Reclaim(busy)
	assertPoolInvariants(t, p)
	if got := p.Stats(); got.Outstanding != 0 {
		t.Fatalf("outstanding = %d, want 0", got.Outstanding)
	}
}

func TestSubmitRetriesOnceBeforeGivingUp(t *testing.T) {
	p, _ := newTestPool(t, 0)
	disp := NewDispatcher(p, DispatcherOptions{MaxWorkers: 1, SpawnRetryDelay: 500 * time.Millisecond})

	gate := make(chan struct{})
	busy := Submit(disp, testCategory, func(ctx context.Context, c Conn) (int, error) {
		<-gate
		return 1, nil
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()

	second := Submit(disp, testCategory, func(ctx context.Context, c Conn) (int, error) {
		return 2, nil
	})
	waitReady(t, second)
	if _, result, err := second.Poll(); err != nil || result != 2 {
		t.Fatalf("poll = (%d, %v), want 2 after retry", result, err)
	}
	waitReady(t, busy)
	p.Reclaim(busy)
	p.Reclaim(second)
}

func TestWorkErrorIsAttachedToTask(t *testing.T) {
	p, _ := newTestPool(t, 0)
	disp := NewDispatcher(p, DispatcherOptions{})
	boom := errors.New("duplicate key")

	task := Submit(disp, testCategory, func(ctx context.Context, c Conn) (string, error) {
		return "", boom
	})
	waitReady(t, task)
	if !errors.Is(task.Err(), boom) {
		t.Fatalf("err = %v, want %v", task.Err(), boom)
	}
	if !p.Reclaim(task) {
		t.Fatal("failed task should be reclaimed")
	}
}

func TestWorkPanicBecomesError(t *testing.T) {
	p, _ := newTestPool(t, 0)
	disp := NewDispatcher(p, DispatcherOptions{})

	task := Submit(disp, testCategory, func(ctx context.Context, c Conn) (int, error) {
		panic("nil row")
	})
	waitReady(t, task)
	if err := task.Err(); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("err = %v, want panic error", err)
	}
	p.Reclaim(task)
}

func TestPollBeforeReadyReturnsZeroValues(t *testing.T) {
	p, _ := newTestPool(t, 0)
	disp := NewDispatcher(p, DispatcherOptions{})

	gate := make(chan struct{})
	task := Submit(disp, testCategory, func(ctx context.Context, c Conn) (int, error) {
		<-gate
		return 7, errors.New("late")
	})
	for i := 0; i < 3; i++ {
		ready, result, err := task.Poll()
		if ready || result != 0 || err != nil {
			t.Fatalf("poll %d = (%v, %d, %v), want not ready", i, ready, result, err)
		}
	}
	close(gate)
	waitReady(t, task)
	ready, result, err := task.Poll()
	if !ready || result != 7 || err == nil {
		t.Fatalf("poll = (%v, %d, %v)", ready, result, err)
	}
	p.Reclaim(task)
}
