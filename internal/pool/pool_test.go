package pool

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNew_Defaults(t *testing.T) {
	p := New(zaptest.NewLogger(t), 0, 0)
	assert.Equal(t, 1, p.Workers())
	assert.Equal(t, DefaultTimeout, p.timeout)
}

func TestRunAll_CollectsAllResults(t *testing.T) {
	p := New(zaptest.NewLogger(t), 4, time.Second)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	results := RunAll(context.Background(), p, items, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	}, 0)

	sort.Ints(results)
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64, 81, 100}, results)
}

func TestRunAll_EmptyInput(t *testing.T) {
	p := New(zaptest.NewLogger(t), 4, time.Second)
	results := RunAll(context.Background(), p, []string{}, func(ctx context.Context, s string) (string, error) {
		t.Fatal("fn must not be called")
		return s, nil
	}, 0)
	assert.Empty(t, results)
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	p := New(zaptest.NewLogger(t), 3, time.Second)
	items := []string{"ok-1", "fail", "ok-2", "panic", "ok-3"}

	results := RunAll(context.Background(), p, items, func(ctx context.Context, s string) (string, error) {
		switch s {
		case "fail":
			return "", errors.New("boom")
		case "panic":
			panic("unexpected")
		}
		return s, nil
	}, 0)

	sort.Strings(results)
	assert.Equal(t, []string{"ok-1", "ok-2", "ok-3"}, results)
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	const workers = 3
	p := New(zaptest.NewLogger(t), workers, 5*time.Second)

	var running, peak int32
	items := make([]int, 12)

	RunAll(context.Background(), p, items, func(ctx context.Context, _ int) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return 0, nil
	}, 0)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(workers))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1), "units should run concurrently")
}

func TestRunAll_TimeoutReturnsAtDeadline(t *testing.T) {
	p := New(zap.NewNop(), 2, time.Minute)
	block := make(chan struct{})
	defer close(block)

	items := []string{"fast", "stuck"}
	timeout := 100 * time.Millisecond

	start := time.Now()
	results := RunAll(context.Background(), p, items, func(ctx context.Context, s string) (string, error) {
		if s == "stuck" {
			// Ignores cancellation on purpose
			<-block
		}
		return s, nil
	}, timeout)
	elapsed := time.Since(start)

	assert.Equal(t, []string{"fast"}, results)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*time.Second, "RunAll must not wait for abandoned units")
}

func TestRunAll_CancelsAbandonedUnits(t *testing.T) {
	p := New(zap.NewNop(), 1, time.Minute)
	cancelled := make(chan struct{})

	RunAll(context.Background(), p, []int{1}, func(ctx context.Context, _ int) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	}, 50*time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned unit never observed cancellation")
	}
}

func TestRunAll_CallerCancellation(t *testing.T) {
	p := New(zap.NewNop(), 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := RunAll(ctx, p, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		<-ctx.Done()
		return n, nil
	}, 0)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.LessOrEqual(t, len(results), 3)
}

func TestRunAll_KeepsResultsFinishedBeforeCancellation(t *testing.T) {
	p := New(zap.NewNop(), 1, time.Minute)

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		results := RunAll(ctx, p, []int{0, 1}, func(ctx context.Context, n int) (int, error) {
			if n == 1 {
				// The single worker only gets here after item 0's result was delivered
				cancel()
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return 42, nil
		}, 0)
		cancel()

		assert.Equal(t, []int{42}, results, "iteration %d", i)
	}
}
