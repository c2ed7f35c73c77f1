package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout is reported when a batch deadline fires before every unit finished
var ErrTimeout = errors.New("batch timed out")

// DefaultTimeout is used when neither the pool nor the call supplies a timeout
const DefaultTimeout = 30 * time.Second

// Pool runs batches of independent work units on a bounded number of workers
type Pool struct {
	logger  *zap.Logger
	workers int
	timeout time.Duration
}

// New creates a pool with the given worker count and default batch timeout
func New(logger *zap.Logger, workers int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		logger:  logger,
		workers: workers,
		timeout: timeout,
	}
}

// Workers returns the maximum number of concurrently running units
func (p *Pool) Workers() int {
	return p.workers
}

type outcome[R any] struct {
	index  int
	result R
	err    error
}

// RunAll runs fn once per item on the pool's workers and blocks until every unit has
// finished or timeout elapses. A zero timeout uses the pool default.
//
// Units that fail or panic are logged and left out of the result. When the deadline
// fires, units still running are abandoned: their context is cancelled and whatever they
// eventually return is discarded. Result order is unspecified.
func RunAll[I, R any](ctx context.Context, p *Pool, items []I, fn func(ctx context.Context, item I) (R, error), timeout time.Duration) []R {
	if len(items) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = p.timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workers := p.workers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)
	// Buffered so that abandoned units never block on delivery
	outcomes := make(chan outcome[R], len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := invoke(runCtx, fn, items[idx])
				outcomes <- outcome[R]{index: idx, result: result, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range items {
			select {
			case jobs <- idx:
			case <-runCtx.Done():
				return
			}
		}
	}()

	p.logger.Debug("Dispatched batch",
		zap.Int("items", len(items)),
		zap.Int("workers", workers),
		zap.Duration("timeout", timeout))

	results := make([]R, 0, len(items))
	collect := func(o outcome[R]) {
		if o.err != nil {
			p.logger.Error("Error processing item",
				zap.Int("index", o.index),
				zap.String("item", fmt.Sprint(items[o.index])),
				zap.Error(o.err))
			return
		}
		results = append(results, o.result)
	}

	for completed := 0; completed < len(items); {
		select {
		case o := <-outcomes:
			completed++
			collect(o)

		case <-runCtx.Done():
			// Units that finished before the deadline was observed still count
		drain:
			for completed < len(items) {
				select {
				case o := <-outcomes:
					completed++
					collect(o)
				default:
					break drain
				}
			}
			if completed == len(items) {
				continue
			}
			reason := ErrTimeout
			if ctx.Err() != nil {
				reason = ctx.Err()
			}
			p.logger.Warn("Abandoning unfinished items",
				zap.Int("completed", completed),
				zap.Int("abandoned", len(items)-completed),
				zap.Error(reason))
			go func() {
				wg.Wait()
				p.logger.Debug("Abandoned workers drained")
			}()
			return results
		}
	}

	wg.Wait()
	return results
}

// invoke runs fn and converts a panic into an error so one unit cannot take down the batch
func invoke[I, R any](ctx context.Context, fn func(ctx context.Context, item I) (R, error), item I) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}
