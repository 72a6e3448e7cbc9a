package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iudanet/sitekeeper/internal/models"
)

// ErrLoopClosed is returned when work is posted to a stopped loop.
var ErrLoopClosed = errors.New("engine loop is closed")

// Loop runs queued closures one at a time on a single goroutine. Everything the
// loop owns is mutated only from inside those closures, so it needs no locks.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with a queue of the given size.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 1
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run executes queued closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post queues fn. Blocks while the queue is full; returns false if the loop stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// состояния closure, поставленной через Call
const (
	callQueued int32 = iota
	callStarted
	callAbandoned
)

// Call runs fn on the loop and waits for it. If ctx ends while fn is still
// queued, fn is abandoned and never runs; once fn has started, Call waits for it,
// so a nil error always means fn ran and a non-nil one means it did not.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	var state atomic.Int32
	finished := make(chan struct{})
	if !l.Post(func() {
		if !state.CompareAndSwap(callQueued, callStarted) {
			return
		}
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(callQueued, callAbandoned) {
			return ctx.Err()
		}
		<-finished
		return nil
	case <-l.done:
		if state.CompareAndSwap(callQueued, callAbandoned) {
			return ErrLoopClosed
		}
		// closure уже запущена, Run дождется ее завершения
		<-finished
		return nil
	}
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// call runs fn on l and returns its results.
func call[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	if cerr := l.Call(ctx, func() {
		result, err = fn()
	}); cerr != nil {
		var zero T
		if errors.Is(cerr, context.DeadlineExceeded) {
			// до цикла не дошли, состояние не менялось
			return zero, fmt.Errorf("%w: %w", models.ErrTimeout, cerr)
		}
		return zero, cerr
	}
	return result, err
}
