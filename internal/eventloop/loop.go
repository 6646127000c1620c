// Package eventloop runs tasks one at a time on a dedicated goroutine.
//
// A Loop models the single-threaded scheduler of a browsing context: every
// task runs to completion before the next one starts, and tasks posted while a
// task is running are queued behind everything already posted.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"
)

// ErrClosed is returned when posting to a closed loop.
var ErrClosed = errors.New("event loop closed")

// Task is a unit of work run on the loop goroutine. The context identifies
// the loop, so Call made with it from inside a task runs inline.
type Task func(ctx context.Context)

type loopKey struct{}

// Loop executes posted tasks sequentially.
type Loop struct {
	ctx  context.Context
	log  pslog.Logger
	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	queue  []Task
	closed bool
}

// New starts a loop. The logger is taken from ctx.
func New(ctx context.Context) *Loop {
	if ctx == nil {
		ctx = context.Background()
	}
	l := &Loop{
		log:  pslog.Ctx(ctx),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.ctx = context.WithValue(context.WithoutCancel(ctx), loopKey{}, l)
	go l.run()
	return l
}

// InLoop reports whether ctx was handed out by this loop to a running task.
func (l *Loop) InLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

// Post queues task behind every task already queued.
func (l *Loop) Post(task Task) error {
	if task == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
	return nil
}

// Call runs fn on the loop and waits for it to finish. When ctx belongs to a
// task of this loop, fn runs inline as part of the current task.
//
// A nil error means fn ran. If ctx ends while the task is still queued the
// task is abandoned and fn never runs; once fn has started Call waits for it
// and returns nil.
func (l *Loop) Call(ctx context.Context, fn Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.InLoop(ctx) {
		fn(ctx)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var state atomic.Int32
	finished := make(chan struct{})
	if err := l.Post(func(taskCtx context.Context) {
		defer close(finished)
		if !state.CompareAndSwap(callQueued, callRunning) {
			l.log.Trace("eventloop call abandoned")
			return
		}
		fn(taskCtx)
	}); err != nil {
		return err
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
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

const (
	callQueued int32 = iota
	callRunning
	callAbandoned
)

// Close stops accepting tasks, runs what is already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.signal()
	<-l.done
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for range l.wake {
		for {
			task, closed := l.next()
			if task == nil {
				if closed {
					return
				}
				break
			}
			l.runTask(task)
		}
	}
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, l.closed
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, l.closed
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panicked", "panic", r)
		}
	}()
	task(l.ctx)
}
