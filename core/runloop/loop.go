// Package runloop provides the single-writer cooperative execution loop the
// engine runs on. Detection callbacks and the overstay timer are scheduled
// as tasks on one loop, so they interleave only between tasks and the
// timeline needs no internal locking.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type (
	OnPanic func(recovered any, stack []byte)

	task struct {
		fn    func() error
		reply chan error
	}
)

var ErrStopped = errors.New("runloop stopped")

type Options struct {
	MailboxSize int
	Logger      *slog.Logger
	OnPanic     OnPanic
}

// Loop runs submitted tasks serially on one goroutine.
type Loop struct {
	log *slog.Logger

	mailbox chan task

	stop chan struct{}
	done chan struct{}

	mu     sync.Mutex
	closed bool

	onPanic OnPanic
}

func New(opt Options) *Loop {
	if opt.MailboxSize == 0 {
		opt.MailboxSize = 1024
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.OnPanic == nil {
		log := opt.Logger
		opt.OnPanic = func(recovered any, stack []byte) {
			log.Error("runloop task panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)))
		}
	}

	l := &Loop{
		log:     opt.Logger,
		mailbox: make(chan task, opt.MailboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onPanic: opt.OnPanic,
	}
	go l.run()
	return l
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Stop requests shutdown and waits for completion. Idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stop)
	<-l.done
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Submit enqueues fn without waiting for it to run. It blocks until
// enqueued, ctx is cancelled, or the loop stops.
func (l *Loop) Submit(ctx context.Context, fn func()) error {
	return l.enqueue(ctx, task{fn: func() error { fn(); return nil }})
}

// Do runs fn on the loop and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	if err := l.enqueue(ctx, task{fn: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait failed: %w", ctx.Err())
	case <-l.done:
		return ErrStopped
	case err := <-reply:
		return err
	}
}

func (l *Loop) enqueue(ctx context.Context, t task) error {
	if l.isClosed() {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("submit failed: %w", ctx.Err())
	case <-l.stop:
		return ErrStopped
	case l.mailbox <- t:
		return nil
	}
}

func (l *Loop) run() {
	defer close(l.done)

	// crash containment: a panicking task must not take the loop down
	safeRun := func(t task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				l.onPanic(r, debug.Stack())
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return t.fn()
	}

	for {
		select {
		case <-l.stop:
			return
		case t := <-l.mailbox:
			err := safeRun(t)
			if t.reply != nil {
				t.reply <- err
			}
		}
	}
}
