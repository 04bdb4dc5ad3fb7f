// Package mailer delivers outbound email through a bounded in-process queue.
package mailer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Enqueue once the mailer has been stopped.
var ErrStopped = errors.New("mailer stopped")

// Message is a fully formed email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Queue accepts messages for asynchronous delivery.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Sender performs a single delivery attempt.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Options tune the delivery loop.
type Options struct {
	Capacity   int
	RetryDelay time.Duration
}

// Mailer owns the queue and the delivery goroutine. A message that fails is
// retried once on the next loop iteration and then dropped. Nothing survives
// a restart.
type Mailer struct {
	sender     Sender
	queue      chan Message
	retryDelay time.Duration
	logger     *zap.Logger

	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a mailer. Call Start to begin delivering.
func New(sender Sender, opts Options, logger *zap.Logger) *Mailer {
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Mailer{
		sender:     sender,
		queue:      make(chan Message, opts.Capacity),
		retryDelay: opts.RetryDelay,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the delivery loop. It runs until ctx is cancelled or Stop
// is called. Subsequent calls are no-ops.
func (m *Mailer) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.run(ctx)
}

// Stop ends the delivery loop and waits for it to exit. Queued messages are
// discarded.
func (m *Mailer) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

// Enqueue blocks until the message fits in the queue, ctx is done or the
// mailer stops.
func (m *Mailer) Enqueue(ctx context.Context, msg Message) error {
	select {
	case <-m.stop:
		return ErrStopped
	default:
	}
	select {
	case m.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrStopped
	}
}

func (m *Mailer) run(ctx context.Context) {
	defer close(m.done)

	var failed []Message
	for {
		var retry <-chan time.Time
		if len(failed) > 0 {
			retry = time.After(m.retryDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-retry:
			m.retryOnce(ctx, failed)
			failed = nil
		case msg := <-m.queue:
			m.retryOnce(ctx, failed)
			failed = nil
			if err := m.sender.Send(ctx, msg); err != nil {
				m.logger.Warn("mail delivery failed, retrying once", zap.String("to", msg.To), zap.Error(err))
				failed = append(failed, msg)
			}
		}
	}
}

func (m *Mailer) retryOnce(ctx context.Context, failed []Message) {
	for _, msg := range failed {
		if err := m.sender.Send(ctx, msg); err != nil {
			m.logger.Error("mail dropped after retry", zap.String("to", msg.To), zap.Error(err))
		}
	}
}
