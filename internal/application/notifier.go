package application

import (
	"context"
	"errors"
	"log/slog"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// Notifiers fans a notification out to every target and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncNotifier delivers notifications on a background worker so that slow
// targets never stall the caller. Notifications are dropped when the queue is full.
type AsyncNotifier struct {
	next   Notifier
	queue  chan string
	logger *slog.Logger
	done   chan struct{}
}

func NewAsyncNotifier(next Notifier, size int, logger *slog.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		next:   next,
		queue:  make(chan string, size),
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (n *AsyncNotifier) Notify(_ context.Context, message string) error {
	select {
	case n.queue <- message:
	default:
		n.logger.Warn("notification queue full, dropping", "message", message)
	}
	return nil
}

// Run delivers queued notifications until ctx is done.
func (n *AsyncNotifier) Run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-n.queue:
			if err := n.next.Notify(ctx, message); err != nil {
				n.logger.Warn("delivering notification", "error", err)
			}
		}
	}
}

// Done is closed once Run returns.
func (n *AsyncNotifier) Done() <-chan struct{} {
	return n.done
}
