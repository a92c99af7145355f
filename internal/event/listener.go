package event

import (
	"context"
	"log/slog"
)

type Handler func(ctx context.Context, e Event) error

var events = make(chan Event, 32)

// Send queues an event for every registered handler. It never blocks the
// caller beyond the channel buffer; the scheduling path must not stall on a
// slow consumer.
func Send(e Event) {
	select {
	case events <- e:
	default:
		slog.Warn("Event queue full, dropping event", slog.String("event", e.Message()))
	}
}

type Listener struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{logger: logger}
}

// Register must be called before Listen; handlers are not synchronized.
func (l *Listener) Register(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Listen drains the event queue until the context is cancelled. Handler
// errors are logged and swallowed: a failing consumer (logger, notifier)
// must never break stimulus control.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case e := <-events:
			for _, h := range l.handlers {
				if err := h(ctx, e); err != nil {
					l.logger.Error("Error running event handler", slog.Any("error", err))
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}
