package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender delivers one message body and returns the provider's id for it.
type Sender interface {
	Send(ctx context.Context, to, body string) (id string, err error)
}

// DispatchError reports a partially delivered message: Sent parts went
// out before the failure.
type DispatchError struct {
	Sent  int
	Total int
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed after %d/%d parts: %v", e.Sent, e.Total, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

type Dispatcher struct {
	sender Sender
	to     string
	limit  int
	log    *zap.SugaredLogger
}

func NewDispatcher(sender Sender, to string, limit int, log *zap.SugaredLogger) *Dispatcher {
	if limit <= 0 {
		limit = 1600 // Twilio's body ceiling
	}
	return &Dispatcher{sender: sender, to: to, limit: limit, log: log}
}

// Dispatch splits and sends a message, in order, stopping at the first
// failure.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) error {
	parts := Split(m, d.limit)
	for i, body := range parts {
		id, err := d.sender.Send(ctx, d.to, body)
		if err != nil {
			return &DispatchError{Sent: i, Total: len(parts), Err: err}
		}
		d.log.Infow("sent message part", "part", i+1, "parts", len(parts), "id", id, "chars", len(body))
	}
	return nil
}
