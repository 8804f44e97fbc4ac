package channel

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Resilient prefers push delivery and keeps a poller attached as a
// fallback. Polled events are surfaced only while the NATS connection
// reports disconnected, so subscribers see at-least-once delivery across
// an outage instead of silence.
type Resilient struct {
	conn     *nats.Conn
	push     *NATSChannel
	fallback *PollingChannel
}

func NewResilient(nc *nats.Conn, push *NATSChannel, fallback *PollingChannel) *Resilient {
	return &Resilient{conn: nc, push: push, fallback: fallback}
}

func (r *Resilient) Publish(ctx context.Context, ev Event) error {
	// nats.go buffers publishes while reconnecting, so push is always
	// the write path
	return r.push.Publish(ctx, ev)
}

func (r *Resilient) Subscribe(gameID string, fn func(Event)) (func(), error) {
	stopPush, err := r.push.Subscribe(gameID, fn)
	if err != nil {
		return nil, err
	}
	stopPoll, err := r.fallback.Subscribe(gameID, func(ev Event) {
		if r.conn.IsConnected() {
			return
		}
		fn(ev)
	})
	if err != nil {
		stopPush()
		return nil, err
	}
	return func() {
		stopPush()
		stopPoll()
	}, nil
}
