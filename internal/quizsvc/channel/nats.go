package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const subjectPrefix = "quiz.game."

func subjectFor(gameID string) string {
	return subjectPrefix + gameID
}

// NATSChannel pushes game events over NATS, one subject per game.
type NATSChannel struct {
	conn *nats.Conn
}

func NewNATSChannel(nc *nats.Conn) *NATSChannel {
	return &NATSChannel{conn: nc}
}

func (c *NATSChannel) Publish(ctx context.Context, ev Event) error {
	if ev.Game == nil {
		return fmt.Errorf("event %s has no game", ev.Type)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event for game %s: %w", ev.Game.ID, err)
	}
	if err := c.conn.Publish(subjectFor(ev.Game.ID), payload); err != nil {
		return fmt.Errorf("failed to publish event for game %s: %w", ev.Game.ID, err)
	}
	return nil
}

func (c *NATSChannel) Subscribe(gameID string, fn func(Event)) (func(), error) {
	sub, err := c.conn.Subscribe(subjectFor(gameID), func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Errorf("dropping malformed event on %s: %s", msg.Subject, err)
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to game %s: %w", gameID, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Errorf("unsubscribe for game %s: %s", gameID, err)
		}
	}, nil
}
