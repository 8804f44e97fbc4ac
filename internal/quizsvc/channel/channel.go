package channel

import (
	"context"

	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

type EventType string

const (
	EventGameStatusChanged EventType = "gameStatusChanged"
	EventNumberCalled      EventType = "numberCalled"
	EventGeneralUpdate     EventType = "generalUpdate"
)

// Event is the host-to-player notification. Delivery is at-least-once
// and unordered; the carried Game document is the reconciliation source,
// so consumers treat any event as "re-read this snapshot".
type Event struct {
	Type EventType    `json:"type"`
	Game *models.Game `json:"game"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Channel is the host-to-player propagation abstraction. The core logic
// only sees this interface; whether events arrive over NATS push or by
// polling the store is an implementation detail.
type Channel interface {
	Publisher
	// Subscribe delivers events for one game to fn until the returned
	// stop function is called.
	Subscribe(gameID string, fn func(Event)) (func(), error)
}
