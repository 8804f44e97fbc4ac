package channel

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

// GameReader is the slice of the game store polling needs.
type GameReader interface {
	Get(ctx context.Context, id string) (*models.Game, error)
}

// PollingChannel synthesizes events by re-reading game documents on a
// ticker and diffing consecutive snapshots. It is the fallback path for
// clients that cannot hold a push connection; Publish is a no-op because
// the store itself carries the state the poller reads back.
type PollingChannel struct {
	games    GameReader
	clock    clockwork.Clock
	interval time.Duration
}

func NewPollingChannel(games GameReader, cw clockwork.Clock, interval time.Duration) *PollingChannel {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingChannel{games: games, clock: cw, interval: interval}
}

func (c *PollingChannel) Publish(ctx context.Context, ev Event) error {
	return nil
}

func (c *PollingChannel) Subscribe(gameID string, fn func(Event)) (func(), error) {
	done := make(chan struct{})
	go c.poll(gameID, fn, done)
	return func() { close(done) }, nil
}

func (c *PollingChannel) poll(gameID string, fn func(Event), done chan struct{}) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	var last *models.Game
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.interval)
		game, err := c.games.Get(ctx, gameID)
		cancel()
		if err != nil {
			log.Errorf("poll of game %s: %s", gameID, err)
			continue
		}
		if game == nil {
			continue
		}

		if ev, ok := diffSnapshots(last, game); ok {
			fn(ev)
		}
		last = game
	}
}

// diffSnapshots maps a snapshot transition to the most specific event
// type. The first snapshot never fires; subscribers read current state
// on connect.
func diffSnapshots(prev, next *models.Game) (Event, bool) {
	if prev == nil {
		return Event{}, false
	}
	if prev.Status != next.Status {
		return Event{Type: EventGameStatusChanged, Game: next}, true
	}
	if numberChanged(prev.CurrentNumber, next.CurrentNumber) {
		return Event{Type: EventNumberCalled, Game: next}, true
	}
	if !next.UpdatedAt.Equal(prev.UpdatedAt) {
		return Event{Type: EventGeneralUpdate, Game: next}, true
	}
	return Event{}, false
}

func numberChanged(prev, next *int) bool {
	if prev == nil && next == nil {
		return false
	}
	if prev == nil || next == nil {
		return true
	}
	return *prev != *next
}
