package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

func intp(n int) *int { return &n }

func TestDiffSnapshots(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	waiting := &models.Game{ID: "G1", Status: models.GameStatusWaiting, UpdatedAt: base}
	active := &models.Game{ID: "G1", Status: models.GameStatusActive, UpdatedAt: base.Add(time.Second)}
	called := &models.Game{ID: "G1", Status: models.GameStatusActive, CurrentNumber: intp(7), UpdatedAt: base.Add(2 * time.Second)}
	touched := &models.Game{ID: "G1", Status: models.GameStatusActive, CurrentNumber: intp(7), UpdatedAt: base.Add(3 * time.Second)}

	tests := []struct {
		name     string
		prev     *models.Game
		next     *models.Game
		wantType EventType
		wantFire bool
	}{
		{"first snapshot is silent", nil, waiting, "", false},
		{"status change", waiting, active, EventGameStatusChanged, true},
		{"number called", active, called, EventNumberCalled, true},
		{"number cleared", called, active, EventNumberCalled, true},
		{"touch only", called, touched, EventGeneralUpdate, true},
		{"no change", called, called, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := diffSnapshots(tt.prev, tt.next)
			if ok != tt.wantFire {
				t.Fatalf("fired = %v, want %v", ok, tt.wantFire)
			}
			if ok && ev.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", ev.Type, tt.wantType)
			}
		})
	}
}

type snapshotSource struct {
	mu   sync.Mutex
	game *models.Game
}

func (s *snapshotSource) set(g *models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = g
}

func (s *snapshotSource) Get(ctx context.Context, id string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game, nil
}

func TestPollingChannelEmitsOnChange(t *testing.T) {
	src := &snapshotSource{}
	src.set(&models.Game{ID: "G1", Status: models.GameStatusWaiting})

	fc := clockwork.NewFakeClock()
	ch := NewPollingChannel(src, fc, time.Second)

	events := make(chan Event, 8)
	stop, err := ch.Subscribe("G1", func(ev Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer stop()

	tick := func() {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
	}

	// first observation establishes the baseline, nothing fires
	tick()

	src.set(&models.Game{ID: "G1", Status: models.GameStatusActive})
	tick()

	select {
	case ev := <-events:
		if ev.Type != EventGameStatusChanged {
			t.Fatalf("event type = %s, want %s", ev.Type, EventGameStatusChanged)
		}
		if ev.Game.Status != models.GameStatusActive {
			t.Fatalf("carried game status = %s", ev.Game.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event after status change")
	}

	// unchanged snapshots stay silent
	tick()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s for unchanged game", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
