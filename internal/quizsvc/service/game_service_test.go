package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
	"github.com/tamru/tambola-services/internal/quizsvc/round"
)

type fakeRoundStore struct {
	mu     sync.Mutex
	rounds map[string]*models.Round
	seq    int
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{rounds: make(map[string]*models.Round)}
}

func (f *fakeRoundStore) Create(ctx context.Context, gameID string, number int) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r := &models.Round{
		ID:     uuid.NewString(),
		GameID: gameID,
		Seq:    f.seq,
		Number: number,
		Phase:  models.RoundPhasePrepare,
		Active: true,
	}
	f.rounds[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeRoundStore) GetOpen(ctx context.Context, gameID string) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.GameID == gameID && r.Active {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRoundStore) UpdatePhase(ctx context.Context, roundID, phase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rounds[roundID]; ok {
		r.Phase = phase
	}
	return nil
}

func (f *fakeRoundStore) Close(ctx context.Context, roundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rounds[roundID]; ok {
		r.Active = false
		r.Phase = models.RoundPhaseClosed
	}
	return nil
}

type fakeResetter struct{}

func (fakeResetter) ResetAll(ctx context.Context, gameID string) error { return nil }

type gameFixture struct {
	svc    *GameService
	games  *fakeGameRepo
	rounds *fakeRoundStore
	fc     *clockwork.FakeClock
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()
	games := newFakeGameRepo()
	rounds := newFakeRoundStore()
	cfg := fastConfig()
	cfg.PrepareSeconds = 1
	cfg.ActiveSeconds = 2
	cfg.ScoringSeconds = 1
	fc := clockwork.NewFakeClock()
	coord := round.NewCoordinator(games, rounds, fakeResetter{}, nopPublisher{}, fc, cfg)
	return &gameFixture{
		svc:    NewGameService(games, coord, cfg),
		games:  games,
		rounds: rounds,
		fc:     fc,
	}
}

// runRound drives the fake clock through every tick of an open round.
func (fx *gameFixture) runRound(t *testing.T, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		fx.fc.BlockUntil(1)
		fx.fc.Advance(time.Second)
	}
}

func waitForGame(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestCreateGameGeneratesCode(t *testing.T) {
	fx := newGameFixture(t)
	ctx := context.Background()

	g, err := fx.svc.CreateGame(ctx, "host", "")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if len(g.ID) != 5 || g.ID != strings.ToUpper(g.ID) {
		t.Fatalf("generated id = %q, want 5 uppercase chars", g.ID)
	}
	if g.Status != models.GameStatusWaiting {
		t.Fatalf("status = %q, want waiting", g.Status)
	}
}

func TestCreateGameNormalizesCustomID(t *testing.T) {
	fx := newGameFixture(t)
	ctx := context.Background()

	g, err := fx.svc.CreateGame(ctx, "host", "  friday9 ")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if g.ID != "FRIDAY9" {
		t.Fatalf("id = %q, want FRIDAY9", g.ID)
	}

	// lookups with any casing resolve to the same game
	if _, err := fx.svc.GetGame(ctx, "FRIDAY9"); err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}

	if _, err := fx.svc.CreateGame(ctx, "other", "friday9"); !errs.IsValidation(err) {
		t.Fatalf("duplicate custom id error = %v, want validation error", err)
	}
}

func TestGetGameUnknown(t *testing.T) {
	fx := newGameFixture(t)
	if _, err := fx.svc.GetGame(context.Background(), "ZZZZZ"); !errs.IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestSelectNumberRunsRound(t *testing.T) {
	fx := newGameFixture(t)
	ctx := context.Background()

	g, err := fx.svc.CreateGame(ctx, "host", "QUIZ1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SelectNumber(ctx, g.ID, 7); !errs.IsValidation(err) {
		t.Fatalf("select before start error = %v, want validation error", err)
	}

	if err := fx.svc.StartGame(ctx, g.ID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	r, err := fx.svc.SelectNumber(ctx, g.ID, 7)
	if err != nil {
		t.Fatalf("SelectNumber failed: %v", err)
	}
	if r.Number != 7 || r.Phase != models.RoundPhasePrepare {
		t.Fatalf("round = %+v", r)
	}

	// a second call while the round is open is refused
	if _, err := fx.svc.SelectNumber(ctx, g.ID, 8); !errs.IsValidation(err) {
		t.Fatalf("overlapping select error = %v, want validation error", err)
	}

	fx.runRound(t, 4) // 1 prepare + 2 active + 1 scoring
	waitForGame(t, func() bool {
		open, _ := fx.rounds.GetOpen(ctx, g.ID)
		return open == nil
	})

	stored, _ := fx.games.Get(ctx, g.ID)
	if stored.CurrentNumber != nil {
		t.Fatalf("current number = %v after close, want nil", *stored.CurrentNumber)
	}
	if !stored.HasCalled(7) {
		t.Fatal("7 missing from called numbers")
	}

	// the next number can now be called, but 7 never again
	if _, err := fx.svc.SelectNumber(ctx, g.ID, 7); !errs.IsValidation(err) {
		t.Fatalf("repeat select error = %v, want validation error", err)
	}
	if _, err := fx.svc.SelectNumber(ctx, g.ID, 8); err != nil {
		t.Fatalf("next select failed: %v", err)
	}
}

func TestResetGameClearsCalledNumbers(t *testing.T) {
	fx := newGameFixture(t)
	ctx := context.Background()

	g, _ := fx.svc.CreateGame(ctx, "host", "QUIZ2")
	if err := fx.svc.StartGame(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SelectNumber(ctx, g.ID, 3); err != nil {
		t.Fatal(err)
	}
	fx.runRound(t, 4)
	waitForGame(t, func() bool {
		open, _ := fx.rounds.GetOpen(ctx, g.ID)
		return open == nil
	})

	if err := fx.svc.ResetGame(ctx, g.ID); err != nil {
		t.Fatalf("ResetGame failed: %v", err)
	}

	stored, _ := fx.games.Get(ctx, g.ID)
	if stored.Status != models.GameStatusWaiting || len(stored.CalledNumbers) != 0 {
		t.Fatalf("game after reset = %+v", stored)
	}
}
