package round

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/tamru/tambola-services/internal/quizsvc/channel"
	"github.com/tamru/tambola-services/internal/quizsvc/config"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

type fakeGameStore struct {
	mu    sync.Mutex
	games map[string]*models.Game
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: make(map[string]*models.Game)}
}

func (s *fakeGameStore) put(g *models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

func (s *fakeGameStore) Get(ctx context.Context, id string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.CalledNumbers = append([]int(nil), g.CalledNumbers...)
	return &cp, nil
}

func (s *fakeGameStore) AppendCalledNumber(ctx context.Context, id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok || g.Status != models.GameStatusActive || g.HasCalled(n) {
		return errs.Conflictf("append %d to game %s rejected", n, id)
	}
	g.CalledNumbers = append(g.CalledNumbers, n)
	num := n
	g.CurrentNumber = &num
	return nil
}

func (s *fakeGameStore) ClearCurrentNumber(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		g.CurrentNumber = nil
	}
	return nil
}

func (s *fakeGameStore) UpdateStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		g.Status = status
	}
	return nil
}

func (s *fakeGameStore) Reset(ctx context.Context, id string, clearWinners bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		g.Status = models.GameStatusWaiting
		g.CalledNumbers = nil
		g.CurrentNumber = nil
		if clearWinners {
			g.Winners = nil
			g.WinnerTimes = nil
		}
	}
	return nil
}

type fakeRoundStore struct {
	mu     sync.Mutex
	rounds map[string]*models.Round
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{rounds: make(map[string]*models.Round)}
}

func (s *fakeRoundStore) Create(ctx context.Context, gameID string, number int) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := 0
	for _, r := range s.rounds {
		if r.GameID == gameID && r.Seq > seq {
			seq = r.Seq
		}
	}
	r := &models.Round{
		ID:     uuid.New().String(),
		GameID: gameID,
		Seq:    seq + 1,
		Number: number,
		Phase:  models.RoundPhasePrepare,
		Active: true,
	}
	s.rounds[r.ID] = r
	return r, nil
}

func (s *fakeRoundStore) GetOpen(ctx context.Context, gameID string) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GameID == gameID && r.Active {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeRoundStore) UpdatePhase(ctx context.Context, roundID, phase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rounds[roundID]; ok {
		r.Phase = phase
	}
	return nil
}

func (s *fakeRoundStore) Close(ctx context.Context, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rounds[roundID]; ok {
		r.Active = false
		r.Phase = models.RoundPhaseClosed
	}
	return nil
}

func (s *fakeRoundStore) phase(roundID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rounds[roundID]; ok {
		return r.Phase
	}
	return ""
}

func (s *fakeRoundStore) openCount(gameID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rounds {
		if r.GameID == gameID && r.Active {
			n++
		}
	}
	return n
}

type fakeResetter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeResetter) ResetAll(ctx context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []channel.Event
}

func (p *fakePublisher) Publish(ctx context.Context, ev channel.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []channel.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []channel.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func testConfig() config.Config {
	c := config.Default()
	c.PrepareSeconds = 2
	c.ActiveSeconds = 3
	c.ScoringSeconds = 2
	return c
}

func newTestCoordinator() (*Coordinator, *fakeGameStore, *fakeRoundStore, *fakePublisher, *clockwork.FakeClock) {
	games := newFakeGameStore()
	rounds := newFakeRoundStore()
	pub := &fakePublisher{}
	fc := clockwork.NewFakeClock()
	coord := NewCoordinator(games, rounds, &fakeResetter{}, pub, fc, testConfig())
	return coord, games, rounds, pub, fc
}

func activeGame(id string) *models.Game {
	return &models.Game{ID: id, Status: models.GameStatusActive}
}

// advanceSeconds steps the fake clock one tick at a time, waiting for the
// round clock to register its next timer before each step.
func advanceSeconds(fc *clockwork.FakeClock, n int) {
	for i := 0; i < n; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSelectNumberGuards(t *testing.T) {
	coord, games, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	games.put(&models.Game{ID: "WAIT1", Status: models.GameStatusWaiting})

	tests := []struct {
		name   string
		gameID string
		number int
	}{
		{name: "unknown game", gameID: "NOPE", number: 7},
		{name: "game not active", gameID: "WAIT1", number: 7},
		{name: "number below board", gameID: "WAIT1", number: 0},
		{name: "number above board", gameID: "WAIT1", number: 51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coord.SelectNumber(ctx, tt.gameID, tt.number)
			if !errs.IsValidation(err) {
				t.Fatalf("SelectNumber() error = %v, want validation error", err)
			}
		})
	}
}

func TestSelectNumberRejectsDuplicate(t *testing.T) {
	coord, games, rounds, _, fc := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	if _, err := coord.SelectNumber(ctx, "G1", 7); err != nil {
		t.Fatalf("first SelectNumber(7) failed: %v", err)
	}

	// run the round to completion so only the duplicate check can reject
	advanceSeconds(fc, 7)
	waitFor(t, "round to close", func() bool { return rounds.openCount("G1") == 0 })

	_, err := coord.SelectNumber(ctx, "G1", 7)
	if !errs.IsValidation(err) {
		t.Fatalf("duplicate SelectNumber(7) error = %v, want validation error", err)
	}

	g, _ := games.Get(ctx, "G1")
	if len(g.CalledNumbers) != 1 || g.CalledNumbers[0] != 7 {
		t.Fatalf("called numbers = %v, want [7]", g.CalledNumbers)
	}
}

func TestSelectNumberRejectsWhileRoundOpen(t *testing.T) {
	coord, games, _, _, _ := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	if _, err := coord.SelectNumber(ctx, "G1", 7); err != nil {
		t.Fatalf("SelectNumber(7) failed: %v", err)
	}
	if _, err := coord.SelectNumber(ctx, "G1", 8); !errs.IsValidation(err) {
		t.Fatalf("SelectNumber(8) during open round error = %v, want validation error", err)
	}
}

func TestRoundLifecycle(t *testing.T) {
	coord, games, rounds, pub, fc := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	r, err := coord.SelectNumber(ctx, "G1", 12)
	if err != nil {
		t.Fatalf("SelectNumber failed: %v", err)
	}
	if r.Seq != 1 || r.Phase != models.RoundPhasePrepare || !r.Active {
		t.Fatalf("round = %+v, want seq 1, phase prepare, active", r)
	}

	g, _ := games.Get(ctx, "G1")
	if g.CurrentNumber == nil || *g.CurrentNumber != 12 {
		t.Fatalf("current number = %v, want 12", g.CurrentNumber)
	}
	if rounds.openCount("G1") != 1 {
		t.Fatalf("open rounds = %d, want 1", rounds.openCount("G1"))
	}

	advanceSeconds(fc, 2) // prepare elapses
	waitFor(t, "active phase", func() bool { return rounds.phase(r.ID) == models.RoundPhaseActive })

	advanceSeconds(fc, 3) // question window elapses
	waitFor(t, "scoring phase", func() bool { return rounds.phase(r.ID) == models.RoundPhaseScoring })

	advanceSeconds(fc, 2) // scoring elapses
	waitFor(t, "round closed", func() bool { return rounds.phase(r.ID) == models.RoundPhaseClosed })

	waitFor(t, "current number cleared", func() bool {
		g, _ := games.Get(ctx, "G1")
		return g.CurrentNumber == nil
	})
	if rounds.openCount("G1") != 0 {
		t.Fatalf("open rounds after close = %d, want 0", rounds.openCount("G1"))
	}

	// idle again: the next number may be selected and sequences advance
	r2, err := coord.SelectNumber(ctx, "G1", 13)
	if err != nil {
		t.Fatalf("SelectNumber after close failed: %v", err)
	}
	if r2.Seq != 2 {
		t.Fatalf("second round seq = %d, want 2", r2.Seq)
	}

	sawNumberCalled := false
	for _, typ := range pub.types() {
		if typ == channel.EventNumberCalled {
			sawNumberCalled = true
		}
	}
	if !sawNumberCalled {
		t.Fatal("no numberCalled event was published")
	}
}

func TestPauseBlocksNewRoundsOnly(t *testing.T) {
	coord, games, rounds, _, fc := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	r, err := coord.SelectNumber(ctx, "G1", 5)
	if err != nil {
		t.Fatalf("SelectNumber failed: %v", err)
	}

	if err := coord.PauseGame(ctx, "G1"); err != nil {
		t.Fatalf("PauseGame failed: %v", err)
	}

	// the open round's clock is not suspended by a pause
	advanceSeconds(fc, 2)
	waitFor(t, "active phase despite pause", func() bool {
		return rounds.phase(r.ID) == models.RoundPhaseActive
	})

	if _, err := coord.SelectNumber(ctx, "G1", 6); !errs.IsValidation(err) {
		t.Fatalf("SelectNumber while paused error = %v, want validation error", err)
	}

	if err := coord.ResumeGame(ctx, "G1"); err != nil {
		t.Fatalf("ResumeGame failed: %v", err)
	}
	g, _ := games.Get(ctx, "G1")
	if g.Status != models.GameStatusActive {
		t.Fatalf("status after resume = %s, want active", g.Status)
	}
}

func TestResetAbandonsOpenRound(t *testing.T) {
	coord, games, rounds, _, _ := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	if _, err := coord.SelectNumber(ctx, "G1", 5); err != nil {
		t.Fatalf("SelectNumber failed: %v", err)
	}

	if err := coord.ResetGame(ctx, "G1"); err != nil {
		t.Fatalf("ResetGame failed: %v", err)
	}

	g, _ := games.Get(ctx, "G1")
	if g.Status != models.GameStatusWaiting {
		t.Fatalf("status after reset = %s, want waiting", g.Status)
	}
	if len(g.CalledNumbers) != 0 || g.CurrentNumber != nil {
		t.Fatalf("reset left called numbers %v, current %v", g.CalledNumbers, g.CurrentNumber)
	}
	if rounds.openCount("G1") != 0 {
		t.Fatalf("open rounds after reset = %d, want 0", rounds.openCount("G1"))
	}

	// the game can be started again and the same number re-called
	if err := coord.StartGame(ctx, "G1"); err != nil {
		t.Fatalf("StartGame after reset failed: %v", err)
	}
	if _, err := coord.SelectNumber(ctx, "G1", 5); err != nil {
		t.Fatalf("SelectNumber after reset failed: %v", err)
	}
}

func TestResetClearsPlayersWhenConfigured(t *testing.T) {
	games := newFakeGameStore()
	rounds := newFakeRoundStore()
	resetter := &fakeResetter{}
	cfg := testConfig()
	cfg.ResetClearsPlayers = true
	coord := NewCoordinator(games, rounds, resetter, &fakePublisher{}, clockwork.NewFakeClock(), cfg)

	games.put(activeGame("G1"))
	if err := coord.ResetGame(context.Background(), "G1"); err != nil {
		t.Fatalf("ResetGame failed: %v", err)
	}

	resetter.mu.Lock()
	defer resetter.mu.Unlock()
	if resetter.calls != 1 {
		t.Fatalf("ResetAll calls = %d, want 1", resetter.calls)
	}
}

func TestEndGameIsTerminal(t *testing.T) {
	coord, games, _, _, _ := newTestCoordinator()
	ctx := context.Background()
	games.put(activeGame("G1"))

	if err := coord.EndGame(ctx, "G1"); err != nil {
		t.Fatalf("EndGame failed: %v", err)
	}
	if err := coord.EndGame(ctx, "G1"); !errs.IsValidation(err) {
		t.Fatalf("second EndGame error = %v, want validation error", err)
	}
	if _, err := coord.SelectNumber(ctx, "G1", 3); !errs.IsValidation(err) {
		t.Fatalf("SelectNumber on ended game error = %v, want validation error", err)
	}
}
