package round

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/tamru/tambola-services/internal/quizsvc/channel"
	"github.com/tamru/tambola-services/internal/quizsvc/config"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

// GameStore is the slice of the game collection the coordinator needs.
type GameStore interface {
	Get(ctx context.Context, id string) (*models.Game, error)
	AppendCalledNumber(ctx context.Context, id string, n int) error
	ClearCurrentNumber(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status string) error
	Reset(ctx context.Context, id string, clearWinners bool) error
}

type RoundStore interface {
	Create(ctx context.Context, gameID string, number int) (*models.Round, error)
	GetOpen(ctx context.Context, gameID string) (*models.Round, error)
	UpdatePhase(ctx context.Context, roundID, phase string) error
	Close(ctx context.Context, roundID string) error
}

type PlayerResetter interface {
	ResetAll(ctx context.Context, gameID string) error
}

// Coordinator is the authoritative host-side state machine: number
// selection opens a round, the clock walks it through prepare, active
// and scoring, and closure returns the game to idle so the next number
// may be called. At most one round is open per game.
type Coordinator struct {
	games   GameStore
	rounds  RoundStore
	players PlayerResetter
	pub     channel.Publisher
	clock   clockwork.Clock
	cfg     config.Config

	// onTick fans clock ticks to the host console, if anyone cares.
	onTick func(gameID string, phase Phase, remaining int)

	mu   sync.Mutex
	open map[string]*Clock // gameID -> running round clock
}

func NewCoordinator(games GameStore, rounds RoundStore, players PlayerResetter, pub channel.Publisher, cw clockwork.Clock, cfg config.Config) *Coordinator {
	return &Coordinator{
		games:   games,
		rounds:  rounds,
		players: players,
		pub:     pub,
		clock:   cw,
		cfg:     cfg,
		open:    make(map[string]*Clock),
	}
}

// SetTickFunc registers a listener for per-second round ticks. Must be
// called before the first SelectNumber.
func (c *Coordinator) SetTickFunc(fn func(gameID string, phase Phase, remaining int)) {
	c.onTick = fn
}

// SelectNumber opens a round for the chosen number. Rejected, with no
// state change, when the game is not active, the number was already
// called, or a round is still open.
func (c *Coordinator) SelectNumber(ctx context.Context, gameID string, number int) (*models.Round, error) {
	if number < 1 || number > c.cfg.BoardSize {
		return nil, errs.Validationf("number %d is outside the board 1..%d", number, c.cfg.BoardSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.open[gameID]; running {
		return nil, errs.Validationf("game %s already has an open round", gameID)
	}

	game, err := c.games.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errs.Validationf("game %s not found", gameID)
	}
	if game.Status != models.GameStatusActive {
		return nil, errs.Validationf("game %s is %s, numbers can only be called while active", gameID, game.Status)
	}
	if game.HasCalled(number) {
		return nil, errs.Validationf("number %d was already called in game %s", number, gameID)
	}

	// a round left open by a previous host process also blocks selection
	if prev, err := c.rounds.GetOpen(ctx, game.ID); err != nil {
		return nil, err
	} else if prev != nil {
		return nil, errs.Validationf("game %s already has an open round (seq %d)", gameID, prev.Seq)
	}

	if err := c.games.AppendCalledNumber(ctx, game.ID, number); err != nil {
		return nil, err
	}

	round, err := c.rounds.Create(ctx, game.ID, number)
	if err != nil {
		return nil, err
	}

	clk := NewClock(c.clock, c.cfg.PrepareSeconds, c.cfg.ActiveSeconds, c.cfg.ScoringSeconds)
	c.open[game.ID] = clk

	c.publish(ctx, channel.EventNumberCalled, game.ID)
	log.Infof("round %d opened for game %s with number %d", round.Seq, game.ID, number)

	clk.Start(c.tickFunc(game.ID), c.phaseEndFunc(game.ID, round.ID))

	return round, nil
}

func (c *Coordinator) tickFunc(gameID string) func(Phase, int) {
	if c.onTick == nil {
		return nil
	}
	return func(phase Phase, remaining int) {
		c.onTick(gameID, phase, remaining)
	}
}

// phaseEndFunc persists each phase boundary. It runs on the clock
// goroutine, so it carries its own timeout context.
func (c *Coordinator) phaseEndFunc(gameID, roundID string) func(Phase) {
	return func(phase Phase) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch phase {
		case PhasePrepare:
			if err := c.rounds.UpdatePhase(ctx, roundID, models.RoundPhaseActive); err != nil {
				log.Errorf("round %s: move to active failed: %v", roundID, err)
			}
			c.publish(ctx, channel.EventGeneralUpdate, gameID)
		case PhaseActive:
			if err := c.rounds.UpdatePhase(ctx, roundID, models.RoundPhaseScoring); err != nil {
				log.Errorf("round %s: move to scoring failed: %v", roundID, err)
			}
			c.publish(ctx, channel.EventGeneralUpdate, gameID)
		case PhaseScoring:
			if err := c.rounds.Close(ctx, roundID); err != nil {
				log.Errorf("round %s: close failed: %v", roundID, err)
			}
			if err := c.games.ClearCurrentNumber(ctx, gameID); err != nil {
				log.Errorf("game %s: clear current number failed: %v", gameID, err)
			}

			c.mu.Lock()
			delete(c.open, gameID)
			c.mu.Unlock()

			c.publish(ctx, channel.EventGeneralUpdate, gameID)
			log.Infof("round %s closed for game %s", roundID, gameID)
		}
	}
}

// StartGame moves a waiting game to active.
func (c *Coordinator) StartGame(ctx context.Context, gameID string) error {
	return c.moveStatus(ctx, gameID, models.GameStatusWaiting, models.GameStatusActive)
}

// PauseGame blocks new rounds. An already-open round's clock keeps
// running; pausing only gates number selection.
func (c *Coordinator) PauseGame(ctx context.Context, gameID string) error {
	return c.moveStatus(ctx, gameID, models.GameStatusActive, models.GameStatusPaused)
}

// ResumeGame reopens number selection on a paused game.
func (c *Coordinator) ResumeGame(ctx context.Context, gameID string) error {
	return c.moveStatus(ctx, gameID, models.GameStatusPaused, models.GameStatusActive)
}

// EndGame terminates the game. An open round is abandoned: its host
// clock is cancelled and the round closed.
func (c *Coordinator) EndGame(ctx context.Context, gameID string) error {
	game, err := c.games.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return errs.Validationf("game %s not found", gameID)
	}
	if game.Status == models.GameStatusEnded {
		return errs.Validationf("game %s already ended", gameID)
	}

	if err := c.games.UpdateStatus(ctx, game.ID, models.GameStatusEnded); err != nil {
		return err
	}
	c.abandonOpenRound(ctx, game.ID)
	c.publish(ctx, channel.EventGameStatusChanged, game.ID)
	return nil
}

// ResetGame returns the game to waiting: called numbers and current
// number cleared, any open round abandoned. Player rows survive unless
// the reset policy clears them, in which case the winner claims on the
// game document are wiped too.
func (c *Coordinator) ResetGame(ctx context.Context, gameID string) error {
	game, err := c.games.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return errs.Validationf("game %s not found", gameID)
	}

	if err := c.games.Reset(ctx, game.ID, c.cfg.ResetClearsPlayers); err != nil {
		return err
	}
	c.abandonOpenRound(ctx, game.ID)

	if c.cfg.ResetClearsPlayers {
		if err := c.players.ResetAll(ctx, game.ID); err != nil {
			return err
		}
	}

	c.publish(ctx, channel.EventGameStatusChanged, game.ID)
	log.Infof("game %s reset (clear players: %v)", game.ID, c.cfg.ResetClearsPlayers)
	return nil
}

func (c *Coordinator) moveStatus(ctx context.Context, gameID, from, to string) error {
	game, err := c.games.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return errs.Validationf("game %s not found", gameID)
	}
	if game.Status != from {
		return errs.Validationf("game %s is %s, expected %s", gameID, game.Status, from)
	}
	if err := c.games.UpdateStatus(ctx, game.ID, to); err != nil {
		return err
	}
	c.publish(ctx, channel.EventGameStatusChanged, game.ID)
	log.Infof("game %s moved %s -> %s", game.ID, from, to)
	return nil
}

// abandonOpenRound cancels the host clock and closes the persisted round,
// if one is open. Player-side clocks are allowed to run out on their own;
// their answers are moot once the game is no longer active.
func (c *Coordinator) abandonOpenRound(ctx context.Context, gameID string) {
	c.mu.Lock()
	clk, running := c.open[gameID]
	delete(c.open, gameID)
	c.mu.Unlock()

	if running {
		clk.Cancel()
	}

	round, err := c.rounds.GetOpen(ctx, gameID)
	if err != nil {
		log.Errorf("game %s: open round lookup on abandon failed: %v", gameID, err)
		return
	}
	if round == nil {
		return
	}
	if err := c.rounds.Close(ctx, round.ID); err != nil {
		log.Errorf("round %s: close on abandon failed: %v", round.ID, err)
	}
	if err := c.games.ClearCurrentNumber(ctx, gameID); err != nil {
		log.Errorf("game %s: clear current number on abandon failed: %v", gameID, err)
	}
}

// publish is best effort: a lost event is recovered by the consumers'
// periodic reconciliation reads.
func (c *Coordinator) publish(ctx context.Context, typ channel.EventType, gameID string) {
	game, err := c.games.Get(ctx, gameID)
	if err != nil || game == nil {
		log.Errorf("game %s: read for %s event failed: %v", gameID, typ, err)
		return
	}
	if err := c.pub.Publish(ctx, channel.Event{Type: typ, Game: game}); err != nil {
		log.Errorf("game %s: publish %s failed: %v", gameID, typ, err)
	}
}
