package arbiter

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
)

// GameClaims is the single-document claim authority. ClaimWinner must be
// a conditional write that succeeds for exactly one caller per
// (game, condition), no matter how many processes race it.
type GameClaims interface {
	WinnerOf(ctx context.Context, gameID, cond string) (playerID string, decided bool, err error)
	ClaimWinner(ctx context.Context, gameID, cond, playerID string, at time.Time) (bool, error)
}

// PlayerFlags mutates the per-player win and blocked flags. SetConditionFlag
// and BlockOthers are write-once and idempotent.
type PlayerFlags interface {
	AnyWonOrBlocked(ctx context.Context, gameID, cond, exceptPlayerID string) (bool, error)
	SetConditionFlag(ctx context.Context, playerID, cond string) error
	BlockOthers(ctx context.Context, gameID, cond, winnerID string) error
}

// Result of a grant attempt. Granted and Denied are both definitive
// outcomes; a store failure is reported as an error instead, so the
// caller can never confuse "did not win" with "could not find out".
type Result struct {
	Condition   string    `json:"condition"`
	Granted     bool      `json:"granted"`
	AlreadyHeld bool      `json:"already_held"`
	GrantedAt   time.Time `json:"granted_at,omitempty"`
}

// Arbiter decides winner grants under first-successful-writer-wins
// semantics. Eligible players may race from independent processes; the
// conditional claim on the game document is the one true tiebreaker.
type Arbiter struct {
	games   GameClaims
	players PlayerFlags
	clock   clockwork.Clock

	// blockTimeout bounds the async blocked-flag fan-out.
	blockTimeout time.Duration
}

func NewArbiter(games GameClaims, players PlayerFlags, cw clockwork.Clock) *Arbiter {
	return &Arbiter{
		games:        games,
		players:      players,
		clock:        cw,
		blockTimeout: 15 * time.Second,
	}
}

// TryGrant attempts to award cond to playerID. At most one player per
// game ever ends up granted for a condition, even when two qualifying
// answers land in the same tick.
func (a *Arbiter) TryGrant(ctx context.Context, gameID, playerID, cond string) (Result, error) {
	res := Result{Condition: cond}

	// fast path: condition already decided
	winner, decided, err := a.games.WinnerOf(ctx, gameID, cond)
	if err != nil {
		return res, errs.Transientf("winner lookup for %s/%s: %v", gameID, cond, err)
	}
	if decided {
		if winner == playerID {
			res.Granted = true
			res.AlreadyHeld = true
			return res, nil
		}
		return res, nil // denied, someone else holds it
	}

	// a flagged or blocked player other than the caller also means decided
	taken, err := a.players.AnyWonOrBlocked(ctx, gameID, cond, playerID)
	if err != nil {
		return res, errs.Transientf("won-or-blocked query for %s/%s: %v", gameID, cond, err)
	}
	if taken {
		return res, nil
	}

	now := a.clock.Now()
	claimed, err := a.games.ClaimWinner(ctx, gameID, cond, playerID, now)
	if err != nil {
		return res, errs.Transientf("winner claim for %s/%s: %v", gameID, cond, err)
	}
	if !claimed {
		// lost the race; confirm it really was another grant and not a
		// transient store hiccup before reporting denial
		winner, decided, err = a.games.WinnerOf(ctx, gameID, cond)
		if err != nil {
			return res, errs.Transientf("post-claim winner lookup for %s/%s: %v", gameID, cond, err)
		}
		if decided && winner == playerID {
			res.Granted = true
			res.AlreadyHeld = true
			return res, nil
		}
		if !decided {
			return res, errs.Conflictf("winner claim for %s/%s raced and no winner is recorded yet", gameID, cond)
		}
		return res, nil
	}

	// the claim is the correctness point; the player flag is display state
	if err := a.players.SetConditionFlag(ctx, playerID, cond); err != nil {
		log.Errorf("player %s: set %s flag after grant failed: %v", playerID, cond, err)
	}

	// best effort: blocked flags on everyone else converge eventually
	go a.blockOthers(gameID, cond, playerID)

	res.Granted = true
	res.GrantedAt = now
	log.Infof("condition %s granted to player %s in game %s", cond, playerID, gameID)
	return res, nil
}

func (a *Arbiter) blockOthers(gameID, cond, winnerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.blockTimeout)
	defer cancel()
	if err := a.players.BlockOthers(ctx, gameID, cond, winnerID); err != nil {
		log.Errorf("game %s: blocking %s for non-winners failed: %v", gameID, cond, err)
	}
}
