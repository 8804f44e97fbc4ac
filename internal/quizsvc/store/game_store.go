package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

type GameStore struct {
	c *mongo.Collection
}

func NewGameStore(db *mongo.Database) *GameStore {
	return &GameStore{c: db.Collection("games")}
}

// NormalizeGameID folds the human-typed code to its canonical form.
func NormalizeGameID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Create inserts a new game document. A duplicate code is a validation
// error, not a store failure.
func (s *GameStore) Create(ctx context.Context, g *models.Game) error {
	g.ID = NormalizeGameID(g.ID)
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Status == "" {
		g.Status = models.GameStatusWaiting
	}
	if g.Winners == nil {
		g.Winners = map[string]string{}
	}
	if g.WinnerTimes == nil {
		g.WinnerTimes = map[string]time.Time{}
	}
	if g.CalledNumbers == nil {
		g.CalledNumbers = []int{}
	}

	_, err := s.c.InsertOne(ctx, g)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.Validationf("game id %s is already taken", g.ID)
		}
		return errs.Transientf("insert game %s: %v", g.ID, err)
	}
	return nil
}

// Get returns the game or nil when the code is unknown.
func (s *GameStore) Get(ctx context.Context, id string) (*models.Game, error) {
	id = NormalizeGameID(id)

	game := &models.Game{}
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(game)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // game not found
		}
		return nil, errs.Transientf("get game %s: %v", id, err)
	}
	return game, nil
}

func (s *GameStore) UpdateStatus(ctx context.Context, id, status string) error {
	id = NormalizeGameID(id)
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("update status of game %s: %v", id, err)
	}
	return nil
}

// AppendCalledNumber appends n to the history and sets it current, but
// only while the game is active and n has not been called. A miss means
// the caller lost a race and must not retry the same write blindly.
func (s *GameStore) AppendCalledNumber(ctx context.Context, id string, n int) error {
	id = NormalizeGameID(id)
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":            id,
			"status":         models.GameStatusActive,
			"called_numbers": bson.M{"$ne": n},
		},
		bson.M{
			"$push": bson.M{"called_numbers": n},
			"$set":  bson.M{"current_number": n, "updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return errs.Transientf("append number %d to game %s: %v", n, id, err)
	}
	if res.MatchedCount == 0 {
		return errs.Conflictf("number %d rejected for game %s: not active or already called", n, id)
	}
	return nil
}

func (s *GameStore) ClearCurrentNumber(ctx context.Context, id string) error {
	id = NormalizeGameID(id)
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"current_number": nil, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("clear current number of game %s: %v", id, err)
	}
	return nil
}

// Reset zeroes the call history and returns the game to waiting. Player
// rows are untouched here; winner claims are wiped only when the reset
// policy also clears players, since the two must stay consistent.
func (s *GameStore) Reset(ctx context.Context, id string, clearWinners bool) error {
	id = NormalizeGameID(id)
	set := bson.M{
		"status":         models.GameStatusWaiting,
		"called_numbers": []int{},
		"current_number": nil,
		"updated_at":     time.Now().UTC(),
	}
	if clearWinners {
		set["winners"] = map[string]string{}
		set["winner_times"] = map[string]time.Time{}
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errs.Transientf("reset game %s: %v", id, err)
	}
	return nil
}

func (s *GameStore) IncrementPlayerCount(ctx context.Context, id string, delta int) error {
	id = NormalizeGameID(id)
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"player_count": delta}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("bump player count of game %s: %v", id, err)
	}
	return nil
}

// WinnerOf reads the recorded winner for cond, if any.
func (s *GameStore) WinnerOf(ctx context.Context, gameID, cond string) (string, bool, error) {
	game, err := s.Get(ctx, gameID)
	if err != nil {
		return "", false, err
	}
	if game == nil {
		return "", false, errs.Validationf("game %s not found", gameID)
	}
	winner, ok := game.Winners[cond]
	return winner, ok, nil
}

// ClaimWinner records playerID as the winner of cond iff no winner is
// recorded yet. The conditional update on the single game document is
// what makes first-to-claim atomic across independent writers.
func (s *GameStore) ClaimWinner(ctx context.Context, gameID, cond, playerID string, at time.Time) (bool, error) {
	gameID = NormalizeGameID(gameID)
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             gameID,
			"winners." + cond: bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"winners." + cond:      playerID,
			"winner_times." + cond: at,
			"updated_at":           time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, errs.Transientf("claim %s for player %s in game %s: %v", cond, playerID, gameID, err)
	}
	return res.ModifiedCount == 1, nil
}
