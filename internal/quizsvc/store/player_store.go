package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

type PlayerStore struct {
	c *mongo.Collection
}

func NewPlayerStore(db *mongo.Database) *PlayerStore {
	return &PlayerStore{c: db.Collection("players")}
}

// Create inserts a player row. Display names are unique per game; the
// unique index turns the race window of a pre-check into a clean error.
func (s *PlayerStore) Create(ctx context.Context, p *models.Player) error {
	p.GameID = NormalizeGameID(p.GameID)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Conditions == nil {
		p.Conditions = map[string]bool{}
	}
	if p.Blocked == nil {
		p.Blocked = map[string]bool{}
	}
	if p.CorrectNumbers == nil {
		p.CorrectNumbers = []int{}
	}
	if p.IncorrectNumbers == nil {
		p.IncorrectNumbers = []int{}
	}

	_, err := s.c.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.Validationf("name %q is already taken in game %s", p.Name, p.GameID)
		}
		return errs.Transientf("insert player %s: %v", p.ID, err)
	}
	return nil
}

func (s *PlayerStore) Get(ctx context.Context, id string) (*models.Player, error) {
	player := &models.Player{}
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(player)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // player not found
		}
		return nil, errs.Transientf("get player %s: %v", id, err)
	}
	return player, nil
}

// ListByGame returns the game's players ordered by score descending.
func (s *PlayerStore) ListByGame(ctx context.Context, gameID string) ([]*models.Player, error) {
	gameID = NormalizeGameID(gameID)
	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "name", Value: 1}})

	cur, err := s.c.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, errs.Transientf("list players of game %s: %v", gameID, err)
	}
	defer cur.Close(ctx)

	var players []*models.Player
	if err := cur.All(ctx, &players); err != nil {
		return nil, errs.Transientf("decode players of game %s: %v", gameID, err)
	}
	return players, nil
}

// AnyWonOrBlocked reports whether any player other than except already
// carries the win flag or the blocked flag for cond. This is the one
// query that needs OR composition.
func (s *PlayerStore) AnyWonOrBlocked(ctx context.Context, gameID, cond, except string) (bool, error) {
	gameID = NormalizeGameID(gameID)
	filter := bson.M{
		"game_id": gameID,
		"_id":     bson.M{"$ne": except},
		"$or": []bson.M{
			{"conditions." + cond: true},
			{"blocked." + cond: true},
		},
	}

	n, err := s.c.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.Transientf("won-or-blocked query for %s in game %s: %v", cond, gameID, err)
	}
	return n > 0, nil
}

// ApplyAnswer records one answer exactly once: the conditional filter
// rejects a number that is already in either answer set, so a duplicate
// submission can never double-score.
func (s *PlayerStore) ApplyAnswer(ctx context.Context, playerID string, n int, correct bool, points int) error {
	filter := bson.M{
		"_id":               playerID,
		"correct_numbers":   bson.M{"$ne": n},
		"incorrect_numbers": bson.M{"$ne": n},
	}

	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if correct {
		update["$push"] = bson.M{"correct_numbers": n}
		update["$inc"] = bson.M{"score": points}
	} else {
		update["$push"] = bson.M{"incorrect_numbers": n}
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Transientf("apply answer %d for player %s: %v", n, playerID, err)
	}
	if res.MatchedCount == 0 {
		return errs.Validationf("player %s already answered number %d", playerID, n)
	}
	return nil
}

// SetConditionFlag sets the write-once win flag. Setting an already-set
// flag is a no-op, not an error.
func (s *PlayerStore) SetConditionFlag(ctx context.Context, playerID, cond string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": playerID},
		bson.M{"$set": bson.M{"conditions." + cond: true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("set %s flag on player %s: %v", cond, playerID, err)
	}
	return nil
}

// BlockOthers marks cond blocked for every player in the game except the
// winner.
func (s *PlayerStore) BlockOthers(ctx context.Context, gameID, cond, winnerID string) error {
	gameID = NormalizeGameID(gameID)
	_, err := s.c.UpdateMany(ctx,
		bson.M{"game_id": gameID, "_id": bson.M{"$ne": winnerID}},
		bson.M{"$set": bson.M{"blocked." + cond: true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("block %s for non-winners of game %s: %v", cond, gameID, err)
	}
	return nil
}

// ResetAll zeroes score, flags and answer history for every player of
// the game, used by the clear-players reset policy.
func (s *PlayerStore) ResetAll(ctx context.Context, gameID string) error {
	gameID = NormalizeGameID(gameID)
	_, err := s.c.UpdateMany(ctx,
		bson.M{"game_id": gameID},
		bson.M{"$set": bson.M{
			"score":             0,
			"conditions":        map[string]bool{},
			"blocked":           map[string]bool{},
			"correct_numbers":   []int{},
			"incorrect_numbers": []int{},
			"updated_at":        time.Now().UTC(),
		}},
	)
	if err != nil {
		return errs.Transientf("reset players of game %s: %v", gameID, err)
	}
	return nil
}
