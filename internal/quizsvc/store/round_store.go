package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

type RoundStore struct {
	c *mongo.Collection
}

func NewRoundStore(db *mongo.Database) *RoundStore {
	return &RoundStore{c: db.Collection("rounds")}
}

// Create opens a round with the next sequence number for the game.
func (s *RoundStore) Create(ctx context.Context, gameID string, number int) (*models.Round, error) {
	gameID = NormalizeGameID(gameID)

	last := &models.Round{}
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	err := s.c.FindOne(ctx, bson.M{"game_id": gameID}, opts).Decode(last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.Transientf("read last round of game %s: %v", gameID, err)
	}

	now := time.Now().UTC()
	round := &models.Round{
		ID:        uuid.New().String(),
		GameID:    gameID,
		Seq:       last.Seq + 1,
		Number:    number,
		Phase:     models.RoundPhasePrepare,
		Active:    true,
		StartedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.c.InsertOne(ctx, round); err != nil {
		return nil, errs.Transientf("insert round for game %s: %v", gameID, err)
	}
	return round, nil
}

// GetOpen returns the game's open round, or nil when the game is idle.
func (s *RoundStore) GetOpen(ctx context.Context, gameID string) (*models.Round, error) {
	gameID = NormalizeGameID(gameID)

	round := &models.Round{}
	err := s.c.FindOne(ctx, bson.M{"game_id": gameID, "active": true}).Decode(round)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errs.Transientf("get open round of game %s: %v", gameID, err)
	}
	return round, nil
}

func (s *RoundStore) UpdatePhase(ctx context.Context, roundID, phase string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": roundID},
		bson.M{"$set": bson.M{"phase": phase, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.Transientf("update phase of round %s: %v", roundID, err)
	}
	return nil
}

func (s *RoundStore) Close(ctx context.Context, roundID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": roundID},
		bson.M{"$set": bson.M{
			"active":     false,
			"phase":      models.RoundPhaseClosed,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return errs.Transientf("close round %s: %v", roundID, err)
	}
	return nil
}

// ListByGame returns the game's rounds in call order.
func (s *RoundStore) ListByGame(ctx context.Context, gameID string) ([]*models.Round, error) {
	gameID = NormalizeGameID(gameID)
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})

	cur, err := s.c.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, errs.Transientf("list rounds of game %s: %v", gameID, err)
	}
	defer cur.Close(ctx)

	var rounds []*models.Round
	if err := cur.All(ctx, &rounds); err != nil {
		return nil, errs.Transientf("decode rounds of game %s: %v", gameID, err)
	}
	return rounds, nil
}
