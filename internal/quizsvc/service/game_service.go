package service

import (
	"context"
	"math/rand"

	"github.com/tamru/tambola-services/internal/quizsvc/config"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
	"github.com/tamru/tambola-services/internal/quizsvc/round"
	"github.com/tamru/tambola-services/internal/quizsvc/store"
)

// GamesRepo is what the game service needs from the games collection.
type GamesRepo interface {
	Create(ctx context.Context, g *models.Game) error
	Get(ctx context.Context, id string) (*models.Game, error)
}

type GameService struct {
	games GamesRepo
	coord *round.Coordinator
	cfg   config.Config
}

func NewGameService(games GamesRepo, coord *round.Coordinator, cfg config.Config) *GameService {
	return &GameService{games: games, coord: coord, cfg: cfg}
}

// code alphabet skips ambiguous characters so the id stays easy to read
// off a projector
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// CreateGame creates a waiting game. A custom id must be free; with no
// custom id a fresh 5-character code is generated.
func (s *GameService) CreateGame(ctx context.Context, hostName, customID string) (*models.Game, error) {
	id := store.NormalizeGameID(customID)

	if id != "" {
		existing, err := s.games.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errs.Validationf("game id %s is already taken", id)
		}
	} else {
		for {
			id = randomCode(5)
			existing, err := s.games.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				break
			}
		}
	}

	game := &models.Game{
		ID:       id,
		HostName: hostName,
		Status:   models.GameStatusWaiting,
	}
	if err := withRetry(ctx, s.cfg.RetryDelay, func() error {
		return s.games.Create(ctx, game)
	}); err != nil {
		return nil, err
	}
	return game, nil
}

// GetGame returns the game or a validation error for an unknown code.
func (s *GameService) GetGame(ctx context.Context, id string) (*models.Game, error) {
	game, err := s.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errs.Validationf("game %s not found", store.NormalizeGameID(id))
	}
	return game, nil
}

func (s *GameService) StartGame(ctx context.Context, id string) error {
	return s.coord.StartGame(ctx, id)
}

func (s *GameService) PauseGame(ctx context.Context, id string) error {
	return s.coord.PauseGame(ctx, id)
}

func (s *GameService) ResumeGame(ctx context.Context, id string) error {
	return s.coord.ResumeGame(ctx, id)
}

func (s *GameService) EndGame(ctx context.Context, id string) error {
	return s.coord.EndGame(ctx, id)
}

func (s *GameService) ResetGame(ctx context.Context, id string) error {
	return s.coord.ResetGame(ctx, id)
}

// SelectNumber opens the round for the chosen number.
func (s *GameService) SelectNumber(ctx context.Context, id string, number int) (*models.Round, error) {
	return s.coord.SelectNumber(ctx, id, number)
}
