package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tamru/tambola-services/internal/quizsvc/arbiter"
	"github.com/tamru/tambola-services/internal/quizsvc/channel"
	"github.com/tamru/tambola-services/internal/quizsvc/config"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
	"github.com/tamru/tambola-services/internal/quizsvc/win"
)

type PlayersRepo interface {
	Create(ctx context.Context, p *models.Player) error
	Get(ctx context.Context, id string) (*models.Player, error)
	ApplyAnswer(ctx context.Context, playerID string, n int, correct bool, points int) error
}

type PlayerGamesRepo interface {
	Get(ctx context.Context, id string) (*models.Game, error)
	IncrementPlayerCount(ctx context.Context, id string, delta int) error
}

type RoundsRepo interface {
	GetOpen(ctx context.Context, gameID string) (*models.Round, error)
}

type QuestionsRepo interface {
	GetByNumber(ctx context.Context, number int) (*models.Question, error)
}

type Granter interface {
	TryGrant(ctx context.Context, gameID, playerID, cond string) (arbiter.Result, error)
}

// AnswerResult is what a player gets back for one submission. Grants can
// carry denials; those are definitive outcomes, distinct from the error
// path a store failure takes.
type AnswerResult struct {
	Correct bool             `json:"correct"`
	Points  int              `json:"points"`
	Grants  []arbiter.Result `json:"grants,omitempty"`
}

type PlayerService struct {
	games     PlayerGamesRepo
	players   PlayersRepo
	rounds    RoundsRepo
	questions QuestionsRepo
	granter   Granter
	rules     win.Rules
	pub       channel.Publisher
	cfg       config.Config

	// invalidate drops any cached aggregate views after a write
	invalidate func(gameID string)
}

func NewPlayerService(games PlayerGamesRepo, players PlayersRepo, rounds RoundsRepo,
	questions QuestionsRepo, granter Granter, pub channel.Publisher, cfg config.Config) *PlayerService {
	return &PlayerService{
		games:      games,
		players:    players,
		rounds:     rounds,
		questions:  questions,
		granter:    granter,
		rules:      win.RulesFromConfig(cfg),
		pub:        pub,
		cfg:        cfg,
		invalidate: func(string) {},
	}
}

// SetInvalidator hooks cache invalidation for aggregate views.
func (s *PlayerService) SetInvalidator(fn func(gameID string)) {
	if fn != nil {
		s.invalidate = fn
	}
}

// JoinGame registers a player under a display name unique to the game.
func (s *PlayerService) JoinGame(ctx context.Context, gameID, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validationf("display name must not be empty")
	}

	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errs.Validationf("game %s not found", gameID)
	}
	if game.Status == models.GameStatusEnded {
		return nil, errs.Validationf("game %s has ended", game.ID)
	}

	player := &models.Player{
		ID:     uuid.New().String(),
		GameID: game.ID,
		Name:   name,
	}
	if err := withRetry(ctx, s.cfg.RetryDelay, func() error {
		return s.players.Create(ctx, player)
	}); err != nil {
		return nil, err
	}

	if err := s.games.IncrementPlayerCount(ctx, game.ID, 1); err != nil {
		log.Errorf("game %s: player count bump failed: %v", game.ID, err)
	}
	s.publishUpdate(ctx, game.ID)

	return player, nil
}

// GetPlayer returns the player row for reconciliation reads.
func (s *PlayerService) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	player, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, errs.Validationf("player %s not found", playerID)
	}
	return player, nil
}

// SubmitAnswer grades one answer against the open round. Rejected when
// the round for that number is not in its question window or the player
// already answered it; a correct answer scores, re-evaluates the win
// conditions and pushes any newly qualifying ones through arbitration.
func (s *PlayerService) SubmitAnswer(ctx context.Context, gameID, playerID string, number, option int) (*AnswerResult, error) {
	var open *models.Round
	err := withRetry(ctx, s.cfg.RetryDelay, func() error {
		var err error
		open, err = s.rounds.GetOpen(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if open == nil || open.Number != number {
		return nil, errs.Validationf("the round for number %d is closed", number)
	}
	if open.Phase != models.RoundPhaseActive {
		return nil, errs.Validationf("the round for number %d is not accepting answers (phase %s)", number, open.Phase)
	}

	player, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil || player.GameID != open.GameID {
		return nil, errs.Validationf("player %s is not in game %s", playerID, gameID)
	}
	if player.HasAnswered(number) {
		return nil, errs.Validationf("player %s already answered number %d", playerID, number)
	}

	question, err := s.questions.GetByNumber(ctx, number)
	if err != nil {
		return nil, errs.Transientf("question lookup for number %d: %v", number, err)
	}
	if question == nil {
		return nil, errs.Validationf("no question exists for number %d", number)
	}

	correct := option == question.CorrectOption
	points := 0
	if correct {
		points = s.cfg.PointsPerCorrect
	}

	if err := withRetry(ctx, s.cfg.RetryDelay, func() error {
		return s.players.ApplyAnswer(ctx, playerID, number, correct, points)
	}); err != nil {
		return nil, err
	}
	s.invalidate(open.GameID)

	result := &AnswerResult{Correct: correct, Points: points}
	if !correct {
		return result, nil
	}

	// recompute conditions on the updated answer sets
	correctSet := player.CorrectSet()
	correctSet[number] = true
	incorrectSet := player.IncorrectSet()

	for _, cond := range s.rules.EvaluateNewWins(correctSet, incorrectSet, player.Conditions) {
		var grant arbiter.Result
		err := withRetry(ctx, s.cfg.RetryDelay, func() error {
			var err error
			grant, err = s.granter.TryGrant(ctx, open.GameID, playerID, cond)
			return err
		})
		if err != nil {
			// the answer is scored but the grant outcome is unknown;
			// surface it as retryable rather than fake a denial
			return result, err
		}
		result.Grants = append(result.Grants, grant)
		if grant.Granted {
			s.invalidate(open.GameID)
			s.publishUpdate(ctx, open.GameID)
		}
	}

	return result, nil
}

func (s *PlayerService) publishUpdate(ctx context.Context, gameID string) {
	game, err := s.games.Get(ctx, gameID)
	if err != nil || game == nil {
		log.Errorf("game %s: read for update event failed: %v", gameID, err)
		return
	}
	if err := s.pub.Publish(ctx, channel.Event{Type: channel.EventGeneralUpdate, Game: game}); err != nil {
		log.Errorf("game %s: publish update failed: %v", gameID, err)
	}
}
