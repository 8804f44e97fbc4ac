package service

import (
	"context"
	"sync"
	"time"

	"github.com/tamru/tambola-services/internal/quizsvc/models"
	"github.com/tamru/tambola-services/internal/quizsvc/win"
)

type PlayerLister interface {
	ListByGame(ctx context.Context, gameID string) ([]*models.Player, error)
}

// WinnerEntry pairs a decided condition with its holder.
type WinnerEntry struct {
	Condition string         `json:"condition"`
	Player    *models.Player `json:"player"`
}

type cacheEntry struct {
	players []*models.Player
	at      time.Time
}

// LeaderboardService serves the read-heavy aggregate views behind a
// short TTL cache. Every write path that can change the result calls
// Invalidate, so the TTL only papers over cross-process writes.
type LeaderboardService struct {
	players PlayerLister
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewLeaderboardService(players PlayerLister, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{
		players: players,
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
	}
}

// Invalidate drops the cached view for the game.
func (s *LeaderboardService) Invalidate(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, gameID)
}

func (s *LeaderboardService) list(ctx context.Context, gameID string) ([]*models.Player, error) {
	s.mu.Lock()
	if e, ok := s.cache[gameID]; ok && time.Since(e.at) < s.ttl {
		players := e.players
		s.mu.Unlock()
		return players, nil
	}
	s.mu.Unlock()

	players, err := s.players.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[gameID] = cacheEntry{players: players, at: time.Now()}
	s.mu.Unlock()
	return players, nil
}

// Top returns up to n players ordered by score descending. n <= 0 means
// everyone.
func (s *LeaderboardService) Top(ctx context.Context, gameID string, n int) ([]*models.Player, error) {
	players, err := s.list(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(players) > n {
		players = players[:n]
	}
	return players, nil
}

// Winners returns the decided conditions and their holders, in the fixed
// condition order.
func (s *LeaderboardService) Winners(ctx context.Context, gameID string) ([]WinnerEntry, error) {
	players, err := s.list(ctx, gameID)
	if err != nil {
		return nil, err
	}

	byCond := make(map[string]*models.Player)
	for _, p := range players {
		for cond, won := range p.Conditions {
			if won {
				byCond[cond] = p
			}
		}
	}

	var entries []WinnerEntry
	for _, cond := range win.Conditions() {
		if p, ok := byCond[cond]; ok {
			entries = append(entries, WinnerEntry{Condition: cond, Player: p})
		}
	}
	return entries, nil
}
