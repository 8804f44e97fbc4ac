package models

import "time"

const (
	GameStatusWaiting = "waiting"
	GameStatusActive  = "active"
	GameStatusPaused  = "paused"
	GameStatusEnded   = "ended"
)

type Game struct {
	ID            string    `json:"id" bson:"_id"`          // short human-typed code, stored uppercase
	HostName      string    `json:"host_name" bson:"host_name"`
	Status        string    `json:"status" bson:"status"`   // 'waiting', 'active', 'paused', 'ended'
	CalledNumbers []int     `json:"called_numbers" bson:"called_numbers"` // append-only, unique per game
	CurrentNumber *int      `json:"current_number" bson:"current_number"` // last called, nil between rounds
	PlayerCount   int       `json:"player_count" bson:"player_count"`

	// Winners maps a condition name to the winning player's id. The entry
	// is written exactly once by a conditional update, which is what makes
	// the first-to-claim arbitration atomic.
	Winners     map[string]string    `json:"winners" bson:"winners"`
	WinnerTimes map[string]time.Time `json:"winner_times" bson:"winner_times"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HasCalled reports whether n is already in the called history.
func (g *Game) HasCalled(n int) bool {
	for _, c := range g.CalledNumbers {
		if c == n {
			return true
		}
	}
	return false
}
