package models

import "time"

type Player struct {
	ID     string `json:"id" bson:"_id"`
	GameID string `json:"game_id" bson:"game_id"`
	Name   string `json:"name" bson:"name"` // unique per game
	Score  int    `json:"score" bson:"score"`

	// Conditions holds the write-once win flags, Blocked the write-once
	// lockout flags set on every other player once a condition is granted.
	Conditions map[string]bool `json:"conditions" bson:"conditions"`
	Blocked    map[string]bool `json:"blocked" bson:"blocked"`

	CorrectNumbers   []int `json:"correct_numbers" bson:"correct_numbers"`
	IncorrectNumbers []int `json:"incorrect_numbers" bson:"incorrect_numbers"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HasAnswered reports whether the player already answered number n,
// correctly or not.
func (p *Player) HasAnswered(n int) bool {
	for _, c := range p.CorrectNumbers {
		if c == n {
			return true
		}
	}
	for _, c := range p.IncorrectNumbers {
		if c == n {
			return true
		}
	}
	return false
}

// CorrectSet returns the correct answers as a lookup set.
func (p *Player) CorrectSet() map[int]bool {
	s := make(map[int]bool, len(p.CorrectNumbers))
	for _, n := range p.CorrectNumbers {
		s[n] = true
	}
	return s
}

// IncorrectSet returns the wrong answers as a lookup set.
func (p *Player) IncorrectSet() map[int]bool {
	s := make(map[int]bool, len(p.IncorrectNumbers))
	for _, n := range p.IncorrectNumbers {
		s[n] = true
	}
	return s
}
