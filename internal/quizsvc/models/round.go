package models

import "time"

const (
	RoundPhasePrepare = "prepare"
	RoundPhaseActive  = "active"
	RoundPhaseScoring = "scoring"
	RoundPhaseClosed  = "closed"
)

type Round struct {
	ID        string    `json:"id" bson:"_id"`
	GameID    string    `json:"game_id" bson:"game_id"`
	Seq       int       `json:"seq" bson:"seq"`       // monotonic per game, starts at 1
	Number    int       `json:"number" bson:"number"` // the called number being asked about
	Phase     string    `json:"phase" bson:"phase"`   // 'prepare', 'active', 'scoring', 'closed'
	Active    bool      `json:"active" bson:"active"` // at most one active round per game
	StartedAt time.Time `json:"started_at" bson:"started_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
