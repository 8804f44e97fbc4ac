package comm

import (
	"encoding/json"
)

// WSMessage is the envelope every websocket and NATS hop carries. The
// socket service stamps SocketId so replies find their way back to the
// right connection.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join", "submit-answer"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

type JoinRequest struct {
	GameID string `json:"game_id"`
	Name   string `json:"name"`
}

type AnswerRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	Number   int    `json:"number"`
	Option   int    `json:"option"`
}

type GameRequest struct {
	GameID string `json:"game_id"`
}

type SubscribeRequest struct {
	GameID string `json:"game_id"`
}

// ErrorData rides in an "error" reply when a request cannot be served.
type ErrorData struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}
