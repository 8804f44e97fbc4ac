package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tamru/tambola-services/internal/comm"
	"github.com/tamru/tambola-services/internal/socketsvc/broker"
)

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	gameMap sync.Map // to keep track of gameId with socketId
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "subscribe":
		s.handleSubscribe(socketId, message)
	case "join", "submit-answer", "get-game":
		s.forward(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

// handleSubscribe attaches the socket to a game so pushed game events
// reach it.
func (s *Ws) handleSubscribe(socketId string, msg *comm.WSMessage) {
	var payload comm.SubscribeRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed subscribe payload %s", err)
		return
	}
	if payload.GameID == "" {
		log.Error("Invalid subscribe payload: missing game id")
		return
	}

	s.StoreGame(socketId, payload.GameID)
	log.Infof("socket %s subscribed to game %s", socketId, payload.GameID)
}

// forward stamps the socket id and hands the request to the quiz service
// over NATS.
func (s *Ws) forward(socketId string, msg *comm.WSMessage) {
	msg.SocketId = socketId

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	topic := "socket.quiz"
	if err := s.Broker.Publish(topic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", topic, err)
		return
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

func (s *Ws) StoreGame(socketId string, gameId string) {
	s.gameMap.Store(socketId, gameId)
}

func (s *Ws) GetGame(socketId string) (string, bool) {
	game, ok := s.gameMap.Load(socketId)
	if !ok {
		return "", false
	}
	return game.(string), true
}

func (s *Ws) GetGameSockets(gameId string) ([]string, bool) {
	var sockets []string
	found := false

	s.gameMap.Range(func(key, value interface{}) bool {
		if value.(string) == gameId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.gameMap.Delete(socketId)
}
