package broker

import (
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/tamru/tambola-services/internal/comm"
)

const gameSubjectPrefix = "quiz.game."

type Broker struct {
	Conn           *nats.Conn
	GetConnection  func(string) (*websocket.Conn, bool)
	GetGameSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (*websocket.Conn, bool),
	fncGetGameSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetGameSockets: fncGetGameSockets,
	}
}

// SubscribeReplies consumes quiz service replies addressed to sockets on
// this instance.
func (b *Broker) SubscribeReplies() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe("socket.replies.*", b.handleReply)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// SubscribeGameEvents consumes pushed game events and fans them out to
// every socket subscribed to the game.
func (b *Broker) SubscribeGameEvents() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(gameSubjectPrefix+"*", b.handleGameEvent)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleReply receives a reply from the quiz service
func (b *Broker) handleReply(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.sendMessage(message)
}

// handleGameEvent fans a game event out to the game's sockets
func (b *Broker) handleGameEvent(msgNats *nats.Msg) {
	gameId := strings.TrimPrefix(msgNats.Subject, gameSubjectPrefix)
	sockets, ok := b.GetGameSockets(gameId)
	if !ok {
		return
	}

	message := &comm.WSMessage{
		Type: "game-event",
		Data: msgNats.Data,
	}

	for _, socketId := range sockets {
		message.SocketId = socketId
		b.sendMessage(message)
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(m *comm.WSMessage) {
	socketId := m.SocketId
	if conn, ok := b.GetConnection(socketId); ok {
		if err := conn.WriteJSON(m); err != nil {
			log.Errorf("write to socket %s: %s", socketId, err)
		}
	}
}
