package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/tamru/tambola-services/internal/comm"
	"github.com/tamru/tambola-services/internal/quizsvc/service"
)

const (
	// SocketTopic carries player requests arriving from the socket service.
	SocketTopic = "socket.quiz"

	replyPrefix = "socket.replies."
)

// Broker bridges socket-originated player messages to the services and
// publishes replies addressed to the originating socket.
type Broker struct {
	Conn          *nats.Conn
	GameService   *service.GameService
	PlayerService *service.PlayerService
}

func NewBroker(nc *nats.Conn, gameService *service.GameService, playerService *service.PlayerService) *Broker {
	return &Broker{
		Conn:          nc,
		GameService:   gameService,
		PlayerService: playerService,
	}
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "join":
		req := comm.JoinRequest{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		player, err := b.PlayerService.JoinGame(ctx, req.GameID, req.Name)
		if err != nil {
			log.Errorf("Error [PlayerService.JoinGame] %s", err)
			b.publishError(msg.Type, err, msg.SocketId)
			return
		}

		b.publishReply("join-response", player, msg.SocketId)
	case "submit-answer":
		req := comm.AnswerRequest{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result, err := b.PlayerService.SubmitAnswer(ctx, req.GameID, req.PlayerID, req.Number, req.Option)
		if err != nil {
			log.Errorf("Error [PlayerService.SubmitAnswer] %s", err)
			b.publishError(msg.Type, err, msg.SocketId)
			return
		}

		b.publishReply("submit-answer-response", result, msg.SocketId)
	case "get-game":
		req := comm.GameRequest{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		game, err := b.GameService.GetGame(ctx, req.GameID)
		if err != nil {
			log.Errorf("Error [GameService.GetGame] %s", err)
			b.publishError(msg.Type, err, msg.SocketId)
			return
		}

		b.publishReply("get-game-response", game, msg.SocketId)
	default:
		log.Warnf("unknown message type %s", msg.Type)
	}
}

func (b *Broker) publishReply(msgType string, data interface{}, socketId string) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Errorf("unable to marshal %s reply for socket %s: %s", msgType, socketId, err)
		return
	}

	msg := &comm.WSMessage{
		Type:     msgType,
		Data:     raw,
		SocketId: socketId,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(replyPrefix+socketId, payload)
}

func (b *Broker) publishError(request string, cause error, socketId string) {
	b.publishReply("error", comm.ErrorData{Request: request, Error: cause.Error()}, socketId)
}

// QueueSubscribe consumes player requests; the queue group keeps one
// consumer per message when several quiz service instances run.
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
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
