package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/jonboulle/clockwork"

	config "github.com/tamru/tambola-services/configs"
	"github.com/tamru/tambola-services/internal/db"
	nats "github.com/tamru/tambola-services/internal/nats"
	"github.com/tamru/tambola-services/internal/quizsvc/arbiter"
	"github.com/tamru/tambola-services/internal/quizsvc/broker"
	"github.com/tamru/tambola-services/internal/quizsvc/channel"
	quizconfig "github.com/tamru/tambola-services/internal/quizsvc/config"
	pgdb "github.com/tamru/tambola-services/internal/quizsvc/db"
	handlers "github.com/tamru/tambola-services/internal/quizsvc/handlers"
	"github.com/tamru/tambola-services/internal/quizsvc/models"
	"github.com/tamru/tambola-services/internal/quizsvc/round"
	"github.com/tamru/tambola-services/internal/quizsvc/service"
	"github.com/tamru/tambola-services/internal/quizsvc/store"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "quiz"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := quizconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// mongo connection
	mongoDB, cancelMongo, err := db.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer cancelMongo()
	log.Printf("mongo connection established successfully")

	db.EnsurePlayerIndexes(mongoDB)
	db.EnsureRoundIndexes(mongoDB)

	// pg connection for the question bank
	dbpool, err := pgdb.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgdb.ClosePool()
	log.Printf("pg connection established successfully")

	gameStore := store.NewGameStore(mongoDB)
	playerStore := store.NewPlayerStore(mongoDB)
	roundStore := store.NewRoundStore(mongoDB)
	questionStore := store.NewQuestionStore(dbpool)

	if path := os.Getenv("QUESTIONS_SEED"); path != "" {
		if err := seedQuestions(questionStore, path); err != nil {
			log.Fatalf("Failed to seed questions from %s: %v", path, err)
		}
	}

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	clock := clockwork.NewRealClock()

	push := channel.NewNATSChannel(n.Conn)
	poller := channel.NewPollingChannel(gameStore, clock, time.Second)
	gameChannel := channel.NewResilient(n.Conn, push, poller)

	coordinator := round.NewCoordinator(gameStore, roundStore, playerStore, gameChannel, clock, cfg)
	granter := arbiter.NewArbiter(gameStore, playerStore, clock)

	gameService := service.NewGameService(gameStore, coordinator, cfg)
	playerService := service.NewPlayerService(gameStore, playerStore, roundStore,
		questionStore, granter, gameChannel, cfg)
	leaderboardService := service.NewLeaderboardService(playerStore, cfg.WinnersCacheTTL)
	playerService.SetInvalidator(leaderboardService.Invalidate)

	// init player message broker, subscribe to socket service
	b := broker.NewBroker(n.Conn, gameService, playerService)
	sub, err := b.QueueSubscribe(broker.SocketTopic, "quiz-workers")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(gameService, playerService, leaderboardService)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// seedQuestions loads the question bank from a JSON file.
func seedQuestions(questions *store.QuestionStore, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var batch []*models.Question
	if err := json.Unmarshal(raw, &batch); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := questions.UpsertBatch(ctx, batch); err != nil {
		return err
	}

	log.Infof("seeded %d questions from %s", len(batch), path)
	return nil
}
