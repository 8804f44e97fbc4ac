package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Get("/health", h.HealthHandler)
		r.Get("/games/{id}", h.GetGameHandler)
		r.Get("/games/{id}/leaderboard", h.LeaderboardHandler)
		r.Get("/games/{id}/winners", h.WinnersHandler)
		r.Post("/games/{id}/join", h.JoinGameHandler)
		r.Post("/games/{id}/answers", h.SubmitAnswerHandler)

		// host routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/games", h.CreateGameHandler)
			r.Post("/games/{id}/start", h.StartGameHandler)
			r.Post("/games/{id}/pause", h.PauseGameHandler)
			r.Post("/games/{id}/resume", h.ResumeGameHandler)
			r.Post("/games/{id}/end", h.EndGameHandler)
			r.Post("/games/{id}/reset", h.ResetGameHandler)
			r.Post("/games/{id}/call", h.CallNumberHandler)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"role": "host",
		"exp":  expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: host JWT for testing expires soon : %s", tokenString)
}
