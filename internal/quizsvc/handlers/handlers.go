package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/tamru/tambola-services/internal/quizsvc/errs"
	"github.com/tamru/tambola-services/internal/quizsvc/service"
)

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	games       *service.GameService
	players     *service.PlayerService
	leaderboard *service.LeaderboardService
}

func NewHandler(games *service.GameService, players *service.PlayerService,
	leaderboard *service.LeaderboardService) *Handler {
	return &Handler{
		games:       games,
		players:     players,
		leaderboard: leaderboard,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// statusFor maps the error taxonomy onto HTTP. Validation errors are the
// caller's fault, conflicts mean somebody else got there first, and
// transient store errors invite a retry.
func statusFor(err error) int {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errs.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, errs.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.CreateResponse(w, Response{
		Code:  statusFor(err),
		Error: err.Error(),
	})
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	h.CreateResponse(w, Response{
		Message: message,
		Code:    http.StatusOK,
		Data:    data,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, errs.Validationf("malformed request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
		CustomID string `json:"custom_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	game, err := h.games.CreateGame(r.Context(), req.HostName, req.CustomID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "game created", game)
}

func (h *Handler) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "", game)
}

func (h *Handler) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "game started", h.games.StartGame)
}

func (h *Handler) PauseGameHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "game paused", h.games.PauseGame)
}

func (h *Handler) ResumeGameHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "game resumed", h.games.ResumeGame)
}

func (h *Handler) EndGameHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "game ended", h.games.EndGame)
}

func (h *Handler) ResetGameHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "game reset", h.games.ResetGame)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, message string,
	op func(ctx context.Context, id string) error) {
	if err := op(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, message, nil)
}

func (h *Handler) CallNumberHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number int `json:"number"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	round, err := h.games.SelectNumber(r.Context(), chi.URLParam(r, "id"), req.Number)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "number called", round)
}

func (h *Handler) JoinGameHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	player, err := h.players.JoinGame(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "joined", player)
}

func (h *Handler) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Number   int    `json:"number"`
		Option   int    `json:"option"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.players.SubmitAnswer(r.Context(), chi.URLParam(r, "id"),
		req.PlayerID, req.Number, req.Option)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "answer recorded", result)
}

func (h *Handler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, errs.Validationf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	players, err := h.leaderboard.Top(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "", players)
}

func (h *Handler) WinnersHandler(w http.ResponseWriter, r *http.Request) {
	winners, err := h.leaderboard.Winners(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, "", winners)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "quiz service is running at port " + os.Getenv("SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}
