package kick_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/charleschow/penalty-lab/internal/config"
	"github.com/charleschow/penalty-lab/internal/core/goalie"
	"github.com/charleschow/penalty-lab/internal/core/kicklog"
	"github.com/charleschow/penalty-lab/internal/core/player"
	"github.com/charleschow/penalty-lab/internal/core/session"
	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

const (
	requestTimeout   = 5 * time.Second
	defaultRecentMax = 20
	recentLimitMax   = 500
)

// KickLog is the read side of the kick log. A nil *kicklog.Store
// satisfies it and reports kicklog.ErrDisabled.
type KickLog interface {
	Summary(playerKey string) (kicklog.Summary, error)
	Recent(n int, playerKey string) ([]kicklog.Row, error)
}

// Handler serves the session and kick API.
//
// Routes:
//
//	POST   /sessions                   -> start a session
//	GET    /sessions                   -> list open sessions
//	GET    /sessions/{id}              -> session snapshot
//	POST   /sessions/{id}/kicks        -> resolve one kick
//	DELETE /sessions/{id}              -> end a session, final tally
//	GET    /players/{player}/summary   -> kick log aggregate
//	GET    /players/{player}/kicks     -> recent logged kicks
//	GET    /health                     -> 200 OK
type Handler struct {
	manager *session.Manager
	kicklog KickLog

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	sfGroup singleflight.Group
}

type errorResponse struct {
	Error string `json:"error"`
}

type kickRequest struct {
	Direction string `json:"direction"`
}

type sessionInfo struct {
	ID        string    `json:"id"`
	Player    string    `json:"player"`
	Profile   string    `json:"profile"`
	StartedAt time.Time `json:"started_at"`
}

// NewHandler throttles each session to perSec kicks per second with the
// given burst. perSec <= 0 disables throttling.
func NewHandler(manager *session.Manager, kl KickLog, perSec float64, burst int) *Handler {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	if kl == nil {
		kl = (*kicklog.Store)(nil)
	}
	return &Handler{
		manager:  manager,
		kicklog:  kl,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// RegisterRoutes wires HTTP routes onto the provided router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Get("/", h.listSessions)
		r.Get("/{id}", h.getSession)
		r.Delete("/{id}", h.endSession)
		r.Post("/{id}/kicks", h.kick)
	})
	r.Get("/players/{player}/summary", h.playerSummary)
	r.Get("/players/{player}/kicks", h.playerKicks)
	r.Get("/health", h.healthCheck)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	s, err := h.manager.Start(ctx, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	snap, err := h.manager.State(ctx, s.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	all := h.manager.Store().All()
	out := make([]sessionInfo, 0, len(all))
	for _, s := range all {
		out = append(out, sessionInfo{ID: s.ID, Player: s.Player, Profile: s.Profile, StartedAt: s.StartedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.manager.State(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.manager.End(ctx, id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	h.mu.Lock()
	delete(h.limiters, id)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) kick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req kickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dir, err := goalie.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := h.manager.Store().Get(id); !ok {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	if !h.limiter(id).Allow() {
		telemetry.Metrics.KicksThrottled.Inc()
		writeError(w, http.StatusTooManyRequests, "too many kicks, slow down")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	kr, err := h.manager.Kick(ctx, id, dir)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, kr)
}

func (h *Handler) limiter(id string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[id]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[id] = l
	}
	return l
}

// playerSummary collapses concurrent lookups for the same player into
// one query.
func (h *Handler) playerSummary(w http.ResponseWriter, r *http.Request) {
	key := player.Normalize(chi.URLParam(r, "player"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "player is required")
		return
	}

	v, err, _ := h.sfGroup.Do(key, func() (any, error) {
		return h.kicklog.Summary(key)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) playerKicks(w http.ResponseWriter, r *http.Request) {
	key := player.Normalize(chi.URLParam(r, "player"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "player is required")
		return
	}

	rows, err := h.kicklog.Recent(parseLimit(r.URL.Query().Get("limit")), key)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if rows == nil {
		rows = []kicklog.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_key": key, "kicks": rows})
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"adapter":  "kick_http",
		"sessions": h.manager.Store().Count(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrPlayerRequired),
		errors.Is(err, shootout.ErrInvalidDirection),
		errors.Is(err, goalie.ErrInvalidConfig),
		errors.Is(err, config.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, kicklog.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		telemetry.Warnf("kick_http: %v", err)
		return http.StatusInternalServerError
	}
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultRecentMax
	}
	if n > recentLimitMax {
		return recentLimitMax
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("kick_http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
