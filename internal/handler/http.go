package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/highscore-api/internal/auth"
	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/domain"
	"github.com/highscore-api/internal/metrics"
	"github.com/highscore-api/internal/ratelimit"
	"github.com/highscore-api/internal/service"
	"github.com/highscore-api/internal/websocket"
)

// Handler provides HTTP handlers for the highscore API
type Handler struct {
	service   *service.HighscoreService
	resolver  *auth.Resolver
	hub       *websocket.Hub
	limiter   *ratelimit.Limiter
	blocklist *ratelimit.Blocklist
	security  *config.SecurityConfig
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	svc *service.HighscoreService,
	resolver *auth.Resolver,
	hub *websocket.Hub,
	limiter *ratelimit.Limiter,
	blocklist *ratelimit.Blocklist,
	security *config.SecurityConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:   svc,
		resolver:  resolver,
		hub:       hub,
		limiter:   limiter,
		blocklist: blocklist,
		security:  security,
		logger:    logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.blocklist.Middleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.RequestSize(h.security.MaxRequestSize))
	r.Use(recordMetrics)
	r.Use(corsMiddleware(h.security.CORSOrigin))
	if h.security.EnableSecurityHeaders {
		r.Use(securityHeaders)
	}

	// Health and monitoring
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)

		// Game registration is the only unauthenticated write
		r.With(h.limiter.Middleware(ratelimit.ClassCreateGame)).
			Post("/games", h.CreateGame)

		// Everything else requires a resolvable API key
		r.Group(func(r chi.Router) {
			r.Use(h.resolver.Middleware)

			r.Get("/games/me", h.GetOwnGame)

			r.With(h.limiter.Middleware(ratelimit.ClassSubmitScore)).
				Post("/scores", h.SubmitScore)

			r.With(h.limiter.Middleware(ratelimit.ClassLeaderboard)).
				Get("/leaderboard", h.GetLeaderboard)

			r.With(h.limiter.Middleware(ratelimit.ClassPlayerStats)).
				Get("/players/{playerName}/stats", h.GetPlayerStats)

			r.Get("/ws/stats", h.GetWebSocketStats)
		})
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// serviceError maps a service failure to an HTTP response. Internal
// errors are logged with detail and returned opaque.
func (h *Handler) serviceError(w http.ResponseWriter, err error, op string) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	default:
		h.logger.Error("failed to "+op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// CreateGame registers a new game and returns its API key. The key
// appears in this response and nowhere else.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	reg, err := h.service.RegisterGame(r.Context(), req)
	if err != nil {
		h.serviceError(w, err, "register game")
		return
	}

	h.writeJSON(w, http.StatusCreated, reg)
}

// GetOwnGame returns the authenticated game's own record
func (h *Handler) GetOwnGame(w http.ResponseWriter, r *http.Request) {
	game, ok := auth.GameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, game)
}

// SubmitScore appends a score event to the authenticated game's ledger
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	game, ok := auth.GameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	var sub domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	event, err := h.service.SubmitScore(r.Context(), game, sub)
	if err != nil {
		h.serviceError(w, err, "submit score")
		return
	}

	h.writeJSON(w, http.StatusCreated, event)
}

// GetLeaderboard returns the authenticated game's ranked standings
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	game, ok := auth.GameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	// limit 0 stays distinct from an absent parameter: only the latter
	// falls back to the configured default.
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest,
				domain.NewValidationError("limit", "limit must be an integer"))
			return
		}
		if l == 0 {
			h.writeError(w, http.StatusBadRequest,
				domain.NewValidationError("limit", "limit must be at least 1"))
			return
		}
		limit = l
	}
	period := r.URL.Query().Get("period")

	lb, err := h.service.Leaderboard(r.Context(), game, limit, period)
	if err != nil {
		h.serviceError(w, err, "get leaderboard")
		return
	}

	h.writeJSON(w, http.StatusOK, lb)
}

// GetPlayerStats returns aggregate statistics for one player within the
// authenticated game
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	game, ok := auth.GameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	playerName := chi.URLParam(r, "playerName")
	if playerName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stats, err := h.service.PlayerStats(r.Context(), game, playerName)
	if err != nil {
		h.serviceError(w, err, "get player stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleWebSocket authenticates and upgrades a live score feed
// connection. The key is taken from the X-API-Key header or, since
// browser WebSocket clients cannot set headers, the api_key query
// parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	rawKey := r.Header.Get(auth.HeaderAPIKey)
	if rawKey == "" {
		rawKey = r.URL.Query().Get("api_key")
	}

	game, err := h.resolver.Resolve(r.Context(), rawKey)
	if err != nil {
		metrics.AuthFailures.Inc()
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	websocket.ServeWs(h.hub, game.ID, h.logger, w, r)
}

// GetWebSocketStats returns live feed connection statistics for the
// authenticated game
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	game, ok := auth.GameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"game_id":   game.ID,
		"listeners": h.hub.GetListenerCount(game.ID),
	})
}
