package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/highscore-api/internal/domain"
	"github.com/highscore-api/internal/metrics"
)

// HeaderAPIKey is the request header carrying the raw API key.
const HeaderAPIKey = "X-API-Key"

type contextKey string

const gameContextKey contextKey = "game"

// Middleware resolves the X-API-Key header to a game and injects it
// into the request context. Requests without a resolvable key get 401.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		game, err := r.Resolve(req.Context(), req.Header.Get(HeaderAPIKey))
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) {
				r.logger.Error("failed to resolve API key", "error", err)
				writeAuthError(w, http.StatusInternalServerError, domain.ErrInternalError.Error())
				return
			}
			metrics.AuthFailures.Inc()
			writeAuthError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
			return
		}

		ctx := context.WithValue(req.Context(), gameContextKey, game)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// GameFromContext extracts the authenticated game from a request
// context.
func GameFromContext(ctx context.Context) (*domain.Game, bool) {
	game, ok := ctx.Value(gameContextKey).(*domain.Game)
	return game, ok
}

// WithGame returns a context carrying an authenticated game. Intended
// for tests and non-HTTP callers.
func WithGame(ctx context.Context, game *domain.Game) context.Context {
	return context.WithValue(ctx, gameContextKey, game)
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
