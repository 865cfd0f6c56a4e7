package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highscore-api/internal/domain"
)

type fakeLister struct {
	games []domain.Game
}

func (f *fakeLister) ListGames(ctx context.Context) ([]domain.Game, error) {
	return f.games, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	// 32 bytes of entropy is 43 base64 characters without padding.
	assert.Len(t, key, len(KeyPrefix)+43)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestHashKeyDeterministic(t *testing.T) {
	key := "game_fixed-test-key"
	assert.Equal(t, HashKey(key), HashKey(key))
	assert.NotEqual(t, HashKey(key), HashKey(key+"x"))
	assert.Len(t, HashKey(key), 64, "hex-encoded 32-byte digest")
}

func TestResolveRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	store := &fakeLister{games: []domain.Game{
		{ID: 1, Name: "Other", APIKeyHash: HashKey("game_something-else")},
		{ID: 2, Name: "Mine", APIKeyHash: HashKey(key), CreatedAt: time.Now()},
	}}
	resolver := NewResolver(store, testLogger())

	game, err := resolver.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), game.ID)
	assert.Equal(t, "Mine", game.Name)
}

func TestResolveUnknownKey(t *testing.T) {
	store := &fakeLister{games: []domain.Game{
		{ID: 1, APIKeyHash: HashKey("game_registered")},
	}}
	resolver := NewResolver(store, testLogger())

	_, err := resolver.Resolve(context.Background(), "game_not-a-real-key")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	store := &fakeLister{games: []domain.Game{
		{ID: 7, Name: "Asteroids", APIKeyHash: HashKey(key)},
	}}
	resolver := NewResolver(store, testLogger())

	var seen *domain.Game
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		game, ok := GameFromContext(r.Context())
		require.True(t, ok)
		seen = game
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/me", nil)
	req.Header.Set(HeaderAPIKey, key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.ID)
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	resolver := NewResolver(&fakeLister{}, testLogger())
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid API key")
}
