// Package auth implements the per-game API key scheme: opaque random
// keys handed out once at registration, irreversible PBKDF2 hashes in
// storage, and resolution of a presented key back to its game.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/pbkdf2"

	"github.com/highscore-api/internal/domain"
)

const (
	// KeyPrefix identifies raw keys in logs and client configs without
	// revealing anything about them.
	KeyPrefix = "game_"

	keyEntropyBytes = 32
	hashIterations  = 100_000
	hashLen         = 32
)

// Application-wide salt. Rotating it invalidates every stored hash.
var keySalt = []byte("highscore_api_salt_2025")

// GenerateKey creates a new raw API key: the prefix plus 32 bytes of
// entropy in URL-safe base64. The raw key is shown to the caller
// exactly once and never stored.
func GenerateKey() (string, error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashKey derives the storage hash for a raw key using PBKDF2-SHA256
// with the fixed application salt. The derivation is deliberately slow.
func HashKey(rawKey string) string {
	sum := pbkdf2.Key([]byte(rawKey), keySalt, hashIterations, hashLen, sha256.New)
	return hex.EncodeToString(sum)
}

// GameLister provides access to all registered games.
type GameLister interface {
	ListGames(ctx context.Context) ([]domain.Game, error)
}

// Resolver maps presented API keys to games.
type Resolver struct {
	store  GameLister
	logger *slog.Logger
}

// NewResolver creates a new key resolver.
func NewResolver(store GameLister, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve recomputes the hash of the presented key and scans every
// registered game for a matching stored hash. The linear scan is a
// known scalability ceiling: one key derivation plus O(game count)
// comparisons per request.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*domain.Game, error) {
	if rawKey == "" {
		return nil, domain.ErrUnauthorized
	}

	hash := HashKey(rawKey)

	games, err := r.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	for i := range games {
		if games[i].APIKeyHash == hash {
			return &games[i], nil
		}
	}
	return nil, domain.ErrUnauthorized
}
