package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/highscore-api/internal/auth"
	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/domain"
	"github.com/highscore-api/internal/metrics"
	"github.com/highscore-api/internal/ranking"
	"github.com/highscore-api/internal/validate"
)

// Store is the persistence surface the service needs: the games table
// plus the append-only score ledger.
type Store interface {
	CreateGame(ctx context.Context, name, description, apiKeyHash string) (*domain.Game, error)
	ListGames(ctx context.Context) ([]domain.Game, error)
	InsertScore(ctx context.Context, gameID int64, sub domain.ScoreSubmission) (*domain.ScoreEvent, error)
	ScoreEventsSince(ctx context.Context, gameID int64, since *time.Time) ([]domain.ScoreEvent, error)
	PlayerEvents(ctx context.Context, gameID int64, playerName string) ([]domain.ScoreEvent, error)
	CountDistinctPlayersAbove(ctx context.Context, gameID int64, playerName string, score int64) (int64, error)
}

// Broadcaster pushes accepted score events to live subscribers.
type Broadcaster interface {
	BroadcastScore(gameID int64, event domain.ScoreEvent)
}

// HighscoreService provides the business logic behind the API: game
// registration, score submission, leaderboards and player statistics.
type HighscoreService struct {
	store       Store
	config      *config.LeaderboardConfig
	logger      *slog.Logger
	broadcaster Broadcaster
}

// NewHighscoreService creates a new highscore service
func NewHighscoreService(store Store, cfg *config.LeaderboardConfig, logger *slog.Logger) *HighscoreService {
	return &HighscoreService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// SetBroadcaster attaches a live-update broadcaster. Optional; without
// one, submissions are simply not announced.
func (s *HighscoreService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// RegisterGame validates the request, issues a fresh API key and stores
// the game with only the key's hash. The raw key in the returned
// registration is the caller's single chance to see it.
func (s *HighscoreService) RegisterGame(ctx context.Context, req domain.CreateGameRequest) (*domain.GameRegistration, error) {
	name, err := validate.GameName(req.Name)
	if err != nil {
		return nil, err
	}
	description, err := validate.GameDescription(req.Description)
	if err != nil {
		return nil, err
	}

	rawKey, err := auth.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating API key: %w", err)
	}

	game, err := s.store.CreateGame(ctx, name, description, auth.HashKey(rawKey))
	if err != nil {
		return nil, fmt.Errorf("storing game: %w", err)
	}

	s.logger.Info("game registered", "game_id", game.ID, "name", game.Name)

	return &domain.GameRegistration{
		ID:          game.ID,
		Name:        game.Name,
		Description: game.Description,
		APIKey:      rawKey,
		CreatedAt:   game.CreatedAt,
	}, nil
}

// SubmitScore validates a submission and appends it to the ledger. No
// event is written when validation fails.
func (s *HighscoreService) SubmitScore(ctx context.Context, game *domain.Game, sub domain.ScoreSubmission) (*domain.ScoreEvent, error) {
	sub, err := validate.Submission(sub)
	if err != nil {
		return nil, err
	}

	event, err := s.store.InsertScore(ctx, game.ID, sub)
	if err != nil {
		return nil, fmt.Errorf("appending score event: %w", err)
	}

	metrics.ScoresSubmitted.WithLabelValues(game.Name).Inc()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastScore(game.ID, *event)
	}

	return event, nil
}

// Leaderboard computes the game's ranked standings for an optional
// named period. Nothing is cached: every call recomputes from the
// qualifying event set.
func (s *HighscoreService) Leaderboard(ctx context.Context, game *domain.Game, limit int, period string) (*domain.Leaderboard, error) {
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit < 1 || limit > s.config.MaxLimit {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", s.config.MaxLimit))
	}

	var since *time.Time
	if start, ok := ranking.WindowStart(period, time.Now()); ok {
		since = &start
	}

	events, err := s.store.ScoreEventsSince(ctx, game.ID, since)
	if err != nil {
		return nil, fmt.Errorf("loading score events: %w", err)
	}

	entries, total := ranking.Leaderboard(events, limit)

	return &domain.Leaderboard{
		GameID:       game.ID,
		GameName:     game.Name,
		Entries:      entries,
		TotalEntries: total,
		Period:       period,
	}, nil
}

// PlayerStats aggregates a player's events within the game. A player
// with no events is unknown to the tenant and yields ErrPlayerNotFound.
func (s *HighscoreService) PlayerStats(ctx context.Context, game *domain.Game, playerName string) (*domain.PlayerStats, error) {
	events, err := s.store.PlayerEvents(ctx, game.ID, playerName)
	if err != nil {
		return nil, fmt.Errorf("loading player events: %w", err)
	}
	if len(events) == 0 {
		return nil, domain.ErrPlayerNotFound
	}

	stats := ranking.PlayerAggregates(events)
	stats.PlayerName = playerName
	stats.GameID = game.ID

	betterPlayers, err := s.store.CountDistinctPlayersAbove(ctx, game.ID, playerName, stats.BestScore)
	if err != nil {
		return nil, fmt.Errorf("counting better players: %w", err)
	}
	stats.Rank = betterPlayers + 1

	return &stats, nil
}
