package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/domain"
)

// Repository provides PostgreSQL-based data access for the games table
// and the append-only score ledger.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations. The cascade on scores is
// declared for completeness; no endpoint deletes games.
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description VARCHAR(500),
			api_key_hash VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			player_name VARCHAR(50) NOT NULL,
			score BIGINT NOT NULL,
			game_metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_score ON scores(game_id, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_player ON scores(game_id, player_name)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_created ON scores(game_id, created_at)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateGame inserts a new game with its credential hash and returns
// the stored record.
func (r *Repository) CreateGame(ctx context.Context, name, description, apiKeyHash string) (*domain.Game, error) {
	query := `
		INSERT INTO games (name, description, api_key_hash)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING id, created_at
	`
	game := &domain.Game{
		Name:        name,
		Description: description,
		APIKeyHash:  apiKeyHash,
	}
	err := r.pool.QueryRow(ctx, query, name, description, apiKeyHash).Scan(&game.ID, &game.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	return game, nil
}

// ListGames retrieves all registered games. Credential resolution scans
// this full set per request.
func (r *Repository) ListGames(ctx context.Context) ([]domain.Game, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), api_key_hash, created_at
		FROM games
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var game domain.Game
		err := rows.Scan(
			&game.ID,
			&game.Name,
			&game.Description,
			&game.APIKeyHash,
			&game.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// InsertScore appends one event to the ledger. The single INSERT is the
// transactional unit: either the whole event lands or nothing does.
func (r *Repository) InsertScore(ctx context.Context, gameID int64, sub domain.ScoreSubmission) (*domain.ScoreEvent, error) {
	var metadataJSON []byte
	var err error
	if sub.Metadata != nil {
		metadataJSON, err = json.Marshal(sub.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	query := `
		INSERT INTO scores (game_id, player_name, score, game_metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	event := &domain.ScoreEvent{
		GameID:     gameID,
		PlayerName: sub.PlayerName,
		Score:      sub.Score,
		Metadata:   sub.Metadata,
	}
	err = r.pool.QueryRow(ctx, query, gameID, sub.PlayerName, sub.Score, metadataJSON).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting score: %w", err)
	}
	return event, nil
}

// ScoreEventsSince returns a game's events, optionally restricted to
// those at or after since, ordered by creation. Metadata is not loaded;
// ranking only needs player, score and timestamp.
func (r *Repository) ScoreEventsSince(ctx context.Context, gameID int64, since *time.Time) ([]domain.ScoreEvent, error) {
	var query string
	var args []interface{}
	if since != nil {
		query = `
			SELECT id, player_name, score, created_at
			FROM scores
			WHERE game_id = $1 AND created_at >= $2
			ORDER BY created_at, id
		`
		args = []interface{}{gameID, *since}
	} else {
		query = `
			SELECT id, player_name, score, created_at
			FROM scores
			WHERE game_id = $1
			ORDER BY created_at, id
		`
		args = []interface{}{gameID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying score events: %w", err)
	}
	defer rows.Close()

	var events []domain.ScoreEvent
	for rows.Next() {
		event := domain.ScoreEvent{GameID: gameID}
		if err := rows.Scan(&event.ID, &event.PlayerName, &event.Score, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PlayerEvents returns every event one player has in one game, ordered
// by creation.
func (r *Repository) PlayerEvents(ctx context.Context, gameID int64, playerName string) ([]domain.ScoreEvent, error) {
	query := `
		SELECT id, score, created_at
		FROM scores
		WHERE game_id = $1 AND player_name = $2
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, gameID, playerName)
	if err != nil {
		return nil, fmt.Errorf("querying player events: %w", err)
	}
	defer rows.Close()

	var events []domain.ScoreEvent
	for rows.Next() {
		event := domain.ScoreEvent{GameID: gameID, PlayerName: playerName}
		if err := rows.Scan(&event.ID, &event.Score, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning player event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountDistinctPlayersAbove counts the distinct other players in a game
// with at least one event scoring strictly above the given value. Used
// for the player-stats rank formula.
func (r *Repository) CountDistinctPlayersAbove(ctx context.Context, gameID int64, playerName string, score int64) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT player_name)
		FROM scores
		WHERE game_id = $1 AND player_name <> $2 AND score > $3
	`
	var count int64
	err := r.pool.QueryRow(ctx, query, gameID, playerName, score).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting better players: %w", err)
	}
	return count, nil
}
