package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highscore-api/internal/auth"
	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/domain"
)

// fakeStore is an in-memory Store used to exercise the service without
// a database.
type fakeStore struct {
	games       []domain.Game
	events      []domain.ScoreEvent
	nextGameID  int64
	nextEventID int64
	insertErr   error
}

func (f *fakeStore) CreateGame(ctx context.Context, name, description, apiKeyHash string) (*domain.Game, error) {
	f.nextGameID++
	game := domain.Game{
		ID:          f.nextGameID,
		Name:        name,
		Description: description,
		APIKeyHash:  apiKeyHash,
		CreatedAt:   time.Now().UTC(),
	}
	f.games = append(f.games, game)
	return &game, nil
}

func (f *fakeStore) ListGames(ctx context.Context) ([]domain.Game, error) {
	return f.games, nil
}

func (f *fakeStore) InsertScore(ctx context.Context, gameID int64, sub domain.ScoreSubmission) (*domain.ScoreEvent, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextEventID++
	event := domain.ScoreEvent{
		ID:         f.nextEventID,
		GameID:     gameID,
		PlayerName: sub.PlayerName,
		Score:      sub.Score,
		Metadata:   sub.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeStore) ScoreEventsSince(ctx context.Context, gameID int64, since *time.Time) ([]domain.ScoreEvent, error) {
	var out []domain.ScoreEvent
	for _, ev := range f.events {
		if ev.GameID != gameID {
			continue
		}
		if since != nil && ev.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeStore) PlayerEvents(ctx context.Context, gameID int64, playerName string) ([]domain.ScoreEvent, error) {
	var out []domain.ScoreEvent
	for _, ev := range f.events {
		if ev.GameID == gameID && ev.PlayerName == playerName {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) CountDistinctPlayersAbove(ctx context.Context, gameID int64, playerName string, score int64) (int64, error) {
	better := make(map[string]struct{})
	for _, ev := range f.events {
		if ev.GameID == gameID && ev.PlayerName != playerName && ev.Score > score {
			better[ev.PlayerName] = struct{}{}
		}
	}
	return int64(len(better)), nil
}

// addEvent seeds the ledger directly, bypassing validation, so tests
// can control timestamps.
func (f *fakeStore) addEvent(gameID int64, player string, score int64, at time.Time) {
	f.nextEventID++
	f.events = append(f.events, domain.ScoreEvent{
		ID: f.nextEventID, GameID: gameID, PlayerName: player, Score: score, CreatedAt: at,
	})
}

func newTestService(store *fakeStore) *HighscoreService {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	return NewHighscoreService(store, &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100}, logger)
}

func TestRegisterGame(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	reg, err := svc.RegisterGame(context.Background(), domain.CreateGameRequest{
		Name:        "  Space Invaders  ",
		Description: "Shoot the aliens.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Space Invaders", reg.Name, "name is trimmed")
	assert.True(t, strings.HasPrefix(reg.APIKey, auth.KeyPrefix))
	require.Len(t, store.games, 1)
	assert.Equal(t, auth.HashKey(reg.APIKey), store.games[0].APIKeyHash, "only the hash is persisted")
	assert.NotContains(t, store.games[0].APIKeyHash, reg.APIKey)
}

func TestRegisterGameInvalidName(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.RegisterGame(context.Background(), domain.CreateGameRequest{Name: "<html>"})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Empty(t, store.games, "nothing persisted on validation failure")
}

func TestSubmitScoreAndStats(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	game := &domain.Game{ID: 1, Name: "Tetris"}

	scores := []int64{1000, 1200, 800}
	for _, sc := range scores {
		_, err := svc.SubmitScore(context.Background(), game, domain.ScoreSubmission{
			PlayerName: "Alice", Score: sc,
		})
		require.NoError(t, err)
	}

	stats, err := svc.PlayerStats(context.Background(), game, "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalScores)
	assert.Equal(t, int64(1200), stats.BestScore)
	assert.Equal(t, int64(800), stats.WorstScore)
	assert.Equal(t, 1000.0, stats.AverageScore)
	assert.Equal(t, int64(1), stats.Rank, "no other player is better")
}

func TestSubmitScoreRejectedLeavesLedgerUnchanged(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	game := &domain.Game{ID: 1, Name: "Tetris"}

	cases := []domain.ScoreSubmission{
		{PlayerName: "bad<name>", Score: 10},
		{PlayerName: "Alice", Score: -1},
		{PlayerName: "Alice", Score: 1_000_000_000},
		{PlayerName: "Alice", Score: 10, Metadata: map[string]interface{}{
			"blob": strings.Repeat("x", 11_000),
		}},
	}

	for _, sub := range cases {
		_, err := svc.SubmitScore(context.Background(), game, sub)
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	}
	assert.Empty(t, store.events, "no event stored for any rejected submission")
}

func TestSubmitScoreStorageFailure(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection reset")}
	svc := newTestService(store)

	_, err := svc.SubmitScore(context.Background(), &domain.Game{ID: 1, Name: "Tetris"},
		domain.ScoreSubmission{PlayerName: "Alice", Score: 10})
	require.Error(t, err)
	assert.False(t, domain.IsValidationError(err))
}

func TestLeaderboardScenario(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	game := &domain.Game{ID: 1, Name: "Tetris"}

	now := time.Now().UTC()
	store.addEvent(1, "Alice", 1000, now)
	store.addEvent(1, "Bob", 1500, now.Add(time.Second))
	store.addEvent(1, "Charlie", 900, now.Add(2*time.Second))
	store.addEvent(1, "Alice", 1200, now.Add(3*time.Second))

	lb, err := svc.Leaderboard(context.Background(), game, 10, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), lb.GameID)
	assert.Equal(t, "Tetris", lb.GameName)
	assert.Equal(t, int64(3), lb.TotalEntries)
	require.Len(t, lb.Entries, 3)

	assert.Equal(t, domain.LeaderboardEntry{Rank: 1, PlayerName: "Bob", Score: 1500, CreatedAt: now.Add(time.Second)}, lb.Entries[0])
	assert.Equal(t, "Alice", lb.Entries[1].PlayerName)
	assert.Equal(t, int64(1200), lb.Entries[1].Score)
	assert.Equal(t, "Charlie", lb.Entries[2].PlayerName)

	stats, err := svc.PlayerStats(context.Background(), game, "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalScores)
	assert.Equal(t, int64(1200), stats.BestScore)
	assert.Equal(t, int64(1000), stats.WorstScore)
	assert.Equal(t, 1100.0, stats.AverageScore)
	assert.Equal(t, int64(2), stats.Rank, "only Bob exceeds Alice's best")
}

func TestLeaderboardLimitIndependentTotal(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	game := &domain.Game{ID: 1, Name: "Tetris"}

	now := time.Now().UTC()
	for i := 0; i < 30; i++ {
		store.addEvent(1, "player"+string(rune('a'+i)), int64(i), now)
	}

	lb, err := svc.Leaderboard(context.Background(), game, 5, "")
	require.NoError(t, err)
	assert.Len(t, lb.Entries, 5)
	assert.Equal(t, int64(30), lb.TotalEntries)
}

func TestLeaderboardWindow(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	game := &domain.Game{ID: 1, Name: "Tetris"}

	now := time.Now().UTC()
	store.addEvent(1, "Old", 9999, now.Add(-10*24*time.Hour))
	store.addEvent(1, "Recent", 100, now.Add(-time.Hour))

	lb, err := svc.Leaderboard(context.Background(), game, 10, "week")
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "Recent", lb.Entries[0].PlayerName)
	assert.Equal(t, int64(1), lb.TotalEntries, "window filter also applies to the total")

	lb, err = svc.Leaderboard(context.Background(), game, 10, "")
	require.NoError(t, err)
	assert.Len(t, lb.Entries, 2, "all-time includes everything")

	lb, err = svc.Leaderboard(context.Background(), game, 10, "fortnight")
	require.NoError(t, err)
	assert.Len(t, lb.Entries, 2, "unrecognized period means all-time")
}

func TestLeaderboardLimitValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	game := &domain.Game{ID: 1, Name: "Tetris"}

	_, err := svc.Leaderboard(context.Background(), game, 101, "")
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	_, err = svc.Leaderboard(context.Background(), game, -1, "")
	require.Error(t, err)

	lb, err := svc.Leaderboard(context.Background(), game, 0, "")
	require.NoError(t, err, "zero falls back to the default limit")
	assert.NotNil(t, lb)
}

func TestPlayerStatsNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})
	game := &domain.Game{ID: 1, Name: "Tetris"}

	_, err := svc.PlayerStats(context.Background(), game, "Nobody")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

type recordingBroadcaster struct {
	gameIDs []int64
	events  []domain.ScoreEvent
}

func (r *recordingBroadcaster) BroadcastScore(gameID int64, event domain.ScoreEvent) {
	r.gameIDs = append(r.gameIDs, gameID)
	r.events = append(r.events, event)
}

func TestSubmitScoreBroadcasts(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	b := &recordingBroadcaster{}
	svc.SetBroadcaster(b)

	_, err := svc.SubmitScore(context.Background(), &domain.Game{ID: 4, Name: "Pong"},
		domain.ScoreSubmission{PlayerName: "Alice", Score: 42})
	require.NoError(t, err)

	require.Len(t, b.events, 1)
	assert.Equal(t, int64(4), b.gameIDs[0])
	assert.Equal(t, int64(42), b.events[0].Score)
}
