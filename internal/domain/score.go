package domain

import "time"

// ScoreEvent is a single immutable entry in the score ledger. A player's
// current standing is always derived from their events, never stored.
type ScoreEvent struct {
	ID         int64                  `json:"id"`
	GameID     int64                  `json:"game_id"`
	PlayerName string                 `json:"player_name"`
	Score      int64                  `json:"score"`
	Metadata   map[string]interface{} `json:"game_metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ScoreSubmission represents a request to record a score.
type ScoreSubmission struct {
	PlayerName string                 `json:"player_name"`
	Score      int64                  `json:"score"`
	Metadata   map[string]interface{} `json:"game_metadata,omitempty"`
}

// LeaderboardEntry is a ranked row computed from the ledger. CreatedAt
// carries the player's most recent event timestamp within the queried
// window.
type LeaderboardEntry struct {
	Rank       int64     `json:"rank"`
	PlayerName string    `json:"player_name"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// Leaderboard is the full leaderboard response for one game.
type Leaderboard struct {
	GameID       int64              `json:"game_id"`
	GameName     string             `json:"game_name"`
	Entries      []LeaderboardEntry `json:"entries"`
	TotalEntries int64              `json:"total_entries"`
	Period       string             `json:"period,omitempty"`
}

// PlayerStats aggregates one player's events within one game.
//
// Rank here is one plus the number of distinct other players whose best
// score strictly exceeds this player's best. Two players with an equal
// best score therefore share the same rank value, unlike leaderboard
// positions which are always consecutive.
type PlayerStats struct {
	PlayerName   string    `json:"player_name"`
	GameID       int64     `json:"game_id"`
	TotalScores  int64     `json:"total_scores"`
	BestScore    int64     `json:"best_score"`
	AverageScore float64   `json:"average_score"`
	WorstScore   int64     `json:"worst_score"`
	Rank         int64     `json:"rank"`
	FirstPlayed  time.Time `json:"first_played"`
	LastPlayed   time.Time `json:"last_played"`
}
