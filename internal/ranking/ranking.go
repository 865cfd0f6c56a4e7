// Package ranking computes leaderboards and per-player aggregates from
// raw score events. Nothing here is cached or persisted: every call
// recomputes from the event set it is handed.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/highscore-api/internal/domain"
)

// Leaderboard groups events by player, takes each player's best score
// and most recent event timestamp, sorts by best score descending and
// assigns consecutive ranks 1..N. Equal scores keep their relative
// event order; no secondary sort key is applied. The returned total is
// the number of distinct players with at least one event, independent
// of limit.
func Leaderboard(events []domain.ScoreEvent, limit int) ([]domain.LeaderboardEntry, int64) {
	type playerBest struct {
		name   string
		best   int64
		latest time.Time
	}

	byPlayer := make(map[string]*playerBest)
	order := make([]*playerBest, 0)

	for _, ev := range events {
		pb, ok := byPlayer[ev.PlayerName]
		if !ok {
			pb = &playerBest{name: ev.PlayerName, best: ev.Score, latest: ev.CreatedAt}
			byPlayer[ev.PlayerName] = pb
			order = append(order, pb)
			continue
		}
		if ev.Score > pb.best {
			pb.best = ev.Score
		}
		if ev.CreatedAt.After(pb.latest) {
			pb.latest = ev.CreatedAt
		}
	}

	total := int64(len(order))

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].best > order[j].best
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	entries := make([]domain.LeaderboardEntry, len(order))
	for i, pb := range order {
		entries[i] = domain.LeaderboardEntry{
			Rank:       int64(i + 1),
			PlayerName: pb.name,
			Score:      pb.best,
			CreatedAt:  pb.latest,
		}
	}
	return entries, total
}

// PlayerAggregates computes count, best, worst, mean (rounded to two
// decimal places) and first/last activity over one player's events.
// The caller guarantees events is non-empty.
func PlayerAggregates(events []domain.ScoreEvent) (stats domain.PlayerStats) {
	stats.TotalScores = int64(len(events))
	stats.BestScore = events[0].Score
	stats.WorstScore = events[0].Score
	stats.FirstPlayed = events[0].CreatedAt
	stats.LastPlayed = events[0].CreatedAt

	var sum int64
	for _, ev := range events {
		sum += ev.Score
		if ev.Score > stats.BestScore {
			stats.BestScore = ev.Score
		}
		if ev.Score < stats.WorstScore {
			stats.WorstScore = ev.Score
		}
		if ev.CreatedAt.Before(stats.FirstPlayed) {
			stats.FirstPlayed = ev.CreatedAt
		}
		if ev.CreatedAt.After(stats.LastPlayed) {
			stats.LastPlayed = ev.CreatedAt
		}
	}

	mean := float64(sum) / float64(len(events))
	stats.AverageScore = math.Round(mean*100) / 100
	return stats
}

// WindowStart resolves a named period to its cutoff timestamp relative
// to now. "month" and "year" are fixed 30 and 365 day lookbacks, not
// calendar units. Unknown or empty periods mean all-time and return
// ok=false.
func WindowStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "today":
		utc := now.UTC()
		return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), true
	case "week":
		return now.Add(-7 * 24 * time.Hour), true
	case "month":
		return now.Add(-30 * 24 * time.Hour), true
	case "year":
		return now.Add(-365 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}
