// Package validate enforces input constraints before anything reaches
// the ledger. All checks fail fast: a violation rejects the whole
// operation before any write or query happens.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/highscore-api/internal/domain"
)

// Input limits
const (
	MaxGameNameLen    = 100
	MaxDescriptionLen = 500
	MaxPlayerNameLen  = 50
	MaxScoreValue     = 999_999_999
	MaxMetadataBytes  = 10_240
)

// Word characters are Unicode letters and digits plus underscore, so
// names like "Müller" or "Góra" are accepted. Go's \w is ASCII-only.
var (
	gameNamePattern    = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.,!?()]+$`)
	descriptionPattern = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.,!?()"':;]+$`)
	playerNamePattern  = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.@]+$`)
	metadataKeyPattern = regexp.MustCompile(`^[\p{L}\p{N}_\-]+$`)
)

// GameName trims and validates a game name, returning the sanitized
// value.
func GameName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("name", "game name cannot be empty or whitespace only")
	}
	if utf8.RuneCountInString(name) > MaxGameNameLen {
		return "", domain.NewValidationError("name", fmt.Sprintf("game name exceeds %d characters", MaxGameNameLen))
	}
	if !gameNamePattern.MatchString(name) {
		return "", domain.NewValidationError("name", "game name contains invalid characters")
	}
	return name, nil
}

// GameDescription trims and validates an optional game description.
// Empty descriptions are allowed.
func GameDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", nil
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return "", domain.NewValidationError("description", fmt.Sprintf("description exceeds %d characters", MaxDescriptionLen))
	}
	if !descriptionPattern.MatchString(description) {
		return "", domain.NewValidationError("description", "description contains invalid characters")
	}
	return description, nil
}

// PlayerName trims and validates a player identifier.
func PlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("player_name", "player name cannot be empty or whitespace only")
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLen {
		return "", domain.NewValidationError("player_name", fmt.Sprintf("player name exceeds %d characters", MaxPlayerNameLen))
	}
	if !playerNamePattern.MatchString(name) {
		return "", domain.NewValidationError("player_name", "player name contains invalid characters; allowed: letters, numbers, spaces, -, _, ., @")
	}
	return name, nil
}

// Score validates the numeric score range.
func Score(score int64) error {
	if score < 0 {
		return domain.NewValidationError("score", "score must be non-negative")
	}
	if score > MaxScoreValue {
		return domain.NewValidationError("score", fmt.Sprintf("score exceeds maximum value of %d", MaxScoreValue))
	}
	return nil
}

// Metadata validates an optional metadata mapping: total serialized
// size and key charset. Value shapes are unconstrained beyond size.
func Metadata(metadata map[string]interface{}) error {
	if metadata == nil {
		return nil
	}
	serialized, err := json.Marshal(metadata)
	if err != nil {
		return domain.NewValidationError("game_metadata", "metadata is not serializable")
	}
	if len(serialized) > MaxMetadataBytes {
		return domain.NewValidationError("game_metadata", fmt.Sprintf("metadata too large, maximum size is %d bytes", MaxMetadataBytes))
	}
	for key := range metadata {
		if !metadataKeyPattern.MatchString(key) {
			return domain.NewValidationError("game_metadata", fmt.Sprintf("invalid metadata key %q, only alphanumeric, -, _ allowed", key))
		}
	}
	return nil
}

// Submission validates a full score submission and returns it with the
// player name sanitized.
func Submission(sub domain.ScoreSubmission) (domain.ScoreSubmission, error) {
	player, err := PlayerName(sub.PlayerName)
	if err != nil {
		return sub, err
	}
	if err := Score(sub.Score); err != nil {
		return sub, err
	}
	if err := Metadata(sub.Metadata); err != nil {
		return sub, err
	}
	sub.PlayerName = player
	return sub, nil
}
