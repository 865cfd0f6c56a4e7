package domain

import "time"

// Game represents a registered tenant of the highscore API. Games are
// immutable after creation; there is no update or delete endpoint.
type Game struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	APIKeyHash  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateGameRequest represents a request to register a new game.
type CreateGameRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GameRegistration is the one-time registration response. APIKey is the
// raw credential and is never stored or shown again.
type GameRegistration struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	APIKey      string    `json:"api_key"`
	CreatedAt   time.Time `json:"created_at"`
}
