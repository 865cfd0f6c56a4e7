package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highscore-api/internal/domain"
)

func TestGameName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "Space Invaders", "Space Invaders", false},
		{"trims whitespace", "  Tetris  ", "Tetris", false},
		{"punctuation allowed", "Pac-Man (Deluxe), v2!", "Pac-Man (Deluxe), v2!", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"angle brackets rejected", "<script>", "", true},
		{"slash rejected", "a/b", "", true},
		{"too long", strings.Repeat("a", MaxGameNameLen+1), "", true},
		{"at limit", strings.Repeat("a", MaxGameNameLen), strings.Repeat("a", MaxGameNameLen), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GameName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameDescription(t *testing.T) {
	got, err := GameDescription(`A "classic" arcade game: fun; addictive`)
	require.NoError(t, err)
	assert.Equal(t, `A "classic" arcade game: fun; addictive`, got)

	got, err = GameDescription("   ")
	require.NoError(t, err)
	assert.Empty(t, got, "empty descriptions are allowed")

	_, err = GameDescription(strings.Repeat("x", MaxDescriptionLen+1))
	require.Error(t, err)

	_, err = GameDescription("no <html> here")
	require.Error(t, err)
}

func TestPlayerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Alice", "Alice", false},
		{"email style", "alice@example.com", "alice@example.com", false},
		{"underscore dot dash", "a_b.c-d", "a_b.c-d", false},
		{"trimmed", " Bob ", "Bob", false},
		{"empty", "", "", true},
		{"whitespace only", "\t\n", "", true},
		{"exclamation rejected", "Bob!", "", true},
		{"parens rejected", "Bob()", "", true},
		{"too long", strings.Repeat("p", MaxPlayerNameLen+1), "", true},
		{"accented letters", "Müller", "Müller", false},
		{"non-latin letters", "山田太郎", "山田太郎", false},
		{"emoji rejected", "Alice🎮", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlayerName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLengthCapsCountCharactersNotBytes(t *testing.T) {
	// "ü" is two bytes in UTF-8; 50 of them must still fit the player
	// name cap.
	name := strings.Repeat("ü", MaxPlayerNameLen)
	got, err := PlayerName(name)
	require.NoError(t, err)
	assert.Equal(t, name, got)

	_, err = PlayerName(strings.Repeat("ü", MaxPlayerNameLen+1))
	require.Error(t, err)

	gameName := strings.Repeat("é", MaxGameNameLen)
	_, err = GameName(gameName)
	require.NoError(t, err)

	_, err = GameDescription(strings.Repeat("é", MaxDescriptionLen+1))
	require.Error(t, err)
}

func TestScore(t *testing.T) {
	assert.NoError(t, Score(0))
	assert.NoError(t, Score(MaxScoreValue))
	assert.Error(t, Score(-1))
	assert.Error(t, Score(MaxScoreValue+1))
}

func TestMetadata(t *testing.T) {
	assert.NoError(t, Metadata(nil))
	assert.NoError(t, Metadata(map[string]interface{}{
		"level":    5,
		"mode":     "hardcore",
		"power-up": []string{"shield", "boost"},
	}))

	assert.NoError(t, Metadata(map[string]interface{}{"straße": 1}), "unicode word characters in keys")

	err := Metadata(map[string]interface{}{"bad key!": 1})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	big := map[string]interface{}{"blob": strings.Repeat("z", MaxMetadataBytes+1)}
	err = Metadata(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestSubmission(t *testing.T) {
	sub, err := Submission(domain.ScoreSubmission{PlayerName: "  Alice ", Score: 100})
	require.NoError(t, err)
	assert.Equal(t, "Alice", sub.PlayerName)

	_, err = Submission(domain.ScoreSubmission{PlayerName: "Alice", Score: -5})
	require.Error(t, err)

	_, err = Submission(domain.ScoreSubmission{PlayerName: "Al<ice>", Score: 10})
	require.Error(t, err)
}
