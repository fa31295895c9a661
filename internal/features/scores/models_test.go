package scores

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		max      float64
		expected int
	}{
		{"обычное значение", 85, 100, 85},
		{"полный балл", 100, 100, 100},
		{"ноль", 0, 100, 0},
		{"превышение потолка обрезается до 100", 150, 100, 100},
		{"другая шкала", 7, 10, 70},
		{"округление вверх", 2, 3, 67},
		{"округление половины", 1, 8, 13}, // 12.5 → 13
		{"некорректный потолок", 50, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.value, tt.max))
		})
	}
}

func TestRecompute(t *testing.T) {
	rec := &ScoreRecord{Value: 45, MaxPossible: 50}
	rec.Recompute()
	assert.Equal(t, 90, rec.NormalizedScore)

	rec.Value = 60
	rec.Recompute()
	assert.Equal(t, 100, rec.NormalizedScore)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusApproved.Valid())
	assert.True(t, StatusRejected.Valid())
	assert.True(t, StatusDisputed.Valid())
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestScoreContextValid(t *testing.T) {
	assert.True(t, ContextIndividual.Valid())
	assert.True(t, ContextTeam.Valid())
	assert.True(t, ContextGroup.Valid())
	assert.False(t, ScoreContext("global").Valid())
}

func TestIsTeam(t *testing.T) {
	teamID := int64(5)
	assert.True(t, (&ScoreRecord{TeamID: &teamID}).IsTeam())
	userID := int64(10)
	assert.False(t, (&ScoreRecord{UserID: &userID}).IsTeam())
}
