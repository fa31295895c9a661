package rankings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/features/scores"
)

func rec(userID int64, value float64, normalized int, createdAt time.Time) *scores.ScoreRecord {
	uid := userID
	return &scores.ScoreRecord{
		UserID:          &uid,
		Value:           value,
		NormalizedScore: normalized,
		CreatedAt:       createdAt,
	}
}

func teamRec(teamID int64, value float64, normalized int, createdAt time.Time) *scores.ScoreRecord {
	tid := teamID
	return &scores.ScoreRecord{
		TeamID:          &tid,
		Value:           value,
		NormalizedScore: normalized,
		CreatedAt:       createdAt,
	}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("группировка по участнику", func(t *testing.T) {
		rows := aggregate([]*scores.ScoreRecord{
			rec(1, 80, 80, base),
			rec(1, 45, 90, base.Add(time.Hour)),
			rec(2, 100, 100, base),
		}, ScopeIndividual)
		require.Len(t, rows, 2)

		byID := map[int64]*Row{}
		for _, r := range rows {
			byID[r.SubjectID] = r
		}
		assert.Equal(t, 170, byID[1].TotalNormalizedScore)
		assert.Equal(t, 125.0, byID[1].TotalScore)
		assert.Equal(t, 2, byID[1].ScoreCount)
		assert.Equal(t, 85.0, byID[1].AvgNormalizedScore)
		assert.Equal(t, base.Add(time.Hour), byID[1].LastScore)
		assert.Equal(t, 1, byID[2].ScoreCount)
	})

	t.Run("среднее округляется до двух знаков", func(t *testing.T) {
		rows := aggregate([]*scores.ScoreRecord{
			rec(1, 1, 33, base),
			rec(1, 1, 33, base),
			rec(1, 1, 34, base),
		}, ScopeIndividual)
		require.Len(t, rows, 1)
		assert.Equal(t, 33.33, rows[0].AvgNormalizedScore)
	})

	t.Run("чужая область пропускается", func(t *testing.T) {
		rows := aggregate([]*scores.ScoreRecord{
			rec(1, 80, 80, base),
			teamRec(7, 100, 100, base),
		}, ScopeTeam)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(7), rows[0].SubjectID)
	})
}

func TestSortRows(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("убывание суммы нормализованных", func(t *testing.T) {
		rows := []*Row{
			{SubjectID: 1, TotalNormalizedScore: 50},
			{SubjectID: 2, TotalNormalizedScore: 150},
			{SubjectID: 3, TotalNormalizedScore: 100},
		}
		sortRows(rows)
		assert.Equal(t, int64(2), rows[0].SubjectID)
		assert.Equal(t, int64(3), rows[1].SubjectID)
		assert.Equal(t, int64(1), rows[2].SubjectID)
	})

	t.Run("при равенстве выигрывает более ранняя последняя оценка", func(t *testing.T) {
		rows := []*Row{
			{SubjectID: 1, TotalNormalizedScore: 100, LastScore: base.Add(time.Hour)},
			{SubjectID: 2, TotalNormalizedScore: 100, LastScore: base},
		}
		sortRows(rows)
		assert.Equal(t, int64(2), rows[0].SubjectID)
		assert.Equal(t, int64(1), rows[1].SubjectID)
	})

	t.Run("полное равенство — детерминированно по subject_id", func(t *testing.T) {
		rows := []*Row{
			{SubjectID: 9, TotalNormalizedScore: 100, LastScore: base},
			{SubjectID: 4, TotalNormalizedScore: 100, LastScore: base},
		}
		sortRows(rows)
		assert.Equal(t, int64(4), rows[0].SubjectID)
	})
}

func TestPaginate(t *testing.T) {
	mkRows := func(n int) []*Row {
		rows := make([]*Row, n)
		for i := range rows {
			rows[i] = &Row{SubjectID: int64(i + 1)}
		}
		return rows
	}

	t.Run("ранги сквозные через страницы", func(t *testing.T) {
		page, total := paginate(mkRows(5), 2, 2)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, 3, page[0].Rank)
		assert.Equal(t, 4, page[1].Rank)
	})

	t.Run("offset за пределами списка", func(t *testing.T) {
		page, total := paginate(mkRows(3), 10, 5)
		assert.Equal(t, 3, total)
		assert.Empty(t, page)
	})

	t.Run("limit 0 — весь хвост", func(t *testing.T) {
		page, total := paginate(mkRows(4), 1, 0)
		assert.Equal(t, 4, total)
		assert.Len(t, page, 3)
	})
}
