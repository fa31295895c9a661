package scores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
)

func TestFilterConditions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("пустой фильтр — TRUE без аргументов", func(t *testing.T) {
		cond, args := Filter{}.Conditions(1, now)
		assert.Equal(t, "TRUE", cond)
		assert.Empty(t, args)
	})

	t.Run("нумерация placeholder'ов с произвольного старта", func(t *testing.T) {
		userID := int64(42)
		status := StatusApproved
		f := Filter{UserID: &userID, Status: &status}

		cond, args := f.Conditions(3, now)
		assert.Equal(t, "user_id = $3 AND status = $4", cond)
		require.Len(t, args, 2)
		assert.Equal(t, int64(42), args[0])
		assert.Equal(t, "approved", args[1])
	})

	t.Run("период разворачивается во включающую нижнюю границу", func(t *testing.T) {
		f := Filter{Period: common.PeriodWeek}
		cond, args := f.Conditions(1, now)
		assert.Equal(t, "created_at >= $1", cond)
		require.Len(t, args, 1)
		assert.Equal(t, now.AddDate(0, 0, -7), args[0])
	})

	t.Run("явный Since важнее периода", func(t *testing.T) {
		since := now.AddDate(0, 0, -2)
		f := Filter{Period: common.PeriodYear, Since: &since}
		cond, args := f.Conditions(1, now)
		assert.Equal(t, "created_at >= $1", cond)
		require.Len(t, args, 1)
		assert.Equal(t, since, args[0])
	})

	t.Run("период all не даёт границы", func(t *testing.T) {
		cond, args := Filter{Period: common.PeriodAll}.Conditions(1, now)
		assert.Equal(t, "TRUE", cond)
		assert.Empty(t, args)
	})

	t.Run("флаги типа субъекта не тратят placeholder'ы", func(t *testing.T) {
		activityID := int64(7)
		f := Filter{OnlyTeam: true, ActivityID: &activityID}
		cond, args := f.Conditions(1, now)
		assert.Equal(t, "activity_id = $1 AND team_id IS NOT NULL", cond)
		assert.Len(t, args, 1)
	})
}
