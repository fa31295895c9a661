package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	t.Run("разбирает английские и русские названия", func(t *testing.T) {
		cases := map[string]Period{
			"day":    PeriodDay,
			"день":   PeriodDay,
			"week":   PeriodWeek,
			"неделя": PeriodWeek,
			"month":  PeriodMonth,
			"месяц":  PeriodMonth,
			"year":   PeriodYear,
			"год":    PeriodYear,
			"all":    PeriodAll,
			"":       PeriodAll,
		}
		for in, want := range cases {
			got, err := ParsePeriod(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("неизвестный период — ErrBadRequest", func(t *testing.T) {
		_, err := ParsePeriod("decade")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadRequest)
	})
}

func TestPeriodCutoffFrom(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("окна считаются от now", func(t *testing.T) {
		cutoff, ok := PeriodDay.CutoffFrom(now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(0, 0, -1), cutoff)

		cutoff, ok = PeriodWeek.CutoffFrom(now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(0, 0, -7), cutoff)

		cutoff, ok = PeriodMonth.CutoffFrom(now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(0, -1, 0), cutoff)

		cutoff, ok = PeriodYear.CutoffFrom(now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(-1, 0, 0), cutoff)
	})

	t.Run("all — без нижней границы", func(t *testing.T) {
		_, ok := PeriodAll.CutoffFrom(now)
		assert.False(t, ok)
	})

	t.Run("граница включающая: запись ровно на границе недели попадает", func(t *testing.T) {
		cutoff, ok := PeriodWeek.CutoffFrom(now)
		require.True(t, ok)

		createdAt := now.AddDate(0, 0, -7) // ровно now − 7 дней
		// условие выборки — createdAt >= cutoff
		assert.False(t, createdAt.Before(cutoff))
	})
}

func TestPeriodValid(t *testing.T) {
	assert.True(t, PeriodWeek.Valid())
	assert.True(t, PeriodAll.Valid())
	assert.False(t, Period("quarter").Valid())
}
