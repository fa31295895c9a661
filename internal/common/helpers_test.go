package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralizePoints(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "балл"},
		{2, "балла"},
		{5, "баллов"},
		{11, "баллов"},
		{21, "балл"},
		{23, "балла"},
		{100, "баллов"},
		{111, "баллов"},
		{-3, "балла"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PluralizePoints(c.n), "n=%d", c.n)
	}
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "150 баллов", FormatPoints(150))
	assert.Equal(t, "1 балл", FormatPoints(1))
	assert.Equal(t, "12.5 балла", FormatPoints(12.5))
}

func TestKind(t *testing.T) {
	t.Run("доменные ошибки знают свою категорию", func(t *testing.T) {
		assert.Equal(t, ErrConflict, Kind(ErrDuplicateScore))
		assert.Equal(t, ErrNotFound, Kind(ErrScoreNotFound))
		assert.Equal(t, ErrBadRequest, Kind(ErrReasonRequired))
		assert.Equal(t, ErrForbidden, Kind(ErrNotAdmin))
	})

	t.Run("обёртки сохраняют категорию", func(t *testing.T) {
		err := fmt.Errorf("контекст: %w", ErrDuplicateScore)
		assert.Equal(t, ErrConflict, Kind(err))
		assert.True(t, errors.Is(err, ErrDuplicateScore))
	})

	t.Run("неизвестная ошибка — внутренняя", func(t *testing.T) {
		assert.Equal(t, ErrInternal, Kind(errors.New("boom")))
	})
}
