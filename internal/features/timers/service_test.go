package timers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
	"scorebot/internal/config"
)

type memTimerStore struct {
	timers map[int64]*Timer
	nextID int64
}

func newMemTimerStore() *memTimerStore {
	return &memTimerStore{timers: map[int64]*Timer{}}
}

func (m *memTimerStore) Create(_ context.Context, t *Timer) error {
	for _, other := range m.timers {
		if !other.Fired && other.Name == t.Name && other.ActivityID == t.ActivityID {
			return common.ErrDuplicateTimer
		}
	}
	m.nextID++
	t.ID = m.nextID
	m.timers[t.ID] = t
	return nil
}

func (m *memTimerStore) ListActive(_ context.Context, chatID int64) ([]*Timer, error) {
	var out []*Timer
	for _, t := range m.timers {
		if !t.Fired && t.ChatID == chatID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTimerStore) GetByName(_ context.Context, name string, activityID int64) (*Timer, error) {
	for _, t := range m.timers {
		if !t.Fired && t.Name == name && t.ActivityID == activityID {
			return t, nil
		}
	}
	return nil, common.ErrTimerNotFound
}

func (m *memTimerStore) Cancel(_ context.Context, id int64) error {
	if _, ok := m.timers[id]; !ok {
		return common.ErrTimerNotFound
	}
	delete(m.timers, id)
	return nil
}

func (m *memTimerStore) ClaimDue(_ context.Context, _ int) ([]*Timer, error) {
	now := time.Now().Add(24 * time.Hour) // «текущий момент» теста далеко в будущем
	var due []*Timer
	for _, t := range m.timers {
		if !t.Fired && t.EndsAt.Before(now) {
			t.Fired = true
			due = append(due, t)
		}
	}
	return due, nil
}

type capturingNotifier struct{ fired []*Timer }

func (c *capturingNotifier) TimerFired(t *Timer) { c.fired = append(c.fired, t) }

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{AdminIDs: []int64{999}}

	t.Run("дубликат имени — конфликт", func(t *testing.T) {
		store := newMemTimerStore()
		svc := NewService(store, nil, cfg)

		_, err := svc.Create(ctx, "регистрация", 0, time.Hour, -1001, 10)
		require.NoError(t, err)

		_, err = svc.Create(ctx, "регистрация", 0, time.Hour, -1001, 10)
		assert.ErrorIs(t, err, common.ErrDuplicateTimer)
	})

	t.Run("то же имя для другой активности — не конфликт", func(t *testing.T) {
		store := newMemTimerStore()
		svc := NewService(store, nil, cfg)

		_, err := svc.Create(ctx, "дедлайн", 1, time.Hour, -1001, 10)
		require.NoError(t, err)
		_, err = svc.Create(ctx, "дедлайн", 2, time.Hour, -1001, 10)
		assert.NoError(t, err)
	})

	t.Run("пустое имя и нулевая длительность", func(t *testing.T) {
		svc := NewService(newMemTimerStore(), nil, cfg)

		_, err := svc.Create(ctx, "  ", 0, time.Hour, -1001, 10)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)

		_, err = svc.Create(ctx, "x", 0, 0, -1001, 10)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
	})
}

func TestServiceCancel(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{AdminIDs: []int64{999}}

	store := newMemTimerStore()
	svc := NewService(store, nil, cfg)
	_, err := svc.Create(ctx, "спринт", 0, time.Hour, -1001, 10)
	require.NoError(t, err)

	t.Run("чужой не может отменить", func(t *testing.T) {
		err := svc.Cancel(ctx, "спринт", 0, 11)
		assert.ErrorIs(t, common.Kind(err), common.ErrForbidden)
	})

	t.Run("админ может отменить чужой таймер", func(t *testing.T) {
		err := svc.Cancel(ctx, "спринт", 0, 999)
		assert.NoError(t, err)
		_, err = store.GetByName(ctx, "спринт", 0)
		assert.ErrorIs(t, err, common.ErrTimerNotFound)
	})
}

func TestFireDue(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}

	store := newMemTimerStore()
	notifier := &capturingNotifier{}
	svc := NewService(store, notifier, cfg)

	_, err := svc.Create(ctx, "первый", 0, time.Minute, -1001, 10)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "второй", 0, time.Minute, -1001, 10)
	require.NoError(t, err)

	fired, err := svc.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	assert.Len(t, notifier.fired, 2)

	// повторный обход ничего не находит: fired — одноразовый
	fired, err = svc.FireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Len(t, notifier.fired, 2)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw      string
		expected time.Duration
		wantErr  bool
	}{
		{"90м", 90 * time.Minute, false},
		{"2ч", 2 * time.Hour, false},
		{"1д", 24 * time.Hour, false},
		{"45m", 45 * time.Minute, false},
		{"3h", 3 * time.Hour, false},
		{"2d", 48 * time.Hour, false},
		{"", 0, true},
		{"час", 0, true},
		{"0м", 0, true},
		{"-5м", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, err := ParseDuration(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
