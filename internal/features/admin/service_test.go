package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/features/members"
	"scorebot/internal/features/scores"
)

type fakeEngine struct {
	records  []*scores.ScoreRecord
	approved []int64
	rejected map[int64]string
}

func (f *fakeEngine) History(_ context.Context, _ scores.Filter, _ int) ([]*scores.ScoreRecord, error) {
	return f.records, nil
}

func (f *fakeEngine) Approve(_ context.Context, id, _ int64) (*scores.ScoreRecord, error) {
	f.approved = append(f.approved, id)
	return &scores.ScoreRecord{ID: id, Status: scores.StatusApproved}, nil
}

func (f *fakeEngine) Reject(_ context.Context, id, _ int64, reason string) (*scores.ScoreRecord, error) {
	if f.rejected == nil {
		f.rejected = map[int64]string{}
	}
	f.rejected[id] = reason
	return &scores.ScoreRecord{ID: id, Status: scores.StatusRejected, RejectionReason: reason}, nil
}

type fakeSessions struct {
	active  map[int64]*ReviewerSession
	touched []int64
}

func (f *fakeSessions) CreateSession(_ context.Context, s *ReviewerSession) error {
	if f.active == nil {
		f.active = map[int64]*ReviewerSession{}
	}
	f.active[s.UserID] = s
	return nil
}

func (f *fakeSessions) GetActiveSession(_ context.Context, userID int64) (*ReviewerSession, error) {
	s, ok := f.active[userID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessions) DeactivateSession(_ context.Context, userID int64) error {
	delete(f.active, userID)
	return nil
}

func (f *fakeSessions) UpdateActivity(_ context.Context, userID int64) error {
	f.touched = append(f.touched, userID)
	return nil
}

func (f *fakeSessions) LogAttempt(_ context.Context, _ int64, _ bool) error { return nil }

func (f *fakeSessions) GetRecentAttempts(_ context.Context, _ int64, _ time.Duration) (int, error) {
	return 0, nil
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := &fakeSessions{active: map[int64]*ReviewerSession{
		42: {UserID: 42, IsActive: true},
	}}
	svc := NewService(store, &fakeEngine{}, nil)

	assert.True(t, svc.HasActiveSession(ctx, 42))
	assert.False(t, svc.HasActiveSession(ctx, 43))

	require.NoError(t, svc.TouchActivity(ctx, 42))
	assert.Equal(t, []int64{42}, store.touched)

	require.NoError(t, svc.Logout(ctx, 42))
	assert.False(t, svc.HasActiveSession(ctx, 42))
}

func TestPendingQueueOrder(t *testing.T) {
	// История отдаёт новые первыми; очередь должна быть старые первыми
	engine := &fakeEngine{records: []*scores.ScoreRecord{
		{ID: 3}, {ID: 2}, {ID: 1},
	}}
	svc := NewService(nil, engine, nil)

	queue, err := svc.PendingQueue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, int64(1), queue[0].ID)
	assert.Equal(t, int64(2), queue[1].ID)
	assert.Equal(t, int64(3), queue[2].ID)
}

func TestDialogState(t *testing.T) {
	svc := NewService(nil, &fakeEngine{}, nil)

	t.Run("нет состояния — nil", func(t *testing.T) {
		assert.Nil(t, svc.GetState(1))
	})

	t.Run("установка и чтение", func(t *testing.T) {
		svc.SetState(1, StateAwaitingReason, int64(42))
		state := svc.GetState(1)
		require.NotNil(t, state)
		assert.Equal(t, StateAwaitingReason, state.State)
		assert.Equal(t, int64(42), state.Data)
	})

	t.Run("сброс", func(t *testing.T) {
		svc.SetState(2, StateAwaitingPassword, nil)
		svc.ClearState(2)
		assert.Nil(t, svc.GetState(2))
	})

	t.Run("истёкшее состояние не возвращается", func(t *testing.T) {
		svc.SetState(3, StateAwaitingPassword, nil)
		svc.statesMu.Lock()
		svc.states[3].ExpiresAt = time.Now().Add(-time.Minute)
		svc.statesMu.Unlock()
		assert.Nil(t, svc.GetState(3))
	})
}

func TestVerifyArgon2idFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"пустой хеш", ""},
		{"не argon2", "$2a$10$abcdefghijklmnopqrstuv"},
		{"мало секций", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA"},
		{"битые параметры", "$argon2id$v=19$oops$c2FsdA$aGFzaA"},
		{"битая соль", "$argon2id$v=19$m=65536,t=3,p=2$%%%$aGFzaA"},
		{"битый хеш", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$%%%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, verifyArgon2id("пароль", tt.hash))
		})
	}
}

func TestVerifyArgon2idWrongPassword(t *testing.T) {
	// Структурно корректный хеш, но от другого пароля: совпадения быть не может
	hash := "$argon2id$v=19$m=8,t=1,p=1$MDEyMzQ1Njc4OWFiY2RlZg$WW91IHNoYWxsIG5vdCBwYXNzISEhISEhISEhISEh"
	assert.False(t, verifyArgon2id("не тот пароль", hash))
}

func TestGenerateSecureToken(t *testing.T) {
	a := generateSecureToken()
	b := generateSecureToken()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestParseScoreID(t *testing.T) {
	id, ok := parseScoreID([]string{"42"})
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = parseScoreID([]string{"#7"})
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, ok = parseScoreID(nil)
	assert.False(t, ok)
	_, ok = parseScoreID([]string{"abc"})
	assert.False(t, ok)
	_, ok = parseScoreID([]string{"-1"})
	assert.False(t, ok)
}

func TestParseRoleArgs(t *testing.T) {
	username, role, ok := parseRoleArgs([]string{"@runner", "тренер"})
	assert.True(t, ok)
	assert.Equal(t, "runner", username)
	assert.Equal(t, "тренер", role)

	// Роль из нескольких слов склеивается
	_, role, ok = parseRoleArgs([]string{"runner", "старший", "тренер"})
	assert.True(t, ok)
	assert.Equal(t, "старший тренер", role)

	_, _, ok = parseRoleArgs([]string{"runner"})
	assert.False(t, ok)
	_, _, ok = parseRoleArgs([]string{"@", "тренер"})
	assert.False(t, ok)
	_, _, ok = parseRoleArgs(nil)
	assert.False(t, ok)
}

func TestFormatRoleReport(t *testing.T) {
	coach := "тренер"
	report := formatRoleReport(
		[]*members.Member{{UserID: 11, Username: "coach", Role: &coach}},
		[]*members.Member{{UserID: 10, FirstName: "Иван"}},
	)
	assert.Contains(t, report, "@coach — тренер")
	assert.Contains(t, report, "Без роли:")
	assert.Contains(t, report, "Иван")

	empty := formatRoleReport(nil, nil)
	assert.Contains(t, empty, "Роли пока никому не назначены")
}
