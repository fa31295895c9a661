package members

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
)

type fakeStore struct {
	byUserID   map[int64]*Member
	byUsername map[string]*Member
	roles      map[int64]string
}

func newFakeStore(members ...*Member) *fakeStore {
	f := &fakeStore{
		byUserID:   map[int64]*Member{},
		byUsername: map[string]*Member{},
		roles:      map[int64]string{},
	}
	for _, m := range members {
		f.byUserID[m.UserID] = m
		if m.Username != "" {
			f.byUsername[m.Username] = m
		}
	}
	return f
}

func (f *fakeStore) Create(_ context.Context, m *Member) error {
	f.byUserID[m.UserID] = m
	if m.Username != "" {
		f.byUsername[m.Username] = m
	}
	return nil
}

func (f *fakeStore) GetByUserID(_ context.Context, userID int64) (*Member, error) {
	m, ok := f.byUserID[userID]
	if !ok {
		return nil, common.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (*Member, error) {
	m, ok := f.byUsername[username]
	if !ok {
		return nil, common.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeStore) Exists(_ context.Context, userID int64) (bool, error) {
	_, ok := f.byUserID[userID]
	return ok, nil
}

func (f *fakeStore) UpdateInfo(_ context.Context, userID int64, info UpdateInfo) error {
	m, ok := f.byUserID[userID]
	if !ok {
		return common.ErrMemberNotFound
	}
	m.Username = info.Username
	m.FirstName = info.FirstName
	m.LastName = info.LastName
	return nil
}

func (f *fakeStore) UpdateRole(_ context.Context, userID int64, role string) error {
	m, ok := f.byUserID[userID]
	if !ok {
		return common.ErrMemberNotFound
	}
	f.roles[userID] = role
	m.Role = &role
	return nil
}

func (f *fakeStore) GetUsersWithoutRole(_ context.Context) ([]*Member, error) {
	var out []*Member
	for _, m := range f.byUserID {
		if m.Role == nil && !m.IsBanned {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUsersWithRole(_ context.Context) ([]*Member, error) {
	var out []*Member
	for _, m := range f.byUserID {
		if m.Role != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()

	t.Run("роль назначается по username", func(t *testing.T) {
		store := newFakeStore(&Member{UserID: 10, Username: "runner"})
		svc := NewService(store)

		require.NoError(t, svc.AssignRole(ctx, "runner", "тренер"))
		assert.Equal(t, "тренер", store.roles[10])
	})

	t.Run("неизвестный username", func(t *testing.T) {
		svc := NewService(newFakeStore())
		err := svc.AssignRole(ctx, "ghost", "тренер")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("пустая роль отклоняется", func(t *testing.T) {
		store := newFakeStore(&Member{UserID: 10, Username: "runner"})
		svc := NewService(store)
		err := svc.AssignRole(ctx, "runner", "   ")
		assert.ErrorIs(t, err, common.ErrBadRequest)
		assert.Empty(t, store.roles)
	})
}

func TestRoleLists(t *testing.T) {
	ctx := context.Background()
	coach := "тренер"
	store := newFakeStore(
		&Member{UserID: 10, Username: "runner"},
		&Member{UserID: 11, Username: "coach", Role: &coach},
	)
	svc := NewService(store)

	without, err := svc.WithoutRole(ctx)
	require.NoError(t, err)
	require.Len(t, without, 1)
	assert.Equal(t, int64(10), without[0].UserID)

	with, err := svc.WithRole(ctx)
	require.NoError(t, err)
	require.Len(t, with, 1)
	assert.Equal(t, int64(11), with[0].UserID)
}

func TestEnsureMember(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	require.NoError(t, svc.EnsureMember(ctx, 10, "runner", "Иван", ""))
	exists, err := svc.Exists(ctx, 10)
	require.NoError(t, err)
	assert.True(t, exists)

	// Повторный вызов не создаёт дубликат и не падает
	require.NoError(t, svc.EnsureMember(ctx, 10, "runner", "Иван", ""))
}
