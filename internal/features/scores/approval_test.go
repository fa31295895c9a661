package scores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
)

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("pending → approved применяет вклад", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)
		require.Zero(t, fx.store.userScore[memberID])

		approved, err := fx.svc.Approve(ctx, rec.ID, reviewerID)
		require.NoError(t, err)

		assert.Equal(t, StatusApproved, approved.Status)
		require.NotNil(t, approved.ReviewedBy)
		assert.Equal(t, reviewerID, *approved.ReviewedBy)
		assert.NotNil(t, approved.ReviewedAt)
		assert.Equal(t, 85.0, fx.store.userScore[memberID])
		assert.Equal(t, 1, fx.store.userActivities[memberID])
	})

	t.Run("повторное одобрение — ошибка, вклад не задваивается", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Approve(ctx, rec.ID, reviewerID)
		assert.ErrorIs(t, err, common.ErrAlreadyApproved)
		assert.Equal(t, 85.0, fx.store.userScore[memberID])
	})

	t.Run("не ревьюер — отказ", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Approve(ctx, rec.ID, awarderID)
		assert.ErrorIs(t, common.Kind(err), common.ErrForbidden)
	})

	t.Run("rejected → approved: причина отклонения очищается", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "нет пруфов")
		require.NoError(t, err)

		approved, err := fx.svc.Approve(ctx, rec.ID, reviewerID)
		require.NoError(t, err)
		assert.Empty(t, approved.RejectionReason)
		assert.Equal(t, 85.0, fx.store.userScore[memberID])
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()

	t.Run("причина обязательна", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "")
		assert.ErrorIs(t, err, common.ErrReasonRequired)
	})

	t.Run("одобрение и отклонение дают нулевой итог в счётчиках", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)
		require.Equal(t, 85.0, fx.store.userScore[memberID])

		rejected, err := fx.svc.Reject(ctx, rec.ID, reviewerID, "дубль чужого результата")
		require.NoError(t, err)

		assert.Equal(t, StatusRejected, rejected.Status)
		assert.Equal(t, "дубль чужого результата", rejected.RejectionReason)
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])
	})

	t.Run("отклонение pending счётчики не трогает", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "не считается")
		require.NoError(t, err)
		assert.Zero(t, fx.store.userScore[memberID])
	})

	t.Run("повторное отклонение — ошибка", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "раз")
		require.NoError(t, err)
		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "два")
		assert.ErrorIs(t, err, common.ErrAlreadyRejected)
	})
}

func TestDispute(t *testing.T) {
	ctx := context.Background()

	t.Run("спор по одобренной снимает вклад", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		disputed, err := fx.svc.Dispute(ctx, rec.ID, reviewerID)
		require.NoError(t, err)

		assert.Equal(t, StatusDisputed, disputed.Status)
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])
	})

	t.Run("спор терминален", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Dispute(ctx, rec.ID, reviewerID)
		require.NoError(t, err)

		_, err = fx.svc.Dispute(ctx, rec.ID, reviewerID)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
		_, err = fx.svc.Approve(ctx, rec.ID, reviewerID)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
		_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "поздно")
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
	})
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	fx := newFixture("pending")

	rec, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, rec.ID, reviewerID)
	require.NoError(t, err)
	_, err = fx.svc.Reject(ctx, rec.ID, reviewerID, "пересмотр")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventCreated, EventApproved, EventRejected}, fx.notifier.events)
}
