package scores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/features/activities"
)

// memStore — хранилище в памяти с поведением настоящего репозитория:
// уникальность (субъект, активность, подактивность) и атомарные дельты
// денормализованных счётчиков.
type memStore struct {
	records map[int64]*ScoreRecord
	nextID  int64

	userScore      map[int64]float64
	userActivities map[int64]int
	teamScore      map[int64]float64
	teamActivities map[int64]int
}

func newMemStore() *memStore {
	return &memStore{
		records:        map[int64]*ScoreRecord{},
		userScore:      map[int64]float64{},
		userActivities: map[int64]int{},
		teamScore:      map[int64]float64{},
		teamActivities: map[int64]int{},
	}
}

func (m *memStore) applyDelta(rec *ScoreRecord, delta *CounterDelta) {
	if delta == nil || delta.Value == 0 {
		return
	}
	step := 0
	if delta.WithActivity {
		if delta.Value > 0 {
			step = 1
		} else {
			step = -1
		}
	}
	if rec.TeamID != nil {
		m.teamScore[*rec.TeamID] += delta.Value
		m.teamActivities[*rec.TeamID] += step
	} else {
		m.userScore[*rec.UserID] += delta.Value
		m.userActivities[*rec.UserID] += step
	}
}

func (m *memStore) Insert(_ context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	for _, other := range m.records {
		sameUser := rec.UserID != nil && other.UserID != nil && *rec.UserID == *other.UserID
		sameTeam := rec.TeamID != nil && other.TeamID != nil && *rec.TeamID == *other.TeamID
		if (sameUser || sameTeam) && other.ActivityID == rec.ActivityID && other.SubActivity == rec.SubActivity {
			return common.ErrDuplicateScore
		}
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	m.records[rec.ID] = &stored
	m.applyDelta(rec, delta)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*ScoreRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, common.ErrScoreNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memStore) Update(_ context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	if _, ok := m.records[rec.ID]; !ok {
		return common.ErrScoreNotFound
	}
	stored := *rec
	m.records[rec.ID] = &stored
	m.applyDelta(rec, delta)
	return nil
}

func (m *memStore) Delete(_ context.Context, rec *ScoreRecord, delta *CounterDelta) error {
	if _, ok := m.records[rec.ID]; !ok {
		return common.ErrScoreNotFound
	}
	delete(m.records, rec.ID)
	m.applyDelta(rec, delta)
	return nil
}

func (m *memStore) match(rec *ScoreRecord, f Filter) bool {
	if f.UserID != nil && (rec.UserID == nil || *rec.UserID != *f.UserID) {
		return false
	}
	if f.TeamID != nil && (rec.TeamID == nil || *rec.TeamID != *f.TeamID) {
		return false
	}
	if f.Status != nil && rec.Status != *f.Status {
		return false
	}
	if f.OnlyIndividual && rec.UserID == nil {
		return false
	}
	if f.OnlyTeam && rec.TeamID == nil {
		return false
	}
	return true
}

func (m *memStore) List(_ context.Context, f Filter, _ int) ([]*ScoreRecord, error) {
	var out []*ScoreRecord
	for _, rec := range m.records {
		if m.match(rec, f) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, f Filter) (int, error) {
	n := 0
	for _, rec := range m.records {
		if m.match(rec, f) {
			n++
		}
	}
	return n, nil
}

type fakeActivityDir struct {
	byID map[int64]*activities.Activity
}

func (f *fakeActivityDir) GetByID(_ context.Context, id int64) (*activities.Activity, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrActivityNotFound
	}
	return a, nil
}

type fakeExists struct{ ids map[int64]bool }

func (f *fakeExists) Exists(_ context.Context, id int64) (bool, error) { return f.ids[id], nil }

type fakeAuthz struct {
	reviewers map[int64]bool
	captains  map[int64]int64 // actor → team
}

func (f *fakeAuthz) CanActFor(_ context.Context, actorID, teamID int64) (bool, error) {
	return f.reviewers[actorID] || f.captains[actorID] == teamID, nil
}

func (f *fakeAuthz) CanReview(_ context.Context, actorID int64) (bool, error) {
	return f.reviewers[actorID], nil
}

type fakeNotifier struct{ events []EventKind }

func (f *fakeNotifier) ScoreEvent(kind EventKind, _ *ScoreRecord) {
	f.events = append(f.events, kind)
}

type fixture struct {
	store    *memStore
	notifier *fakeNotifier
	svc      *Service
}

const (
	reviewerID = int64(900)
	awarderID  = int64(100)
	memberID   = int64(10)
	teamID     = int64(5)
	captainID  = int64(11)
	activityID = int64(1)
)

func newFixture(defaultStatus string) *fixture {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewService(
		store,
		&fakeActivityDir{byID: map[int64]*activities.Activity{
			activityID: {ID: activityID, Name: "Забег", IsActive: true, SubActivities: []string{"5k", "10k"}},
			2:          {ID: 2, Name: "Архив", IsActive: false},
			3:          {ID: 3, Name: "Викторина", IsActive: true},
		}},
		&fakeExists{ids: map[int64]bool{memberID: true, captainID: true}},
		&fakeExists{ids: map[int64]bool{teamID: true}},
		&fakeAuthz{
			reviewers: map[int64]bool{reviewerID: true},
			captains:  map[int64]int64{captainID: teamID},
		},
		notifier,
		&config.Config{ScoreDefaultStatus: defaultStatus},
	)
	return &fixture{store: store, notifier: notifier, svc: svc}
}

func (fx *fixture) createRequest() CreateRequest {
	uid := memberID
	return CreateRequest{
		UserID:      &uid,
		ActivityID:  activityID,
		SubActivity: "5k",
		Value:       85,
		MaxPossible: 100,
		AwardedBy:   awarderID,
		ChatID:      -1001,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("одобренная при создании оценка сразу в счётчиках", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		assert.Equal(t, StatusApproved, rec.Status)
		assert.Equal(t, 85, rec.NormalizedScore)
		assert.Equal(t, ContextIndividual, rec.Context)
		assert.Equal(t, 85.0, fx.store.userScore[memberID])
		assert.Equal(t, 1, fx.store.userActivities[memberID])
		assert.Equal(t, []EventKind{EventCreated}, fx.notifier.events)
	})

	t.Run("нулевая одобренная оценка счётчики не двигает", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.Value = 0
		rec, err := fx.svc.Create(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, StatusApproved, rec.Status)
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])
	})

	t.Run("pending не трогает счётчики", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		assert.Equal(t, StatusPending, rec.Status)
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])
	})

	t.Run("повтор по той же подактивности — конфликт", func(t *testing.T) {
		fx := newFixture("approved")
		_, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		_, err = fx.svc.Create(ctx, fx.createRequest())
		assert.ErrorIs(t, err, common.ErrDuplicateScore)
		assert.ErrorIs(t, common.Kind(err), common.ErrConflict)
		// счётчик не задвоился
		assert.Equal(t, 85.0, fx.store.userScore[memberID])
	})

	t.Run("другая подактивность той же активности — не конфликт", func(t *testing.T) {
		fx := newFixture("approved")
		_, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		req := fx.createRequest()
		req.SubActivity = "10k"
		_, err = fx.svc.Create(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("оба субъекта или ни одного — ошибка", func(t *testing.T) {
		fx := newFixture("approved")

		req := fx.createRequest()
		req.UserID = nil
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrSubjectAmbiguous)

		req = fx.createRequest()
		tid := teamID
		req.TeamID = &tid
		_, err = fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrSubjectAmbiguous)
	})

	t.Run("валидация значения и потолка", func(t *testing.T) {
		fx := newFixture("approved")

		req := fx.createRequest()
		req.Value = -5
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrInvalidValue)

		req = fx.createRequest()
		req.MaxPossible = 0.5
		_, err = fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrInvalidValue)
	})

	t.Run("без чата нельзя", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.ChatID = 0
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrChatRequired)
	})

	t.Run("контекст team без команды — рассогласование", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.Context = ContextTeam
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrContextMismatch)
	})

	t.Run("неактивная активность не принимает оценки", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.ActivityID = 2
		req.SubActivity = ""
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
	})

	t.Run("необъявленная подактивность", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.SubActivity = "42k"
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrUnknownSubActivity)
	})

	t.Run("начальный статус не может быть rejected", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		req.Status = StatusRejected
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, common.Kind(err), common.ErrBadRequest)
	})

	t.Run("командная оценка: чужак получает отказ, капитан — нет", func(t *testing.T) {
		fx := newFixture("approved")

		req := fx.createRequest()
		req.UserID = nil
		tid := teamID
		req.TeamID = &tid
		req.AwardedBy = awarderID // не капитан и не ревьюер
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, common.Kind(err), common.ErrForbidden)

		req.AwardedBy = captainID
		rec, err := fx.svc.Create(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ContextTeam, rec.Context)
		assert.Equal(t, 85.0, fx.store.teamScore[teamID])
		assert.Equal(t, 1, fx.store.teamActivities[teamID])
	})

	t.Run("неизвестный участник", func(t *testing.T) {
		fx := newFixture("approved")
		req := fx.createRequest()
		unknown := int64(777)
		req.UserID = &unknown
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, common.ErrMemberNotFound)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("статус через Update запрещён", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		status := StatusRejected
		_, err = fx.svc.Update(ctx, rec.ID, reviewerID, UpdatePatch{Status: &status})
		assert.ErrorIs(t, err, common.ErrStatusViaUpdate)
	})

	t.Run("правка значения одобренной оценки двигает счётчик на разницу", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		newValue := 95.0
		updated, err := fx.svc.Update(ctx, rec.ID, awarderID, UpdatePatch{Value: &newValue})
		require.NoError(t, err)

		assert.Equal(t, 95, updated.NormalizedScore)
		assert.Equal(t, 95.0, fx.store.userScore[memberID])
		// счётчик активностей не двигается при правке
		assert.Equal(t, 1, fx.store.userActivities[memberID])
	})

	t.Run("правка pending счётчики не трогает", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		newValue := 95.0
		_, err = fx.svc.Update(ctx, rec.ID, awarderID, UpdatePatch{Value: &newValue})
		require.NoError(t, err)
		assert.Zero(t, fx.store.userScore[memberID])
	})

	t.Run("чужой не может править", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		comment := "правка"
		_, err = fx.svc.Update(ctx, rec.ID, memberID, UpdatePatch{Comment: &comment})
		assert.ErrorIs(t, common.Kind(err), common.ErrForbidden)
	})

	t.Run("несуществующая оценка", func(t *testing.T) {
		fx := newFixture("approved")
		comment := "x"
		_, err := fx.svc.Update(ctx, 404, awarderID, UpdatePatch{Comment: &comment})
		assert.ErrorIs(t, err, common.ErrScoreNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("удаление одобренной снимает вклад ровно один раз", func(t *testing.T) {
		fx := newFixture("approved")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		require.NoError(t, fx.svc.Delete(ctx, rec.ID, awarderID))
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])

		assert.ErrorIs(t, fx.svc.Delete(ctx, rec.ID, awarderID), common.ErrScoreNotFound)
		assert.Zero(t, fx.store.userScore[memberID])
	})

	t.Run("удаление pending счётчики не трогает", func(t *testing.T) {
		fx := newFixture("pending")
		rec, err := fx.svc.Create(ctx, fx.createRequest())
		require.NoError(t, err)

		require.NoError(t, fx.svc.Delete(ctx, rec.ID, awarderID))
		assert.Zero(t, fx.store.userScore[memberID])
		assert.Zero(t, fx.store.userActivities[memberID])
	})
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	fx := newFixture("approved")

	_, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	req := fx.createRequest()
	req.SubActivity = "10k"
	req.Value = 40
	_, err = fx.svc.Create(ctx, req)
	require.NoError(t, err)

	req = fx.createRequest()
	req.ActivityID = 3
	req.SubActivity = ""
	req.Value = 10
	req.Status = StatusPending
	_, err = fx.svc.Create(ctx, req)
	require.NoError(t, err)

	uid := memberID
	summary, err := fx.svc.Dashboard(ctx, SubjectRef{UserID: &uid}, common.PeriodAll)
	require.NoError(t, err)

	assert.Equal(t, 125.0, summary.TotalScore)
	assert.Equal(t, 125, summary.TotalNormalizedScore) // 85 + 40
	assert.Equal(t, 2, summary.ApprovedCount)
	assert.Equal(t, 1, summary.PendingCount)
}
