package rankings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorebot/internal/common"
	"scorebot/internal/features/members"
	"scorebot/internal/features/scores"
	"scorebot/internal/features/teams"
)

type fakeStore struct {
	records    []*scores.ScoreRecord
	lastFilter scores.Filter
}

func (f *fakeStore) List(_ context.Context, filter scores.Filter, _ int) ([]*scores.ScoreRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

type fakeMemberDir struct {
	known map[int64]*members.Member
}

func (f *fakeMemberDir) GetDisplayByIDs(_ context.Context, userIDs []int64) (map[int64]*members.Member, error) {
	out := map[int64]*members.Member{}
	for _, id := range userIDs {
		if m, ok := f.known[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeTeamDir struct {
	known map[int64]*teams.TeamDisplay
}

func (f *fakeTeamDir) GetDisplayByIDs(_ context.Context, teamIDs []int64) (map[int64]*teams.TeamDisplay, error) {
	out := map[int64]*teams.TeamDisplay{}
	for _, id := range teamIDs {
		if t, ok := f.known[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	newService := func(store *fakeStore, memberDir *fakeMemberDir) *Service {
		return NewService(store, memberDir, &fakeTeamDir{}, nil, 0, 10, 100)
	}

	t.Run("запрашивает только одобренные оценки своей области", func(t *testing.T) {
		store := &fakeStore{}
		svc := newService(store, &fakeMemberDir{})

		_, err := svc.Get(ctx, Query{Scope: ScopeIndividual, Period: common.PeriodWeek})
		require.NoError(t, err)

		require.NotNil(t, store.lastFilter.Status)
		assert.Equal(t, scores.StatusApproved, *store.lastFilter.Status)
		assert.True(t, store.lastFilter.OnlyIndividual)
		assert.False(t, store.lastFilter.OnlyTeam)
		assert.Equal(t, common.PeriodWeek, store.lastFilter.Period)
	})

	t.Run("неизвестные субъекты выпадают до ранжирования", func(t *testing.T) {
		store := &fakeStore{records: []*scores.ScoreRecord{
			rec(1, 100, 100, base),
			rec(2, 90, 90, base),  // нет в справочнике
			rec(3, 80, 80, base),
		}}
		dir := &fakeMemberDir{known: map[int64]*members.Member{
			1: {UserID: 1, Username: "alice"},
			3: {UserID: 3, FirstName: "Боря"},
		}}
		svc := newService(store, dir)

		result, err := svc.Get(ctx, Query{Scope: ScopeIndividual, Period: common.PeriodAll})
		require.NoError(t, err)

		require.Len(t, result.Rows, 2)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, result.Rows[0].Rank)
		assert.Equal(t, "@alice", result.Rows[0].Name)
		assert.Equal(t, 2, result.Rows[1].Rank)
		assert.Equal(t, "Боря", result.Rows[1].Name)
	})

	t.Run("командный рейтинг обогащается из справочника команд", func(t *testing.T) {
		store := &fakeStore{records: []*scores.ScoreRecord{
			teamRec(7, 60, 60, base),
			teamRec(7, 60, 60, base.Add(time.Minute)),
		}}
		teamDir := &fakeTeamDir{known: map[int64]*teams.TeamDisplay{
			7: {TeamID: 7, Name: "Ракеты", MemberCount: 4},
		}}
		svc := NewService(store, &fakeMemberDir{}, teamDir, nil, 0, 10, 100)

		result, err := svc.Get(ctx, Query{Scope: ScopeTeam, Period: common.PeriodAll})
		require.NoError(t, err)

		require.Len(t, result.Rows, 1)
		assert.Equal(t, "Ракеты", result.Rows[0].Name)
		assert.Equal(t, 4, result.Rows[0].MemberCount)
		assert.Equal(t, 120, result.Rows[0].TotalNormalizedScore)
		assert.True(t, store.lastFilter.OnlyTeam)
	})

	t.Run("limit ограничивается максимумом, пустой — дефолтом", func(t *testing.T) {
		store := &fakeStore{}
		svc := NewService(store, &fakeMemberDir{}, &fakeTeamDir{}, nil, 0, 10, 50)

		result, err := svc.Get(ctx, Query{Scope: ScopeIndividual, Period: common.PeriodAll, Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, 50, result.Limit)

		result, err = svc.Get(ctx, Query{Scope: ScopeIndividual, Period: common.PeriodAll})
		require.NoError(t, err)
		assert.Equal(t, 10, result.Limit)
	})

	t.Run("неизвестная область или период — ErrBadRequest", func(t *testing.T) {
		svc := newService(&fakeStore{}, &fakeMemberDir{})

		_, err := svc.Get(ctx, Query{Scope: "global", Period: common.PeriodAll})
		assert.ErrorIs(t, err, common.ErrBadRequest)

		_, err = svc.Get(ctx, Query{Scope: ScopeIndividual, Period: "decade"})
		assert.ErrorIs(t, err, common.ErrBadRequest)
	})
}
