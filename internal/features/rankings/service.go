package rankings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/redis/go-redis/v9"

	"scorebot/internal/common"
	"scorebot/internal/features/members"
	"scorebot/internal/features/scores"
	"scorebot/internal/features/teams"
	"scorebot/internal/metrics"
)

// ScoreStore — выборка оценок для построения рейтинга.
type ScoreStore interface {
	List(ctx context.Context, f scores.Filter, limit int) ([]*scores.ScoreRecord, error)
}

// MemberDirectory — отображаемые данные участников.
type MemberDirectory interface {
	GetDisplayByIDs(ctx context.Context, userIDs []int64) (map[int64]*members.Member, error)
}

// TeamDirectory — отображаемые данные команд.
type TeamDirectory interface {
	GetDisplayByIDs(ctx context.Context, teamIDs []int64) (map[int64]*teams.TeamDisplay, error)
}

// Query — параметры запроса рейтинга. Нулевые указатели означают
// «без ограничения по этому полю».
type Query struct {
	Scope       Scope
	Period      common.Period
	ActivityID  *int64
	SubActivity *string
	ChatID      *int64
	Limit       int
	Offset      int
}

// Result — страница рейтинга.
type Result struct {
	Scope   Scope             `json:"scope"`
	Period  common.Period     `json:"period"`
	Rows    []*Row            `json:"rows"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	BuiltAt time.Time         `json:"built_at"`
}

// Service строит рейтинги по одобренным оценкам. Кэш в Redis опционален:
// при cache == nil каждая выборка идёт в базу.
type Service struct {
	store    ScoreStore
	members  MemberDirectory
	teams    TeamDirectory
	cache    *redis.Client
	cacheTTL time.Duration

	defaultLimit int
	maxLimit     int
}

func NewService(store ScoreStore, memberDir MemberDirectory, teamDir TeamDirectory, cache *redis.Client, cacheTTL time.Duration, defaultLimit, maxLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Service{
		store:        store,
		members:      memberDir,
		teams:        teamDir,
		cache:        cache,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// generationKey — версия кэша рейтингов. Инвалидация — INCR версии,
// старые ключи умирают по TTL сами.
const generationKey = "rankings:gen"

// Get возвращает страницу рейтинга по запросу.
func (s *Service) Get(ctx context.Context, q Query) (*Result, error) {
	if !q.Scope.Valid() {
		return nil, fmt.Errorf("%w: неизвестная область рейтинга %q", common.ErrBadRequest, q.Scope)
	}
	if !q.Period.Valid() {
		return nil, fmt.Errorf("%w: неизвестный период %q", common.ErrBadRequest, q.Period)
	}
	if q.Limit <= 0 {
		q.Limit = s.defaultLimit
	}
	if q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	if cached := s.fromCache(ctx, q); cached != nil {
		metrics.RankingRequests.WithLabelValues(string(q.Scope), "cache").Inc()
		return cached, nil
	}
	metrics.RankingRequests.WithLabelValues(string(q.Scope), "store").Inc()

	started := time.Now()
	result, err := s.build(ctx, q)
	if err != nil {
		return nil, err
	}
	metrics.RankingDuration.Observe(time.Since(started).Seconds())

	s.toCache(ctx, q, result)
	return result, nil
}

// Invalidate сбрасывает кэш рейтингов (вызывается после мутаций оценок).
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, generationKey).Err(); err != nil {
		log.WithError(err).Warn("Не удалось инвалидировать кэш рейтингов")
	}
}

func (s *Service) build(ctx context.Context, q Query) (*Result, error) {
	approved := scores.StatusApproved
	f := scores.Filter{
		Status:      &approved,
		Period:      q.Period,
		ChatID:      q.ChatID,
		ActivityID:  q.ActivityID,
		SubActivity: q.SubActivity,
	}
	switch q.Scope {
	case ScopeTeam:
		f.OnlyTeam = true
	default:
		f.OnlyIndividual = true
	}

	records, err := s.store.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	rows := aggregate(records, q.Scope)
	rows, err = s.enrich(ctx, q.Scope, rows)
	if err != nil {
		return nil, err
	}
	sortRows(rows)
	page, total := paginate(rows, q.Offset, q.Limit)

	return &Result{
		Scope:   q.Scope,
		Period:  q.Period,
		Rows:    page,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		BuiltAt: time.Now(),
	}, nil
}

// enrich подтягивает отображаемые поля субъектов. Строки субъектов,
// которых нет в справочнике, выбрасываются ДО сортировки и пагинации,
// чтобы ранги оставались сплошными.
func (s *Service) enrich(ctx context.Context, scope Scope, rows []*Row) ([]*Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.SubjectID)
	}

	kept := rows[:0]
	switch scope {
	case ScopeTeam:
		display, err := s.teams.GetDisplayByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			t, ok := display[row.SubjectID]
			if !ok {
				continue
			}
			row.Name = t.Name
			row.MemberCount = t.MemberCount
			kept = append(kept, row)
		}
	default:
		display, err := s.members.GetDisplayByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			m, ok := display[row.SubjectID]
			if !ok {
				continue
			}
			row.Name = m.DisplayName()
			row.Username = m.Username
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func (s *Service) cacheKey(ctx context.Context, q Query) string {
	gen, err := s.cache.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		return ""
	}
	chat := int64(0)
	if q.ChatID != nil {
		chat = *q.ChatID
	}
	activity := int64(0)
	if q.ActivityID != nil {
		activity = *q.ActivityID
	}
	sub := ""
	if q.SubActivity != nil {
		sub = *q.SubActivity
	}
	return fmt.Sprintf("rankings:%d:%s:%s:%d:%s:%d:%d:%d",
		gen, q.Scope, q.Period, activity, sub, chat, q.Limit, q.Offset)
}

func (s *Service) fromCache(ctx context.Context, q Query) *Result {
	if s.cache == nil {
		return nil
	}
	key := s.cacheKey(ctx, q)
	if key == "" {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warn("Ошибка чтения кэша рейтингов")
		}
		return nil
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.WithError(err).Warn("Битая запись в кэше рейтингов")
		return nil
	}
	return &result
}

func (s *Service) toCache(ctx context.Context, q Query, result *Result) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	key := s.cacheKey(ctx, q)
	if key == "" {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		log.WithError(err).Warn("Ошибка записи кэша рейтингов")
	}
}
