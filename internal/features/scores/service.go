// Package scores — service.go содержит бизнес-логику движка оценок:
// валидацию, проверку прав и согласование дельт счётчиков.
// Внешние коллабораторы (справочники, авторизация, уведомления) приходят
// интерфейсами; транспортные типы сюда не просачиваются — только id,
// числа и строковые перечисления.
package scores

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/features/activities"
	"scorebot/internal/metrics"
)

// Store — персистентное хранилище оценок. Реализация обязана выполнять
// запись и дельту атомарно и возвращать common.ErrDuplicateScore на
// нарушении уникальности (субъект, активность, подактивность).
type Store interface {
	Insert(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error
	GetByID(ctx context.Context, id int64) (*ScoreRecord, error)
	Update(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error
	Delete(ctx context.Context, rec *ScoreRecord, delta *CounterDelta) error
	List(ctx context.Context, f Filter, limit int) ([]*ScoreRecord, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// ActivityDirectory — справочник активностей (только чтение).
type ActivityDirectory interface {
	GetByID(ctx context.Context, id int64) (*activities.Activity, error)
}

// MemberDirectory и TeamDirectory — проверки существования субъектов.
type MemberDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

type TeamDirectory interface {
	Exists(ctx context.Context, teamID int64) (bool, error)
}

// Authorizer — внешний авторизационный коллаборатор.
// Движок получает только да/нет; отказ превращается в ErrForbidden.
type Authorizer interface {
	// CanActFor — может ли actor начислять командные оценки команде
	CanActFor(ctx context.Context, actorID, teamID int64) (bool, error)
	// CanReview — может ли actor одобрять/отклонять оценки
	CanReview(ctx context.Context, actorID int64) (bool, error)
}

// EventKind — вид события для диспетчера уведомлений.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventApproved EventKind = "approved"
	EventRejected EventKind = "rejected"
	EventDisputed EventKind = "disputed"
)

// Notifier — диспетчер уведомлений, fire-and-forget.
// Его ошибки не откатывают мутацию движка.
type Notifier interface {
	ScoreEvent(kind EventKind, rec *ScoreRecord)
}

// Service — движок оценок.
type Service struct {
	store      Store
	activities ActivityDirectory
	membersDir MemberDirectory
	teamsDir   TeamDirectory
	authz      Authorizer
	notifier   Notifier
	cfg        *config.Config
}

// NewService создаёт движок оценок.
func NewService(
	store Store,
	activityDir ActivityDirectory,
	memberDir MemberDirectory,
	teamDir TeamDirectory,
	authz Authorizer,
	notifier Notifier,
	cfg *config.Config,
) *Service {
	return &Service{
		store:      store,
		activities: activityDir,
		membersDir: memberDir,
		teamsDir:   teamDir,
		authz:      authz,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// CreateRequest — запрос на создание оценки. Заполняется вызывающей
// стороной (бот или API) обычными данными, без транспортных типов.
type CreateRequest struct {
	UserID      *int64
	TeamID      *int64
	ActivityID  int64
	SubActivity string
	Value       float64
	MaxPossible float64
	Context     ScoreContext // пусто — выводится из субъекта
	Status      Status       // пусто — статус по умолчанию из конфигурации
	AwardedBy   int64
	ChatID      int64
	MessageID   *int64
	Comment     string
	EvidenceURL string
}

// Create создаёт оценку. Порядок проверок:
// субъект → значение → активность → существование субъекта → права.
// Если итоговый статус approved — дельта +value применяется тут же,
// в одной транзакции с записью.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ScoreRecord, error) {
	// Ровно один субъект
	if (req.UserID == nil) == (req.TeamID == nil) {
		return nil, common.ErrSubjectAmbiguous
	}

	if req.Value < 0 || req.MaxPossible < 1 {
		return nil, common.ErrInvalidValue
	}

	if req.ChatID == 0 {
		return nil, common.ErrChatRequired
	}

	// Контекст: по умолчанию выводим из субъекта, заданный — сверяем
	context := req.Context
	if context == "" {
		if req.TeamID != nil {
			context = ContextTeam
		} else {
			context = ContextIndividual
		}
	}
	if !context.Valid() {
		return nil, fmt.Errorf("%w: неизвестный контекст %q", common.ErrBadRequest, context)
	}
	if (context == ContextTeam) != (req.TeamID != nil) {
		return nil, common.ErrContextMismatch
	}

	// Статус: по умолчанию из конфигурации; при создании допустимы
	// только pending и approved — rejected/disputed появляются переходами
	status := req.Status
	if status == "" {
		status = Status(s.cfg.ScoreDefaultStatus)
	}
	if status != StatusPending && status != StatusApproved {
		return nil, fmt.Errorf("%w: недопустимый начальный статус %q", common.ErrBadRequest, status)
	}

	// Активность существует, активна и знает такую подактивность
	activity, err := s.activities.GetByID(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if !activity.IsActive {
		return nil, fmt.Errorf("%w: активность %q закрыта", common.ErrBadRequest, activity.Name)
	}
	if !activity.AllowsSubActivity(req.SubActivity) {
		return nil, common.ErrUnknownSubActivity
	}

	// Субъект существует; для команд проверяем права актора
	if req.TeamID != nil {
		exists, err := s.teamsDir.Exists(ctx, *req.TeamID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrTeamNotFound, *req.TeamID)
		}
		allowed, err := s.authz.CanActFor(ctx, req.AwardedBy, *req.TeamID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: начислять баллы команде может капитан или админ", common.ErrForbidden)
		}
	} else {
		exists, err := s.membersDir.Exists(ctx, *req.UserID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w (user_id=%d)", common.ErrMemberNotFound, *req.UserID)
		}
	}

	rec := &ScoreRecord{
		UserID:      req.UserID,
		TeamID:      req.TeamID,
		ActivityID:  req.ActivityID,
		SubActivity: req.SubActivity,
		Value:       req.Value,
		MaxPossible: req.MaxPossible,
		Context:     context,
		Status:      status,
		AwardedBy:   req.AwardedBy,
		ChatID:      req.ChatID,
		MessageID:   req.MessageID,
		Comment:     req.Comment,
		EvidenceURL: req.EvidenceURL,
	}
	rec.Recompute()

	// Одобренная при создании оценка сразу считается в счётчиках
	var delta *CounterDelta
	if status == StatusApproved {
		delta = &CounterDelta{Value: rec.Value, WithActivity: true}
	}

	if err := s.store.Insert(ctx, rec, delta); err != nil {
		return nil, err
	}

	metrics.ScoresCreated.Inc()
	log.WithFields(log.Fields{
		"score_id":   rec.ID,
		"activity":   rec.ActivityID,
		"value":      rec.Value,
		"normalized": rec.NormalizedScore,
		"status":     rec.Status,
	}).Info("Оценка создана")

	s.notify(EventCreated, rec)
	return rec, nil
}

// UpdatePatch — частичное обновление оценки. Статус здесь менять нельзя:
// переходы идут только через Approve/Reject/Dispute, иначе дельты
// счётчиков разъедутся с записями (известная дыра исходного дизайна,
// здесь закрытая).
type UpdatePatch struct {
	Value       *float64
	MaxPossible *float64
	Comment     *string
	EvidenceURL *string
	Status      *Status
}

// Update правит изменяемые поля оценки. Право на правку имеют автор
// начисления и ревьюеры. Если у одобренной оценки меняется значение,
// счётчик субъекта корректируется на разницу в той же транзакции;
// счётчик завершённых активностей при этом не двигается.
func (s *Service) Update(ctx context.Context, id, actorID int64, patch UpdatePatch) (*ScoreRecord, error) {
	if patch.Status != nil {
		return nil, common.ErrStatusViaUpdate
	}

	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureCanEdit(ctx, actorID, rec); err != nil {
		return nil, err
	}

	oldValue := rec.Value
	if patch.Value != nil {
		rec.Value = *patch.Value
	}
	if patch.MaxPossible != nil {
		rec.MaxPossible = *patch.MaxPossible
	}
	if rec.Value < 0 || rec.MaxPossible < 1 {
		return nil, common.ErrInvalidValue
	}
	if patch.Comment != nil {
		rec.Comment = *patch.Comment
	}
	if patch.EvidenceURL != nil {
		rec.EvidenceURL = *patch.EvidenceURL
	}
	rec.Recompute()

	var delta *CounterDelta
	if rec.Status == StatusApproved && rec.Value != oldValue {
		delta = &CounterDelta{Value: rec.Value - oldValue, WithActivity: false}
	}

	if err := s.store.Update(ctx, rec, delta); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"score_id": rec.ID,
		"actor":    actorID,
	}).Info("Оценка обновлена")

	return rec, nil
}

// Delete удаляет оценку. Если она была одобрена — её вклад в счётчики
// субъекта снимается дельтой −value в той же транзакции; удаление
// pending/rejected/disputed счётчики не меняет.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.ensureCanEdit(ctx, actorID, rec); err != nil {
		return err
	}

	var delta *CounterDelta
	if rec.Status == StatusApproved {
		delta = &CounterDelta{Value: -rec.Value, WithActivity: true}
	}

	if err := s.store.Delete(ctx, rec, delta); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"score_id": id,
		"actor":    actorID,
	}).Info("Оценка удалена")

	return nil
}

// GetByID возвращает оценку.
func (s *Service) GetByID(ctx context.Context, id int64) (*ScoreRecord, error) {
	return s.store.GetByID(ctx, id)
}

// History возвращает оценки по фильтру, новые первыми.
func (s *Service) History(ctx context.Context, f Filter, limit int) ([]*ScoreRecord, error) {
	return s.store.List(ctx, f, limit)
}

// DashboardSummary — сводка по субъекту за период.
type DashboardSummary struct {
	TotalScore           float64
	TotalNormalizedScore int
	ApprovedCount        int
	PendingCount         int
}

// Dashboard собирает сводку по субъекту за период.
// Использует те же фильтры и ту же логику периода, что история и рейтинги.
func (s *Service) Dashboard(ctx context.Context, subject SubjectRef, period common.Period) (*DashboardSummary, error) {
	approved := StatusApproved
	f := Filter{UserID: subject.UserID, TeamID: subject.TeamID, Status: &approved, Period: period}

	records, err := s.store.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{ApprovedCount: len(records)}
	for _, rec := range records {
		summary.TotalScore += rec.Value
		summary.TotalNormalizedScore += rec.NormalizedScore
	}

	pending := StatusPending
	f.Status = &pending
	summary.PendingCount, err = s.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// ensureCanEdit: правка и удаление доступны автору начисления и ревьюерам.
func (s *Service) ensureCanEdit(ctx context.Context, actorID int64, rec *ScoreRecord) error {
	if actorID == rec.AwardedBy {
		return nil
	}
	allowed, err := s.authz.CanReview(ctx, actorID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: менять оценку может её автор или ревьюер", common.ErrForbidden)
	}
	return nil
}

// notify отправляет событие диспетчеру. Ошибки диспетчера не наши:
// он сам логирует и глотает, мутация уже зафиксирована.
func (s *Service) notify(kind EventKind, rec *ScoreRecord) {
	if s.notifier != nil {
		s.notifier.ScoreEvent(kind, rec)
	}
}
