// Package timers — service.go содержит бизнес-логику таймеров:
// разбор длительности, права на отмену и ежеминутный обход истёкших.
package timers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/metrics"
)

// Store — персистентное хранилище таймеров.
type Store interface {
	Create(ctx context.Context, t *Timer) error
	ListActive(ctx context.Context, chatID int64) ([]*Timer, error)
	GetByName(ctx context.Context, name string, activityID int64) (*Timer, error)
	Cancel(ctx context.Context, id int64) error
	ClaimDue(ctx context.Context, limit int) ([]*Timer, error)
}

// Notifier получает сработавшие таймеры. Ошибки доставки не откатывают
// пометку fired: таймер считается сработавшим один раз.
type Notifier interface {
	TimerFired(t *Timer)
}

// Service — логика таймеров.
type Service struct {
	store    Store
	notifier Notifier
	cfg      *config.Config
}

// NewService создаёт сервис таймеров.
func NewService(store Store, notifier Notifier, cfg *config.Config) *Service {
	return &Service{store: store, notifier: notifier, cfg: cfg}
}

// Create создаёт таймер на duration от текущего момента.
func (s *Service) Create(ctx context.Context, name string, activityID int64, duration time.Duration, chatID, createdBy int64) (*Timer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: у таймера должно быть имя", common.ErrBadRequest)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: длительность должна быть положительной", common.ErrBadRequest)
	}

	t := &Timer{
		Name:       name,
		ActivityID: activityID,
		EndsAt:     common.GetMoscowTime().Add(duration),
		ChatID:     chatID,
		CreatedBy:  createdBy,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"timer":   t.Name,
		"ends_at": t.EndsAt,
	}).Info("Таймер создан")
	return t, nil
}

// ListActive возвращает активные таймеры чата.
func (s *Service) ListActive(ctx context.Context, chatID int64) ([]*Timer, error) {
	return s.store.ListActive(ctx, chatID)
}

// Cancel отменяет таймер по имени. Отменить может создатель или админ.
func (s *Service) Cancel(ctx context.Context, name string, activityID, actorID int64) error {
	t, err := s.store.GetByName(ctx, name, activityID)
	if err != nil {
		return err
	}
	if t.CreatedBy != actorID && !s.cfg.IsGlobalAdmin(actorID) {
		return fmt.Errorf("%w: отменить таймер может его создатель или админ", common.ErrForbidden)
	}
	return s.store.Cancel(ctx, t.ID)
}

// FireDue забирает истёкшие таймеры и отправляет уведомления.
// Вызывается джобой раз в минуту; возвращает число сработавших.
func (s *Service) FireDue(ctx context.Context) (int, error) {
	due, err := s.store.ClaimDue(ctx, 100)
	if err != nil {
		return 0, err
	}
	for _, t := range due {
		metrics.TimersFired.Inc()
		log.WithField("timer", t.Name).Info("Таймер сработал")
		if s.notifier != nil {
			s.notifier.TimerFired(t)
		}
	}
	return len(due), nil
}

// ParseDuration разбирает длительность таймера из команды.
// Понимает суффиксы м/ч/д и m/h/d: "90м", "2ч", "1д", "45m".
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, fmt.Errorf("%w: не указана длительность", common.ErrBadRequest)
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(raw, "м"), strings.HasSuffix(raw, "m"):
		unit = time.Minute
	case strings.HasSuffix(raw, "ч"), strings.HasSuffix(raw, "h"):
		unit = time.Hour
	case strings.HasSuffix(raw, "д"), strings.HasSuffix(raw, "d"):
		unit = 24 * time.Hour
	}
	if unit == 0 {
		return 0, fmt.Errorf("%w: длительность задаётся как 90м, 2ч или 1д", common.ErrBadRequest)
	}

	n, err := strconv.Atoi(strings.TrimRight(raw, "мчдmhd"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: длительность задаётся как 90м, 2ч или 1д", common.ErrBadRequest)
	}
	return time.Duration(n) * unit, nil
}
