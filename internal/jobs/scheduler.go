// Package jobs — фоновые задачи по расписанию: срабатывание таймеров
// и ночная сверка денормализованных счётчиков.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// TimerSweeper переводит дошедшие до срока таймеры в сработавшие.
type TimerSweeper interface {
	FireDue(ctx context.Context) (int, error)
}

// CounterReconciler пересчитывает счётчики субъектов из таблицы оценок.
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (fixedMembers, fixedTeams int64, err error)
}

// Scheduler — обёртка над cron в часовом поясе клуба.
type Scheduler struct {
	cron       *cron.Cron
	sweeper    TimerSweeper
	reconciler CounterReconciler
}

// NewScheduler создаёт планировщик. Пустой timezone — UTC.
func NewScheduler(timezone string, sweeper TimerSweeper, reconciler CounterReconciler) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		sweeper:    sweeper,
		reconciler: reconciler,
	}, nil
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start() error {
	// Таймеры проверяем раз в минуту
	if s.sweeper != nil {
		if _, err := s.cron.AddFunc("* * * * *", s.sweepTimers); err != nil {
			return err
		}
	}

	// Сверка счётчиков — ночью, когда активность минимальна
	if s.reconciler != nil {
		if _, err := s.cron.AddFunc("30 3 * * *", s.reconcileCounters); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Info("Планировщик фоновых задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик фоновых задач остановлен")
}

func (s *Scheduler) sweepTimers() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fired, err := s.sweeper.FireDue(ctx)
	if err != nil {
		log.Errorf("Не удалось обработать таймеры: %v", err)
		return
	}
	if fired > 0 {
		log.Infof("Сработало таймеров: %d", fired)
	}
}

func (s *Scheduler) reconcileCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fixedMembers, fixedTeams, err := s.reconciler.ReconcileCounters(ctx)
	if err != nil {
		log.Errorf("Сверка счётчиков не удалась: %v", err)
		return
	}
	if fixedMembers > 0 || fixedTeams > 0 {
		log.Warnf("Сверка счётчиков: исправлено участников=%d, команд=%d", fixedMembers, fixedTeams)
	} else {
		log.Info("Сверка счётчиков: расхождений нет")
	}
}
