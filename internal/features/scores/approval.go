// Package scores — approval.go реализует машину статусов оценки:
// pending → {approved, rejected}, approved ↔ rejected,
// disputed достижим из любого статуса и терминален для движка.
// Каждый переход применяет свою дельту счётчиков в одной транзакции
// с записью статуса.
package scores

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/metrics"
)

// Approve одобряет оценку. Повторное одобрение — ошибка.
// Вклад оценки начинает считаться: дельта +value.
func (s *Service) Approve(ctx context.Context, id, reviewerID int64) (*ScoreRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}

	if rec.Status == StatusApproved {
		return nil, common.ErrAlreadyApproved
	}
	if rec.Status == StatusDisputed {
		return nil, fmt.Errorf("%w: спорная оценка не подлежит одобрению", common.ErrBadRequest)
	}

	rec.Status = StatusApproved
	rec.RejectionReason = ""
	s.stampReview(rec, reviewerID)

	delta := &CounterDelta{Value: rec.Value, WithActivity: true}
	if err := s.store.Update(ctx, rec, delta); err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(StatusApproved)).Inc()
	log.WithFields(log.Fields{
		"score_id": rec.ID,
		"reviewer": reviewerID,
	}).Info("Оценка одобрена")

	s.notify(EventApproved, rec)
	return rec, nil
}

// Reject отклоняет оценку с обязательной причиной. Повторное отклонение —
// ошибка. Если оценка была одобрена, её вклад сначала снимается
// дельтой −value, потом пишется статус — всё в одной транзакции.
func (s *Service) Reject(ctx context.Context, id, reviewerID int64, reason string) (*ScoreRecord, error) {
	if reason == "" {
		return nil, common.ErrReasonRequired
	}

	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}

	if rec.Status == StatusRejected {
		return nil, common.ErrAlreadyRejected
	}
	if rec.Status == StatusDisputed {
		return nil, fmt.Errorf("%w: спорная оценка не подлежит отклонению", common.ErrBadRequest)
	}

	var delta *CounterDelta
	if rec.Status == StatusApproved {
		delta = &CounterDelta{Value: -rec.Value, WithActivity: true}
	}

	rec.Status = StatusRejected
	rec.RejectionReason = reason
	s.stampReview(rec, reviewerID)

	if err := s.store.Update(ctx, rec, delta); err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(StatusRejected)).Inc()
	log.WithFields(log.Fields{
		"score_id": rec.ID,
		"reviewer": reviewerID,
		"reason":   reason,
	}).Info("Оценка отклонена")

	s.notify(EventRejected, rec)
	return rec, nil
}

// Dispute переводит оценку в спор. Достижим из любого статуса;
// дальнейших переходов движок не определяет. Если оценка была одобрена,
// её вклад снимается — спорные баллы в рейтингах не участвуют.
func (s *Service) Dispute(ctx context.Context, id, actorID int64) (*ScoreRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureCanEdit(ctx, actorID, rec); err != nil {
		return nil, err
	}

	if rec.Status == StatusDisputed {
		return nil, fmt.Errorf("%w: оценка уже в споре", common.ErrBadRequest)
	}

	var delta *CounterDelta
	if rec.Status == StatusApproved {
		delta = &CounterDelta{Value: -rec.Value, WithActivity: true}
	}

	rec.Status = StatusDisputed
	s.stampReview(rec, actorID)

	if err := s.store.Update(ctx, rec, delta); err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(StatusDisputed)).Inc()
	log.WithFields(log.Fields{
		"score_id": rec.ID,
		"actor":    actorID,
	}).Info("Оценка переведена в спор")

	s.notify(EventDisputed, rec)
	return rec, nil
}

// ensureReviewer: одобрять и отклонять может только ревьюер.
func (s *Service) ensureReviewer(ctx context.Context, reviewerID int64) error {
	allowed, err := s.authz.CanReview(ctx, reviewerID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: одобрение и отклонение доступны только ревьюерам", common.ErrForbidden)
	}
	return nil
}

func (s *Service) stampReview(rec *ScoreRecord, reviewerID int64) {
	now := time.Now().UTC()
	rec.ReviewedBy = &reviewerID
	rec.ReviewedAt = &now
}
