// Package activities — service.go содержит бизнес-логику справочника активностей.
package activities

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// Service управляет справочником активностей.
// Движок оценок обращается к нему только на чтение: Exists/GetByID.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис активностей.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateActivity добавляет активность в справочник.
func (s *Service) CreateActivity(ctx context.Context, name, description string, subActivities []string, createdBy int64) (*Activity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: укажите название активности", common.ErrBadRequest)
	}

	// Чистим список подактивностей от пустых и повторов
	seen := make(map[string]struct{}, len(subActivities))
	keys := make([]string, 0, len(subActivities))
	for _, k := range subActivities {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	a := &Activity{
		Name:          name,
		Description:   strings.TrimSpace(description),
		SubActivities: keys,
		IsActive:      true,
		CreatedBy:     createdBy,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"activity":       a.Name,
		"sub_activities": len(a.SubActivities),
	}).Info("Активность создана")

	return a, nil
}

// GetByID возвращает активность по ID.
func (s *Service) GetByID(ctx context.Context, id int64) (*Activity, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName возвращает активность по названию.
func (s *Service) GetByName(ctx context.Context, name string) (*Activity, error) {
	return s.repo.GetByName(ctx, name)
}

// Exists сообщает, существует ли активность.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// ListActive возвращает активные активности.
func (s *Service) ListActive(ctx context.Context) ([]*Activity, error) {
	return s.repo.ListActive(ctx)
}

// SetActive включает/выключает активность.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}
