// Package teams — service.go содержит бизнес-логику команд:
// создание, состав и проверку прав на командные действия.
package teams

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/config"
)

// Service управляет командами.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService создаёт сервис команд.
func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// CreateTeam создаёт команду с указанным капитаном.
func (s *Service) CreateTeam(ctx context.Context, name, description string, captainID int64) (*Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: укажите название команды", common.ErrBadRequest)
	}
	if len([]rune(name)) > 64 {
		return nil, fmt.Errorf("%w: название длиннее 64 символов", common.ErrBadRequest)
	}

	team := &Team{
		Name:        name,
		Description: strings.TrimSpace(description),
		CaptainID:   captainID,
	}
	if err := s.repo.Create(ctx, team); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"team":    team.Name,
		"captain": captainID,
	}).Info("Команда создана")

	return team, nil
}

// GetByID возвращает команду по ID.
func (s *Service) GetByID(ctx context.Context, teamID int64) (*Team, error) {
	return s.repo.GetByID(ctx, teamID)
}

// GetByName возвращает команду по названию (без учёта регистра).
func (s *Service) GetByName(ctx context.Context, name string) (*Team, error) {
	return s.repo.GetByName(ctx, name)
}

// Exists сообщает, существует ли команда. Нужен движку оценок.
func (s *Service) Exists(ctx context.Context, teamID int64) (bool, error) {
	return s.repo.Exists(ctx, teamID)
}

// List возвращает все команды.
func (s *Service) List(ctx context.Context) ([]*Team, error) {
	return s.repo.List(ctx)
}

// Join добавляет участника в команду.
func (s *Service) Join(ctx context.Context, teamID, userID int64) error {
	if _, err := s.repo.GetByID(ctx, teamID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, teamID, userID)
}

// Leave убирает участника из команды. Капитан покинуть команду не может.
func (s *Service) Leave(ctx context.Context, teamID, userID int64) error {
	team, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CaptainID == userID {
		return fmt.Errorf("%w: капитан не может покинуть команду", common.ErrBadRequest)
	}
	return s.repo.RemoveMember(ctx, teamID, userID)
}

// CanActFor проверяет, имеет ли actor право на командные действия:
// начисление командных оценок разрешено капитану и глобальным админам.
// Это «внешний авторизационный коллаборатор» движка оценок.
func (s *Service) CanActFor(ctx context.Context, actorID, teamID int64) (bool, error) {
	if s.cfg.IsGlobalAdmin(actorID) {
		return true, nil
	}
	team, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return false, err
	}
	return team.CaptainID == actorID, nil
}

// MemberCount возвращает размер состава.
func (s *Service) MemberCount(ctx context.Context, teamID int64) (int, error) {
	return s.repo.MemberCount(ctx, teamID)
}
