// Package members — service.go содержит бизнес-логику управления участниками.
// Сервис координирует регистрацию новых участников, проверку членства
// и обновление информации.
package members

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// Store — операции репозитория, нужные сервису участников.
type Store interface {
	Create(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	GetByUsername(ctx context.Context, username string) (*Member, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	UpdateInfo(ctx context.Context, userID int64, info UpdateInfo) error
	UpdateRole(ctx context.Context, userID int64, role string) error
	GetUsersWithoutRole(ctx context.Context) ([]*Member, error)
	GetUsersWithRole(ctx context.Context) ([]*Member, error)
}

// Service управляет участниками клуба.
// Связывает обработчики Telegram-событий с репозиторием БД.
type Service struct {
	repo Store
}

// NewService создаёт новый сервис участников.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// HandleNewMember обрабатывает вступление нового пользователя в чат.
// Если пользователь уже есть в базе (перезашёл) — обновляет его данные.
// Если пользователь новый — создаёт запись.
func (s *Service) HandleNewMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	existing, _ := s.repo.GetByUserID(ctx, userID)
	if existing != nil {
		// Пользователь уже зарегистрирован — обновляем данные
		log.WithField("user_id", userID).Info("Участник перезашёл в чат, обновляем данные")
		return s.repo.UpdateInfo(ctx, userID, UpdateInfo{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		})
	}

	member := &Member{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		IsAdmin:   false,
		IsBanned:  false,
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return fmt.Errorf("ошибка регистрации нового участника: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
	}).Info("Новый участник зарегистрирован")

	return nil
}

// IsMember проверяет, является ли пользователь участником клуба.
// Используется для валидации доступа к DM.
func (s *Service) IsMember(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// GetByUserID возвращает участника по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetByUsername возвращает участника по @username (без @).
func (s *Service) GetByUsername(ctx context.Context, username string) (*Member, error) {
	return s.repo.GetByUsername(ctx, username)
}

// EnsureMember гарантирует, что пользователь есть в базе.
// Если нет — создаёт запись. Используется при первом сообщении в чате.
func (s *Service) EnsureMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.HandleNewMember(ctx, userID, username, firstName, lastName)
}

// Exists сообщает, есть ли участник в базе. Нужен движку оценок
// для валидации субъекта перед созданием оценки.
func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// AssignRole назначает участнику роль по @username (без @).
func (s *Service) AssignRole(ctx context.Context, username, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("%w: пустая роль", common.ErrBadRequest)
	}
	member, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRole(ctx, member.UserID, role); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": member.UserID,
		"role":    role,
	}).Info("Участнику назначена роль")
	return nil
}

// WithoutRole возвращает незабаненных участников без назначенной роли.
func (s *Service) WithoutRole(ctx context.Context) ([]*Member, error) {
	return s.repo.GetUsersWithoutRole(ctx)
}

// WithRole возвращает участников с назначенной ролью.
func (s *Service) WithRole(ctx context.Context) ([]*Member, error) {
	return s.repo.GetUsersWithRole(ctx)
}
