// Package admin — service.go содержит логику аутентификации ревьюера,
// управления сессиями и работу с очередью оценок на модерации.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/features/scores"
)

// ScoreEngine — операции движка оценок, нужные панели ревьюера.
type ScoreEngine interface {
	History(ctx context.Context, f scores.Filter, limit int) ([]*scores.ScoreRecord, error)
	Approve(ctx context.Context, id, reviewerID int64) (*scores.ScoreRecord, error)
	Reject(ctx context.Context, id, reviewerID int64, reason string) (*scores.ScoreRecord, error)
}

// SessionStore — хранилище сессий и журнала попыток входа ревьюера.
type SessionStore interface {
	CreateSession(ctx context.Context, session *ReviewerSession) error
	GetActiveSession(ctx context.Context, userID int64) (*ReviewerSession, error)
	DeactivateSession(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	GetRecentAttempts(ctx context.Context, userID int64, period time.Duration) (int, error)
}

// Service управляет панелью ревьюера.
type Service struct {
	repo     SessionStore
	engine   ScoreEngine
	cfg      *config.Config
	states   map[int64]*ReviewerState // Состояния диалогов (in-memory)
	statesMu sync.RWMutex
}

// NewService создаёт сервис панели ревьюера.
func NewService(repo SessionStore, engine ScoreEngine, cfg *config.Config) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		cfg:    cfg,
		states: make(map[int64]*ReviewerState),
	}
}

// VerifyPassword проверяет пароль ревьюера с использованием Argon2id.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	attempts, err := s.repo.GetRecentAttempts(ctx, userID, 1*time.Hour)
	if err != nil {
		return err
	}
	if attempts >= 3 {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)

	s.repo.LogAttempt(ctx, userID, match)

	if !match {
		return common.ErrWrongPassword
	}

	// Сессия на 24 часа
	token := generateSecureToken()
	session := &ReviewerSession{
		UserID:       userID,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}

	return s.repo.CreateSession(ctx, session)
}

// HasActiveSession проверяет, есть ли у пользователя активная сессия.
func (s *Service) HasActiveSession(ctx context.Context, userID int64) bool {
	session, err := s.repo.GetActiveSession(ctx, userID)
	return err == nil && session != nil
}

// TouchActivity продлевает активную сессию пользователя.
func (s *Service) TouchActivity(ctx context.Context, userID int64) error {
	return s.repo.UpdateActivity(ctx, userID)
}

// Logout деактивирует сессии пользователя.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.repo.DeactivateSession(ctx, userID)
}

// PendingQueue возвращает оценки в статусе pending, старые первыми —
// очередь разбирается в порядке поступления.
func (s *Service) PendingQueue(ctx context.Context, limit int) ([]*scores.ScoreRecord, error) {
	pending := scores.StatusPending
	records, err := s.engine.History(ctx, scores.Filter{Status: &pending}, limit)
	if err != nil {
		return nil, err
	}
	// История отдаёт новые первыми, очередь нужна в обратном порядке
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Approve одобряет оценку от имени ревьюера.
func (s *Service) Approve(ctx context.Context, scoreID, reviewerID int64) (*scores.ScoreRecord, error) {
	return s.engine.Approve(ctx, scoreID, reviewerID)
}

// Reject отклоняет оценку с причиной.
func (s *Service) Reject(ctx context.Context, scoreID, reviewerID int64, reason string) (*scores.ScoreRecord, error) {
	return s.engine.Reject(ctx, scoreID, reviewerID, reason)
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *ReviewerState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return nil
	}
	if time.Now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string, data interface{}) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	s.states[userID] = &ReviewerState{
		State:     stateName,
		Data:      data,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
