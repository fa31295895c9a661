// Package admin реализует панель ревьюера в личке бота: парольный вход,
// сессии в БД и пошаговая работа с очередью оценок на модерации.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// ReviewerSession — активная сессия ревьюера.
type ReviewerSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// ReviewerState — состояние диалога с ревьюером (конечный автомат).
// Панель работает по шагам: вход → очередь → одобрить/отклонить →
// для отклонения отдельно запрашивается причина.
type ReviewerState struct {
	State     string      // Текущее состояние
	Data      interface{} // Данные контекста (например, id отклоняемой оценки)
	ExpiresAt time.Time   // Когда состояние истекает (5 минут)
}

// Возможные состояния диалога ревьюера
const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль
	StateAwaitingReason   = "awaiting_reason"   // Ждём причину отклонения
)
