// Package scores — движок начисления баллов: записи оценок, нормализация,
// машина статусов и согласованность денормализованных счётчиков субъектов.
// models.go описывает запись оценки и её производные поля.
package scores

import (
	"math"
	"time"
)

// Status — статус оценки в цикле одобрения.
type Status string

// Статусы оценки. pending и rejected не учитываются в счётчиках и рейтингах,
// disputed — терминальный для движка: выхода из него переходами не предусмотрено.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDisputed Status = "disputed"
)

// Valid проверяет, что статус — одно из допустимых значений.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDisputed:
		return true
	}
	return false
}

// ScoreContext — контекст начисления: личный, командный или групповой.
type ScoreContext string

const (
	ContextIndividual ScoreContext = "individual"
	ContextTeam       ScoreContext = "team"
	ContextGroup      ScoreContext = "group"
)

// Valid проверяет контекст.
func (c ScoreContext) Valid() bool {
	switch c {
	case ContextIndividual, ContextTeam, ContextGroup:
		return true
	}
	return false
}

// ScoreRecord — одна начисленная оценка.
//
// Инвариант уникальности: не более одной записи на (user_id, activity_id,
// sub_activity) и, независимо, не более одной на (team_id, activity_id,
// sub_activity). Обеспечивается частичными уникальными индексами в БД;
// повторное создание — конфликт, а не upsert.
//
// Заполнен ровно один из UserID/TeamID, и он согласован с Context:
// team ⇒ TeamID, individual/group ⇒ UserID.
type ScoreRecord struct {
	ID          int64   `db:"id"`
	UserID      *int64  `db:"user_id"` // Субъект-участник (слабая ссылка)
	TeamID      *int64  `db:"team_id"` // Субъект-команда (слабая ссылка)
	ActivityID  int64   `db:"activity_id"`
	SubActivity string  `db:"sub_activity"` // Ключ подактивности, "" = активность целиком
	Value       float64 `db:"value"`        // Сырое значение, ≥ 0
	MaxPossible float64 `db:"max_possible"` // Потолок для нормализации, ≥ 1

	// NormalizedScore — производное поле: round(min(100, value/max*100)).
	// Пересчитывается при каждом изменении Value/MaxPossible,
	// напрямую не задаётся.
	NormalizedScore int `db:"normalized_score"`

	Context   ScoreContext `db:"context"`
	Status    Status       `db:"status"`
	AwardedBy int64        `db:"awarded_by"` // Кто начислил; после создания не меняется

	// Метаданные: чат обязателен, остальное — по желанию
	ChatID      int64  `db:"chat_id"`
	MessageID   *int64 `db:"message_id"`
	Comment     string `db:"comment"`
	EvidenceURL string `db:"evidence_url"`

	RejectionReason string     `db:"rejection_reason"` // Заполнено только при rejected
	ReviewedBy      *int64     `db:"reviewed_by"`
	ReviewedAt      *time.Time `db:"reviewed_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Normalize приводит значение к шкале 0–100:
// round(min(100, value/maxPossible*100)).
func Normalize(value, maxPossible float64) int {
	if maxPossible <= 0 {
		return 0
	}
	return int(math.Round(math.Min(100, value/maxPossible*100)))
}

// Recompute пересчитывает нормализованную оценку из Value/MaxPossible.
func (r *ScoreRecord) Recompute() {
	r.NormalizedScore = Normalize(r.Value, r.MaxPossible)
}

// SubjectRef — ссылка на субъекта оценки (участник ИЛИ команда).
type SubjectRef struct {
	UserID *int64
	TeamID *int64
}

// Subject возвращает ссылку на субъекта записи.
func (r *ScoreRecord) Subject() SubjectRef {
	return SubjectRef{UserID: r.UserID, TeamID: r.TeamID}
}

// IsTeam сообщает, командная ли это оценка.
func (r *ScoreRecord) IsTeam() bool {
	return r.TeamID != nil
}

// CounterDelta — подписанная дельта для денормализованных счётчиков субъекта.
// WithActivity двигает счётчик завершённых активностей (+1 на положительной
// дельте, −1 на отрицательной); при правке значения уже одобренной оценки
// счётчик активностей не трогается.
type CounterDelta struct {
	Value        float64
	WithActivity bool
}
