// Package auth разрешает личность вызывающего REST API.
// Resolver превращает HTTP-запрос в Subject; за интерфейсом две стратегии —
// JWT bearer и подписанные initData Telegram WebApp. Потребители не знают,
// какая стратегия сработала.
package auth

import (
	"errors"
	"net/http"
)

// Роли субъектов API.
const (
	RoleMember   = "member"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// Subject — аутентифицированный вызывающий.
type Subject struct {
	ID   int64 // Telegram user ID
	Role string
}

// IsReviewer сообщает, может ли субъект модерировать оценки.
func (s Subject) IsReviewer() bool {
	return s.Role == RoleReviewer || s.Role == RoleAdmin
}

// ErrNoCredentials — в запросе нет учётных данных этой стратегии.
// Цепочка по нему переходит к следующей; любая другая ошибка — отказ.
var ErrNoCredentials = errors.New("нет учётных данных")

// Resolver извлекает субъекта из запроса.
type Resolver interface {
	Resolve(r *http.Request) (Subject, error)
}

// Chain пробует стратегии по очереди. Первая, нашедшая свои учётные
// данные, решает исход — ошибка проверки не передаётся дальше.
type Chain struct {
	resolvers []Resolver
}

// NewChain собирает цепочку стратегий.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve реализует Resolver.
func (c *Chain) Resolve(r *http.Request) (Subject, error) {
	for _, resolver := range c.resolvers {
		subject, err := resolver.Resolve(r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return subject, err
	}
	return Subject{}, ErrNoCredentials
}
