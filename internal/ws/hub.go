// Package ws — WebSocket-хаб для трансляции событий платформы
// (созданные/одобренные/отклонённые оценки, сработавшие таймеры)
// подключённым клиентам.
package ws

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event — одно событие для клиентов.
type Event struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

// Hub раздаёт события всем подключённым клиентам. Медленный клиент
// события теряет: буфер на клиента фиксированный, блокировать рассылку
// из-за одного соединения нельзя.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub создаёт хаб.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register добавляет клиента в рассылку.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
}

// Unregister убирает клиента и закрывает его канал отправки.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast отправляет событие всем клиентам. Не блокирует:
// переполненный буфер клиента означает потерю события для него.
func (h *Hub) Broadcast(event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Не удалось сериализовать событие")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			log.Debug("Буфер клиента переполнен, событие пропущено")
		}
	}
}

// ClientCount возвращает число подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close закрывает все соединения и запрещает новые регистрации.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
