// Package notify — диспетчер уведомлений: превращает события движка
// (создание/одобрение/отклонение оценки, сработавший таймер) в сообщение
// Telegram и WebSocket-событие. Fire-and-forget: ошибка доставки
// логируется и глотается, мутация движка уже зафиксирована.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/features/scores"
	"scorebot/internal/features/timers"
	"scorebot/internal/ws"
)

// Sender отправляет сообщения в Telegram. *tgbotapi.BotAPI ему
// удовлетворяет; в тестах — фейк.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CacheInvalidator сбрасывает кэш рейтингов после мутаций оценок.
type CacheInvalidator interface {
	InvalidateRankings()
}

// Dispatcher реализует scores.Notifier и timers.Notifier.
type Dispatcher struct {
	sender      Sender
	hub         *ws.Hub
	invalidator CacheInvalidator
}

// NewDispatcher создаёт диспетчер. hub и invalidator могут быть nil.
func NewDispatcher(sender Sender, hub *ws.Hub, invalidator CacheInvalidator) *Dispatcher {
	return &Dispatcher{sender: sender, hub: hub, invalidator: invalidator}
}

// ScoreEvent обрабатывает событие оценки.
func (d *Dispatcher) ScoreEvent(kind scores.EventKind, rec *scores.ScoreRecord) {
	if text := scoreEventText(kind, rec); text != "" {
		d.sendTelegram(rec.ChatID, text)
	}

	if d.hub != nil {
		d.hub.Broadcast(ws.Event{Kind: "score_" + string(kind), Payload: rec})
	}

	// Созданная pending-оценка рейтинги не меняет, остальное — меняет
	if d.invalidator != nil && !(kind == scores.EventCreated && rec.Status == scores.StatusPending) {
		d.invalidator.InvalidateRankings()
	}
}

// TimerFired обрабатывает сработавший таймер.
func (d *Dispatcher) TimerFired(t *timers.Timer) {
	d.sendTelegram(t.ChatID, fmt.Sprintf("⏰ Время вышло: «%s»!", t.Name))

	if d.hub != nil {
		d.hub.Broadcast(ws.Event{Kind: "timer_fired", Payload: t})
	}
}

func scoreEventText(kind scores.EventKind, rec *scores.ScoreRecord) string {
	switch kind {
	case scores.EventCreated:
		if rec.Status == scores.StatusPending {
			return fmt.Sprintf("⏳ Оценка #%d (%s) отправлена на модерацию", rec.ID, common.FormatPoints(rec.Value))
		}
		return "" // одобренное создание уже анонсировал обработчик команды
	case scores.EventApproved:
		return fmt.Sprintf("✅ Оценка #%d одобрена: %s", rec.ID, common.FormatPoints(rec.Value))
	case scores.EventRejected:
		return fmt.Sprintf("🚫 Оценка #%d отклонена: %s", rec.ID, rec.RejectionReason)
	case scores.EventDisputed:
		return fmt.Sprintf("⚖️ Оценка #%d переведена в спор", rec.ID)
	default:
		return ""
	}
}

func (d *Dispatcher) sendTelegram(chatID int64, text string) {
	if d.sender == nil || chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := d.sender.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось отправить уведомление")
	}
}
