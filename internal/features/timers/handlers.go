// handlers.go обрабатывает команды !таймер, !таймеры и !таймерстоп.
package timers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// Handler обрабатывает команды таймеров в чате.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик таймеров.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleCreate — команда !таймер <имя> <длительность>.
func (h *Handler) HandleCreate(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 2 {
		h.sendMessage(chatID, "Использование: !таймер <имя> <длительность>\nПример: !таймер регистрация 2ч")
		return
	}

	duration, err := ParseDuration(args[len(args)-1])
	if err != nil {
		h.sendMessage(chatID, "❌ Длительность задаётся как 90м, 2ч или 1д")
		return
	}
	name := strings.Join(args[:len(args)-1], " ")

	t, err := h.service.Create(ctx, name, 0, duration, chatID, userID)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateTimer) {
			h.sendMessage(chatID, "❌ Таймер с таким именем уже идёт")
			return
		}
		log.WithError(err).Error("Ошибка создания таймера")
		h.sendMessage(chatID, "❌ Не удалось создать таймер")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("⏳ Таймер «%s» заведён до %s", t.Name, common.FormatDateTime(t.EndsAt)))
}

// HandleList — команда !таймеры.
func (h *Handler) HandleList(ctx context.Context, chatID int64) {
	active, err := h.service.ListActive(ctx, chatID)
	if err != nil {
		log.WithError(err).Error("Ошибка списка таймеров")
		h.sendMessage(chatID, "❌ Не удалось получить таймеры")
		return
	}
	if len(active) == 0 {
		h.sendMessage(chatID, "Активных таймеров нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("⏳ Активные таймеры:\n\n")
	now := common.GetMoscowTime()
	for _, t := range active {
		sb.WriteString(fmt.Sprintf("• %s — до %s (осталось %s)\n",
			t.Name, common.FormatDateTime(t.EndsAt), formatRemaining(t.Remaining(now))))
	}
	h.sendMessage(chatID, sb.String())
}

// HandleCancel — команда !таймерстоп <имя>.
func (h *Handler) HandleCancel(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: !таймерстоп <имя>")
		return
	}
	name := strings.Join(args, " ")

	err := h.service.Cancel(ctx, name, 0, userID)
	switch {
	case err == nil:
		h.sendMessage(chatID, fmt.Sprintf("🛑 Таймер «%s» отменён", name))
	case errors.Is(err, common.ErrTimerNotFound):
		h.sendMessage(chatID, "❌ Такого таймера нет")
	case errors.Is(err, common.ErrForbidden):
		h.sendMessage(chatID, "❌ Отменить таймер может его создатель или админ")
	default:
		log.WithError(err).Error("Ошибка отмены таймера")
		h.sendMessage(chatID, "❌ Не удалось отменить таймер")
	}
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dч %dм", hours, minutes)
	}
	return fmt.Sprintf("%dм", minutes)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
