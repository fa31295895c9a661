// handlers.go обрабатывает команды !активности и !новаяактивность.
package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/config"
)

// Handler обрабатывает команды справочника активностей.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	cfg     *config.Config
}

// NewHandler создаёт обработчик активностей.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, cfg *config.Config) *Handler {
	return &Handler{service: service, bot: bot, cfg: cfg}
}

// HandleList — команда !активности.
func (h *Handler) HandleList(ctx context.Context, chatID int64) {
	list, err := h.service.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка списка активностей")
		h.sendMessage(chatID, "❌ Не удалось получить активности")
		return
	}
	if len(list) == 0 {
		h.sendMessage(chatID, "Активностей пока нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎯 Активности:\n\n")
	for _, a := range list {
		sb.WriteString("• " + a.Name)
		if len(a.SubActivities) > 0 {
			sb.WriteString(" (" + strings.Join(a.SubActivities, ", ") + ")")
		}
		sb.WriteString("\n")
	}
	h.sendMessage(chatID, sb.String())
}

// HandleCreate — команда !новаяактивность <название> [подактивности,через,запятую].
// Доступна только глобальным админам.
func (h *Handler) HandleCreate(ctx context.Context, chatID, userID int64, args []string) {
	if !h.cfg.IsGlobalAdmin(userID) {
		h.sendMessage(chatID, "❌ Создавать активности может только админ")
		return
	}
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: !новаяактивность <название> [подактивности,через,запятую]")
		return
	}

	name := args[0]
	var subActivities []string
	if len(args) > 1 {
		for _, s := range strings.Split(strings.Join(args[1:], ""), ",") {
			if s = strings.TrimSpace(s); s != "" {
				subActivities = append(subActivities, s)
			}
		}
	}

	activity, err := h.service.CreateActivity(ctx, name, "", subActivities, userID)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateActivity) {
			h.sendMessage(chatID, "❌ Активность с таким названием уже есть")
			return
		}
		log.WithError(err).Error("Ошибка создания активности")
		h.sendMessage(chatID, "❌ Не удалось создать активность")
		return
	}

	text := fmt.Sprintf("🎯 Активность «%s» создана", activity.Name)
	if len(activity.SubActivities) > 0 {
		text += " с подактивностями: " + strings.Join(activity.SubActivities, ", ")
	}
	h.sendMessage(chatID, text)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
