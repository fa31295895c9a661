// handlers.go обрабатывает командные команды: !новакоманда, !вступить,
// !покинуть, !команды.
package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// Handler обрабатывает команды команд в чате.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик команд.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleCreate — команда !новакоманда <название>. Создатель становится капитаном.
func (h *Handler) HandleCreate(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: !новакоманда <название>")
		return
	}
	name := strings.Join(args, " ")

	team, err := h.service.CreateTeam(ctx, name, "", userID)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateTeam) {
			h.sendMessage(chatID, "❌ Команда с таким названием уже есть")
			return
		}
		log.WithError(err).Error("Ошибка создания команды")
		h.sendMessage(chatID, "❌ Не удалось создать команду")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("🚩 Команда «%s» создана, ты — капитан", team.Name))
}

// HandleJoin — команда !вступить <название>.
func (h *Handler) HandleJoin(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: !вступить <название>")
		return
	}
	name := strings.Join(args, " ")

	team, err := h.service.GetByName(ctx, name)
	if err != nil {
		h.sendMessage(chatID, "❌ Не знаю такой команды. Список: !команды")
		return
	}

	if err := h.service.Join(ctx, team.ID, userID); err != nil {
		log.WithError(err).Error("Ошибка вступления в команду")
		h.sendMessage(chatID, "❌ Не удалось вступить в команду")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("🤝 Добро пожаловать в «%s»!", team.Name))
}

// HandleLeave — команда !покинуть <название>. Капитан покинуть не может.
func (h *Handler) HandleLeave(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: !покинуть <название>")
		return
	}
	name := strings.Join(args, " ")

	team, err := h.service.GetByName(ctx, name)
	if err != nil {
		h.sendMessage(chatID, "❌ Не знаю такой команды")
		return
	}

	err = h.service.Leave(ctx, team.ID, userID)
	switch {
	case err == nil:
		h.sendMessage(chatID, fmt.Sprintf("👋 Ты покинул «%s»", team.Name))
	case errors.Is(err, common.ErrBadRequest):
		h.sendMessage(chatID, "❌ Капитан не может покинуть свою команду")
	case errors.Is(err, common.ErrNotFound):
		h.sendMessage(chatID, "❌ Не знаю такой команды")
	default:
		log.WithError(err).Error("Ошибка выхода из команды")
		h.sendMessage(chatID, "❌ Не удалось покинуть команду")
	}
}

// HandleList — команда !команды.
func (h *Handler) HandleList(ctx context.Context, chatID int64) {
	list, err := h.service.List(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка списка команд")
		h.sendMessage(chatID, "❌ Не удалось получить команды")
		return
	}
	if len(list) == 0 {
		h.sendMessage(chatID, "Команд пока нет. Создай первую: !новакоманда <название>")
		return
	}

	var sb strings.Builder
	sb.WriteString("🚩 Команды клуба:\n\n")
	for _, team := range list {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", team.Name, common.FormatPoints(team.TotalScore)))
	}
	h.sendMessage(chatID, sb.String())
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
