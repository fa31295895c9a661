// Package admin — handlers.go обрабатывает взаимодействие с панелью ревьюера.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: аутентификация → клавиатура → очередь → одобрение/отклонение.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/features/members"
	"scorebot/internal/features/scores"
)

// Handler обрабатывает сообщения панели ревьюера.
type Handler struct {
	service       *Service
	memberService *members.Service
	bot           *tgbotapi.BotAPI
	queueLimit    int
}

// NewHandler создаёт обработчик панели ревьюера.
func NewHandler(service *Service, memberService *members.Service, bot *tgbotapi.BotAPI, queueLimit int) *Handler {
	if queueLimit <= 0 {
		queueLimit = 10
	}
	return &Handler{
		service:       service,
		memberService: memberService,
		bot:           bot,
		queueLimit:    queueLimit,
	}
}

// HandleMessage обрабатывает любое сообщение в DM от потенциального
// ревьюера. Возвращает true, если сообщение относится к панели.
func (h *Handler) HandleMessage(ctx context.Context, chatID, userID int64, text string) bool {
	member, err := h.memberService.GetByUserID(ctx, userID)
	if err != nil || !member.IsAdmin {
		return false
	}

	state := h.service.GetState(userID)

	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	if !h.service.HasActiveSession(ctx, userID) {
		h.sendMessage(chatID, "🔐 Введите пароль для доступа к панели ревьюера:")
		h.service.SetState(userID, StateAwaitingPassword, nil)
		return true
	}

	h.service.TouchActivity(ctx, userID)

	if state != nil && state.State == StateAwaitingReason {
		h.handleReasonInput(ctx, chatID, userID, state, text)
		return true
	}

	switch {
	case text == "Очередь" || text == "очередь":
		h.showQueue(ctx, chatID)
		return true
	case strings.HasPrefix(text, "Одобрить "), strings.HasPrefix(text, "одобрить "):
		h.handleApprove(ctx, chatID, userID, strings.Fields(text)[1:])
		return true
	case strings.HasPrefix(text, "Отклонить "), strings.HasPrefix(text, "отклонить "):
		h.startReject(chatID, userID, strings.Fields(text)[1:])
		return true
	case text == "Роли" || text == "роли":
		h.showRoles(ctx, chatID)
		return true
	case strings.HasPrefix(text, "Роль "), strings.HasPrefix(text, "роль "):
		h.handleAssignRole(ctx, chatID, strings.Fields(text)[1:])
		return true
	case text == "Выход" || text == "выход":
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка выхода из панели")
		}
		h.sendMessage(chatID, "👋 Сессия завершена")
		return true
	case text == "Панель" || text == "панель":
		h.showKeyboard(chatID)
		return true
	}

	return false
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	err := h.service.VerifyPassword(ctx, userID, password)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
		h.service.ClearState(userID)
		return
	}

	h.service.ClearState(userID)
	h.sendMessage(chatID, "✅ Аутентификация успешна!")
	h.showKeyboard(chatID)
}

// showQueue показывает очередь оценок на модерации.
func (h *Handler) showQueue(ctx context.Context, chatID int64) {
	pending, err := h.service.PendingQueue(ctx, h.queueLimit)
	if err != nil {
		log.WithError(err).Error("Ошибка получения очереди модерации")
		h.sendMessage(chatID, "❌ Не удалось получить очередь")
		return
	}
	if len(pending) == 0 {
		h.sendMessage(chatID, "Очередь пуста, всё разобрано ✨")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Очередь на модерации:\n\n")
	for _, rec := range pending {
		sb.WriteString(formatQueueItem(rec))
	}
	sb.WriteString("\nКоманды: «одобрить <id>», «отклонить <id>»")
	h.sendMessage(chatID, sb.String())
}

func formatQueueItem(rec *scores.ScoreRecord) string {
	subject := "?"
	if rec.UserID != nil {
		subject = fmt.Sprintf("участник %d", *rec.UserID)
	} else if rec.TeamID != nil {
		subject = fmt.Sprintf("команда %d", *rec.TeamID)
	}
	line := fmt.Sprintf("#%d — %s, активность %d, %s (норм. %d), %s\n",
		rec.ID, subject, rec.ActivityID,
		common.FormatPoints(rec.Value), rec.NormalizedScore,
		common.FormatDateTime(rec.CreatedAt))
	if rec.Comment != "" {
		line += fmt.Sprintf("   💬 %s\n", rec.Comment)
	}
	return line
}

// showRoles показывает распределение ролей в клубе.
func (h *Handler) showRoles(ctx context.Context, chatID int64) {
	assigned, err := h.memberService.WithRole(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения списка ролей")
		h.sendMessage(chatID, "❌ Не удалось получить список ролей")
		return
	}
	unassigned, err := h.memberService.WithoutRole(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения участников без роли")
		h.sendMessage(chatID, "❌ Не удалось получить список ролей")
		return
	}
	h.sendMessage(chatID, formatRoleReport(assigned, unassigned))
}

func formatRoleReport(assigned, unassigned []*members.Member) string {
	var sb strings.Builder
	sb.WriteString("👥 Роли в клубе:\n\n")
	if len(assigned) == 0 {
		sb.WriteString("Роли пока никому не назначены\n")
	}
	for _, m := range assigned {
		role := ""
		if m.Role != nil {
			role = *m.Role
		}
		sb.WriteString(fmt.Sprintf("• %s — %s\n", m.DisplayName(), role))
	}
	if len(unassigned) > 0 {
		sb.WriteString("\nБез роли:\n")
		for _, m := range unassigned {
			sb.WriteString(fmt.Sprintf("• %s\n", m.DisplayName()))
		}
	}
	sb.WriteString("\nНазначение: «роль <username> <роль>»")
	return sb.String()
}

// handleAssignRole — «роль <username> <роль>».
func (h *Handler) handleAssignRole(ctx context.Context, chatID int64, args []string) {
	username, role, ok := parseRoleArgs(args)
	if !ok {
		h.sendMessage(chatID, "Использование: роль <username> <роль>")
		return
	}
	if err := h.memberService.AssignRole(ctx, username, role); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			h.sendMessage(chatID, "❌ Такого участника нет")
			return
		}
		log.WithError(err).Error("Ошибка назначения роли")
		h.sendMessage(chatID, "❌ Не получилось назначить роль")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ @%s теперь «%s»", username, role))
}

func parseRoleArgs(args []string) (username, role string, ok bool) {
	if len(args) < 2 {
		return "", "", false
	}
	username = strings.TrimPrefix(args[0], "@")
	role = strings.TrimSpace(strings.Join(args[1:], " "))
	if username == "" || role == "" {
		return "", "", false
	}
	return username, role, true
}

// handleApprove — «одобрить <id>».
func (h *Handler) handleApprove(ctx context.Context, chatID, userID int64, args []string) {
	id, ok := parseScoreID(args)
	if !ok {
		h.sendMessage(chatID, "Использование: одобрить <id>")
		return
	}

	rec, err := h.service.Approve(ctx, id, userID)
	if err != nil {
		h.sendMessage(chatID, reviewErrorText(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Оценка #%d одобрена (%s)", rec.ID, common.FormatPoints(rec.Value)))
}

// startReject запрашивает причину отклонения: без причины движок
// отклонение не примет.
func (h *Handler) startReject(chatID, userID int64, args []string) {
	id, ok := parseScoreID(args)
	if !ok {
		h.sendMessage(chatID, "Использование: отклонить <id>")
		return
	}
	h.service.SetState(userID, StateAwaitingReason, id)
	h.sendMessage(chatID, fmt.Sprintf("Укажите причину отклонения оценки #%d:", id))
}

// handleReasonInput завершает отклонение введённой причиной.
func (h *Handler) handleReasonInput(ctx context.Context, chatID, userID int64, state *ReviewerState, reason string) {
	h.service.ClearState(userID)

	id, ok := state.Data.(int64)
	if !ok {
		h.sendMessage(chatID, "❌ Контекст диалога потерян, начните заново")
		return
	}

	rec, err := h.service.Reject(ctx, id, userID, strings.TrimSpace(reason))
	if err != nil {
		h.sendMessage(chatID, reviewErrorText(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🚫 Оценка #%d отклонена: %s", rec.ID, rec.RejectionReason))
}

func parseScoreID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func reviewErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "❌ Такой оценки нет"
	case errors.Is(err, common.ErrForbidden):
		return "❌ Недостаточно прав"
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrBadRequest):
		return fmt.Sprintf("❌ %s", err.Error())
	default:
		log.WithError(err).Error("Ошибка модерации оценки")
		return "❌ Не получилось, попробуйте ещё раз"
	}
}

// showKeyboard отображает клавиатуру панели ревьюера.
func (h *Handler) showKeyboard(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Очередь"),
			tgbotapi.NewKeyboardButton("Роли"),
			tgbotapi.NewKeyboardButton("Выход"),
		),
	)
	msg := tgbotapi.NewMessage(chatID, "Панель ревьюера. Выберите действие:")
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки клавиатуры")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
