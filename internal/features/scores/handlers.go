// handlers.go обрабатывает чатовые команды движка оценок:
// !начислить, !очки, !история.
package scores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/features/activities"
	"scorebot/internal/features/members"
	"scorebot/internal/features/teams"
)

// Handler обрабатывает команды оценок в чате.
type Handler struct {
	service       *Service
	activityDir   *activities.Service
	memberService *members.Service
	teamService   *teams.Service
	bot           *tgbotapi.BotAPI
	cfg           *config.Config
}

// NewHandler создаёт обработчик команд оценок.
func NewHandler(
	service *Service,
	activityDir *activities.Service,
	memberService *members.Service,
	teamService *teams.Service,
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
) *Handler {
	return &Handler{
		service:       service,
		activityDir:   activityDir,
		memberService: memberService,
		teamService:   teamService,
		bot:           bot,
		cfg:           cfg,
	}
}

const awardUsage = "Использование: !начислить @ник <активность>[:<подактивность>] <значение>[/<макс>] [комментарий]\n" +
	"Пример: !начислить @vasya забег:5k 85/100 отличный темп"

// HandleAward — команда !начислить. Начисляет баллы участнику.
func (h *Handler) HandleAward(ctx context.Context, chatID, awardedBy int64, messageID int, args []string) {
	if len(args) < 3 {
		h.sendMessage(chatID, awardUsage)
		return
	}

	username := strings.TrimPrefix(args[0], "@")
	member, err := h.memberService.GetByUsername(ctx, username)
	if err != nil {
		h.sendMessage(chatID, "❌ Не знаю такого участника")
		return
	}

	req, ok := h.buildRequest(ctx, chatID, args[1], args[2], args[3:])
	if !ok {
		return
	}
	msgID := int64(messageID)
	req.UserID = &member.UserID
	req.AwardedBy = awardedBy
	req.ChatID = chatID
	req.MessageID = &msgID

	h.finishAward(ctx, chatID, req, member.DisplayName())
}

// HandleAwardTeam — команда !начислитькоманде. Начисляет баллы команде;
// право актора проверяет движок.
func (h *Handler) HandleAwardTeam(ctx context.Context, chatID, awardedBy int64, messageID int, args []string) {
	if len(args) < 3 {
		h.sendMessage(chatID, "Использование: !начислитькоманде <команда> <активность>[:<подактивность>] <значение>[/<макс>] [комментарий]")
		return
	}

	team, err := h.teamService.GetByName(ctx, args[0])
	if err != nil {
		h.sendMessage(chatID, "❌ Не знаю такой команды")
		return
	}

	req, ok := h.buildRequest(ctx, chatID, args[1], args[2], args[3:])
	if !ok {
		return
	}
	msgID := int64(messageID)
	req.TeamID = &team.ID
	req.AwardedBy = awardedBy
	req.ChatID = chatID
	req.MessageID = &msgID

	h.finishAward(ctx, chatID, req, "команде «"+team.Name+"»")
}

// buildRequest разбирает активность[:подактивность] и значение[/макс].
func (h *Handler) buildRequest(ctx context.Context, chatID int64, activityArg, valueArg string, rest []string) (CreateRequest, bool) {
	activityName, subActivity, _ := strings.Cut(activityArg, ":")
	activity, err := h.activityDir.GetByName(ctx, activityName)
	if err != nil {
		h.sendMessage(chatID, "❌ Не знаю такой активности. Список: !активности")
		return CreateRequest{}, false
	}

	value, maxPossible, err := parseValue(valueArg)
	if err != nil {
		h.sendMessage(chatID, "❌ Значение задаётся как 85 или 85/100")
		return CreateRequest{}, false
	}

	return CreateRequest{
		ActivityID:  activity.ID,
		SubActivity: subActivity,
		Value:       value,
		MaxPossible: maxPossible,
		Comment:     strings.Join(rest, " "),
	}, true
}

func (h *Handler) finishAward(ctx context.Context, chatID int64, req CreateRequest, subjectName string) {
	rec, err := h.service.Create(ctx, req)
	if err != nil {
		h.sendMessage(chatID, awardErrorText(err))
		return
	}

	text := fmt.Sprintf("✅ %s: %s (норм. %d)", subjectName, common.FormatPoints(rec.Value), rec.NormalizedScore)
	if rec.Status == StatusPending {
		text += "\n⏳ Оценка ждёт одобрения ревьюера"
	}
	h.sendMessage(chatID, text)
}

// parseValue разбирает "85" или "85/100". Без явного максимума шкала 0–100.
func parseValue(raw string) (value, maxPossible float64, err error) {
	valuePart, maxPart, hasMax := strings.Cut(raw, "/")
	value, err = strconv.ParseFloat(valuePart, 64)
	if err != nil {
		return 0, 0, err
	}
	maxPossible = 100
	if hasMax {
		maxPossible, err = strconv.ParseFloat(maxPart, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	return value, maxPossible, nil
}

// HandleMyScore — команда !очки [период]. Сводка по себе.
func (h *Handler) HandleMyScore(ctx context.Context, chatID, userID int64, args []string) {
	period := common.PeriodAll
	if len(args) > 0 {
		p, err := common.ParsePeriod(args[0])
		if err != nil {
			h.sendMessage(chatID, "❌ Неизвестный период. Варианты: день, неделя, месяц, год")
			return
		}
		period = p
	}

	summary, err := h.service.Dashboard(ctx, SubjectRef{UserID: &userID}, period)
	if err != nil {
		log.WithError(err).Error("Ошибка сводки оценок")
		h.sendMessage(chatID, "❌ Не удалось получить сводку")
		return
	}

	text := fmt.Sprintf("📊 Твои очки: %s (норм. %d), %d %s",
		common.FormatPoints(summary.TotalScore),
		summary.TotalNormalizedScore,
		summary.ApprovedCount,
		common.PluralizeScores(summary.ApprovedCount))
	if summary.PendingCount > 0 {
		text += fmt.Sprintf("\n⏳ На модерации: %d", summary.PendingCount)
	}
	h.sendMessage(chatID, text)
}

// HandleHistory — команда !история. Последние оценки участника.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	records, err := h.service.History(ctx, Filter{UserID: &userID}, h.cfg.ScoreHistoryLimit)
	if err != nil {
		log.WithError(err).Error("Ошибка истории оценок")
		h.sendMessage(chatID, "❌ Не удалось получить историю")
		return
	}
	if len(records) == 0 {
		h.sendMessage(chatID, "У тебя пока нет оценок")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Последние оценки:\n\n")
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("%s #%d — %s (норм. %d), %s\n",
			statusEmoji(rec.Status), rec.ID,
			common.FormatPoints(rec.Value), rec.NormalizedScore,
			common.FormatDateTime(rec.CreatedAt)))
		if rec.Status == StatusRejected && rec.RejectionReason != "" {
			sb.WriteString(fmt.Sprintf("   🚫 %s\n", rec.RejectionReason))
		}
	}
	h.sendMessage(chatID, sb.String())
}

func statusEmoji(s Status) string {
	switch s {
	case StatusApproved:
		return "✅"
	case StatusPending:
		return "⏳"
	case StatusRejected:
		return "🚫"
	case StatusDisputed:
		return "⚖️"
	default:
		return "•"
	}
}

func awardErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrDuplicateScore):
		return "❌ За эту активность уже начислено. Поправить можно через ревьюера"
	case errors.Is(err, common.ErrUnknownSubActivity):
		return "❌ Такой подактивности нет у этой активности"
	case errors.Is(err, common.ErrForbidden):
		return "❌ Недостаточно прав для начисления"
	case errors.Is(err, common.ErrBadRequest):
		return fmt.Sprintf("❌ %s", err.Error())
	case errors.Is(err, common.ErrNotFound):
		return fmt.Sprintf("❌ %s", err.Error())
	default:
		log.WithError(err).Error("Ошибка начисления")
		return "❌ Не получилось начислить, попробуйте ещё раз"
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
