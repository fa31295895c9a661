// handlers.go обрабатывает команды !топ и !топкоманд.
package rankings

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/common"
)

// Handler обрабатывает команды рейтингов в чате.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик рейтингов.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleTop — команда !топ [период]. Личный рейтинг за период
// (по умолчанию — за всё время).
func (h *Handler) HandleTop(ctx context.Context, chatID int64, args []string) {
	h.handleScope(ctx, chatID, args, ScopeIndividual, "🏆 Топ участников")
}

// HandleTeamTop — команда !топкоманд [период]. Командный рейтинг.
func (h *Handler) HandleTeamTop(ctx context.Context, chatID int64, args []string) {
	h.handleScope(ctx, chatID, args, ScopeTeam, "🚩 Топ команд")
}

func (h *Handler) handleScope(ctx context.Context, chatID int64, args []string, scope Scope, title string) {
	period := common.PeriodAll
	if len(args) > 0 {
		p, err := common.ParsePeriod(args[0])
		if err != nil {
			h.sendMessage(chatID, "❌ Неизвестный период. Варианты: день, неделя, месяц, год")
			return
		}
		period = p
	}

	result, err := h.service.Get(ctx, Query{Scope: scope, Period: period})
	if err != nil {
		log.WithError(err).Error("Ошибка построения рейтинга")
		h.sendMessage(chatID, "❌ Не удалось построить рейтинг")
		return
	}
	if len(result.Rows) == 0 {
		h.sendMessage(chatID, "Пока нет одобренных оценок за этот период 🤷")
		return
	}

	var sb strings.Builder
	sb.WriteString(title + " " + periodLabel(period) + ":\n\n")
	for _, row := range result.Rows {
		sb.WriteString(fmt.Sprintf("%s %s — %d (%s, %d %s)\n",
			medal(row.Rank),
			row.Name,
			row.TotalNormalizedScore,
			common.FormatPoints(row.TotalScore),
			row.ScoreCount,
			common.PluralizeScores(row.ScoreCount),
		))
	}
	h.sendMessage(chatID, sb.String())
}

func periodLabel(p common.Period) string {
	switch p {
	case common.PeriodDay:
		return "за день"
	case common.PeriodWeek:
		return "за неделю"
	case common.PeriodMonth:
		return "за месяц"
	case common.PeriodYear:
		return "за год"
	default:
		return "за всё время"
	}
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
