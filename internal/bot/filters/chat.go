// Package filters ограничивает, откуда бот принимает сообщения:
// чат клуба и личка участников клуба.
package filters

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/features/members"
)

// ChatFilter пропускает сообщения из чата клуба и из лички участников.
type ChatFilter struct {
	clubChatID    int64
	memberService *members.Service
	bot           *tgbotapi.BotAPI
}

// NewChatFilter создаёт фильтр чатов.
func NewChatFilter(clubChatID int64, memberService *members.Service, bot *tgbotapi.BotAPI) *ChatFilter {
	return &ChatFilter{
		clubChatID:    clubChatID,
		memberService: memberService,
		bot:           bot,
	}
}

// CheckAccess решает, обрабатывать ли сообщение.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		// Сервисные сообщения и посты каналов
		return false
	}
	if f.clubChatID == 0 {
		log.WithField("component", "ChatFilter").Error("clubChatID is 0 (config bug)")
		return false
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	logger := log.WithFields(log.Fields{
		"component":    "ChatFilter",
		"chat_id":      chatID,
		"user_id":      userID,
		"club_chat_id": f.clubChatID,
	})

	// 1) Чат клуба
	if chatID == f.clubChatID {
		return true
	}

	// 2) Личка: сначала быстро по БД
	if message.Chat.IsPrivate() {
		isMember, err := f.memberService.IsMember(ctx, userID)
		if err != nil {
			logger.WithError(err).Error("Ошибка проверки участника (БД)")
			return false
		}
		if isMember {
			return true
		}

		// 2.1) БД не знает пользователя: спрашиваем Telegram
		cm, err := f.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: f.clubChatID,
				UserID: userID,
			},
		})
		if err != nil {
			logger.WithError(err).Error("Ошибка проверки участника (Telegram)")
			return false
		}

		switch cm.Status {
		case "creator", "administrator", "member", "restricted":
			if err := f.memberService.EnsureMember(
				ctx, userID,
				message.From.UserName,
				message.From.FirstName,
				message.From.LastName,
			); err != nil {
				logger.WithError(err).Warn("Не удалось дозаписать участника в БД (пропускаем всё равно)")
			}
			logger.WithField("tg_status", cm.Status).Info("Доступ: личка участника чата")
			return true

		default:
			logger.WithField("tg_status", cm.Status).Info("Отказ: не участник чата клуба")
			msg := tgbotapi.NewMessage(chatID, "❌ Бот работает только для участников чата клуба")
			if _, sendErr := f.bot.Send(msg); sendErr != nil {
				logger.WithError(sendErr).Warn("Не удалось отправить отказ")
			}
			return false
		}
	}

	// 3) Остальные чаты игнорируем
	return false
}
