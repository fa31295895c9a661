// Package bot содержит главный модуль бота — запуск polling, маршрутизацию
// команд и остановку.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/bot/filters"
	"scorebot/internal/bot/middleware"
	"scorebot/internal/config"
	"scorebot/internal/features/activities"
	"scorebot/internal/features/admin"
	"scorebot/internal/features/members"
	"scorebot/internal/features/rankings"
	"scorebot/internal/features/scores"
	"scorebot/internal/features/teams"
	"scorebot/internal/features/timers"
)

// Handlers собирает обработчики всех фич — чтобы конструктор бота
// не принимал дюжину позиционных аргументов.
type Handlers struct {
	Scores     *scores.Handler
	Rankings   *rankings.Handler
	Teams      *teams.Handler
	Activities *activities.Handler
	Timers     *timers.Handler
	Admin      *admin.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	memberService *members.Service
	handlers      Handlers

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	handlers Handlers,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		chatFilter:    chatFilter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		memberService: memberService,
		handlers:      handlers,
		parser:        NewCommandParser(),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram. Блокирует до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.rateLimiter.Close()
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Событие вступления новых участников
	if update.Message != nil && update.Message.NewChatMembers != nil {
		if update.Message.Chat != nil && update.Message.Chat.ID == b.cfg.ClubChatID {
			b.handleNewMembers(ctx, update.Message.NewChatMembers)
		}
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(ctx, message) {
		return
	}

	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// EnsureMember — ошибки нельзя игнорировать, иначе потом будет "оно не работает"
	if err := b.memberService.EnsureMember(ctx, userID,
		message.From.UserName, message.From.FirstName, message.From.LastName,
	); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureMember failed")
	}

	// В личке сначала пробуем панель ревьюера
	if message.Chat.IsPrivate() {
		if b.handlers.Admin.HandleMessage(ctx, chatID, userID, message.Text) {
			return
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}

	b.routeCommand(ctx, chatID, userID, message.MessageID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, messageID int, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, helpText)

	// --- оценки ---
	case "начислить":
		b.handlers.Scores.HandleAward(ctx, chatID, userID, messageID, args)
	case "начислитькоманде":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Scores.HandleAwardTeam(ctx, chatID, userID, messageID, args)
		}
	case "очки":
		b.handlers.Scores.HandleMyScore(ctx, chatID, userID, args)
	case "история":
		b.handlers.Scores.HandleHistory(ctx, chatID, userID)

	// --- рейтинги ---
	case "топ":
		b.handlers.Rankings.HandleTop(ctx, chatID, args)
	case "топкоманд":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Rankings.HandleTeamTop(ctx, chatID, args)
		}

	// --- команды ---
	case "новакоманда":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Teams.HandleCreate(ctx, chatID, userID, args)
		}
	case "вступить":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Teams.HandleJoin(ctx, chatID, userID, args)
		}
	case "покинуть":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Teams.HandleLeave(ctx, chatID, userID, args)
		}
	case "команды":
		if b.cfg.FeatureTeamsEnabled {
			b.handlers.Teams.HandleList(ctx, chatID)
		}

	// --- активности ---
	case "активности":
		b.handlers.Activities.HandleList(ctx, chatID)
	case "новаяактивность":
		b.handlers.Activities.HandleCreate(ctx, chatID, userID, args)

	// --- таймеры ---
	case "таймер":
		if b.cfg.FeatureTimersEnabled {
			b.handlers.Timers.HandleCreate(ctx, chatID, userID, args)
		}
	case "таймеры":
		if b.cfg.FeatureTimersEnabled {
			b.handlers.Timers.HandleList(ctx, chatID)
		}
	case "таймерстоп":
		if b.cfg.FeatureTimersEnabled {
			b.handlers.Timers.HandleCancel(ctx, chatID, userID, args)
		}
	}
}

const helpText = `Команды:
!начислить @ник <активность> <значение>[/<макс>] — начислить баллы
!очки [период] — твоя сводка
!история — твои последние оценки
!топ [период] / !топкоманд [период] — рейтинги
!команды, !новакоманда, !вступить, !покинуть — команды клуба
!активности — за что начисляют
!таймер <имя> <длительность>, !таймеры, !таймерстоп — таймеры
Ревьюерам: панель в личке бота`

// handleNewMembers обрабатывает вступление новых участников.
func (b *Bot) handleNewMembers(ctx context.Context, newMembers []tgbotapi.User) {
	for _, user := range newMembers {
		if user.IsBot {
			continue
		}
		if err := b.memberService.HandleNewMember(ctx, user.ID, user.UserName, user.FirstName, user.LastName); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("HandleNewMember failed")
			continue
		}
		log.WithField("user", user.UserName).Info("Новый участник обработан")
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
