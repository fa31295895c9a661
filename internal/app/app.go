// Package app инициализирует все компоненты платформы.
// app.go — точка сборки: создаёт пулы БД и Redis, репозитории, сервисы,
// обработчики, REST-сервер, WebSocket-хаб и собирает всё в один объект.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/api"
	"scorebot/internal/auth"
	"scorebot/internal/bot"
	"scorebot/internal/bot/filters"
	"scorebot/internal/config"
	"scorebot/internal/db/postgres"
	"scorebot/internal/db/redisdb"
	"scorebot/internal/features/activities"
	"scorebot/internal/features/admin"
	"scorebot/internal/features/members"
	"scorebot/internal/features/rankings"
	"scorebot/internal/features/scores"
	"scorebot/internal/features/teams"
	"scorebot/internal/features/timers"
	"scorebot/internal/jobs"
	"scorebot/internal/notify"
	"scorebot/internal/ws"
)

// App содержит все компоненты платформы.
type App struct {
	Bot       *bot.Bot
	API       *api.Server
	Scheduler *jobs.Scheduler
	Hub       *ws.Hub
	DB        *pgxpool.Pool
	Redis     *redis.Client
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Redis (кэш рейтингов, опционален) ===
	var redisClient *redis.Client
	if cfg.FeatureRankingsCache {
		redisClient = redisdb.NewClient(ctx, cfg)
	}

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 4. Репозитории ===
	memberRepo := members.NewRepository(pool)
	teamRepo := teams.NewRepository(pool)
	activityRepo := activities.NewRepository(pool)
	scoreRepo := scores.NewRepository(pool, memberRepo, teamRepo)
	timerRepo := timers.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 5. Сервисы ===
	memberService := members.NewService(memberRepo)
	teamService := teams.NewService(teamRepo, cfg)
	activityService := activities.NewService(activityRepo)

	rankingService := rankings.NewService(
		scoreRepo, memberRepo, teamRepo,
		redisClient, cfg.RankingsCacheTTL,
		cfg.RankingsDefaultLimit, cfg.RankingsMaxLimit,
	)

	hub := ws.NewHub()
	dispatcher := notify.NewDispatcher(botAPI, hub, &rankingsInvalidator{svc: rankingService})

	scoreService := scores.NewService(
		scoreRepo, activityService, memberService, teamService,
		&authorizer{teams: teamService, members: memberService, cfg: cfg},
		dispatcher, cfg,
	)
	adminService := admin.NewService(adminRepo, scoreService, cfg)
	timerService := timers.NewService(timerRepo, dispatcher, cfg)

	// === 6. Обработчики ===
	handlers := bot.Handlers{
		Scores:     scores.NewHandler(scoreService, activityService, memberService, teamService, botAPI, cfg),
		Rankings:   rankings.NewHandler(rankingService, botAPI),
		Teams:      teams.NewHandler(teamService, botAPI),
		Activities: activities.NewHandler(activityService, botAPI, cfg),
		Timers:     timers.NewHandler(timerService, botAPI),
		Admin:      admin.NewHandler(adminService, memberService, botAPI, cfg.ScoreHistoryLimit),
	}

	// === 7. Фильтры и бот ===
	chatFilter := filters.NewChatFilter(cfg.ClubChatID, memberService, botAPI)
	b := bot.New(botAPI, cfg, memberService, handlers, chatFilter)

	// === 8. REST API ===
	var apiServer *api.Server
	if cfg.APIEnabled {
		jwtResolver := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTTTL)
		tgResolver := auth.NewTelegramResolver(cfg.TelegramBotToken, cfg.JWTTTL, isReviewerFn(cfg, memberService))
		resolver := auth.NewChain(tgResolver, jwtResolver)
		apiServer = api.NewServer(cfg, scoreService, rankingService, activityService, resolver, jwtResolver, hub)
	}

	// === 9. Планировщик задач ===
	var sweeper jobs.TimerSweeper
	if cfg.FeatureTimersEnabled {
		sweeper = timerService
	}
	scheduler, err := jobs.NewScheduler(cfg.AppTimezone, sweeper, scoreRepo)
	if err != nil {
		return nil, fmt.Errorf("ошибка планировщика: %w", err)
	}

	return &App{
		Bot:       b,
		API:       apiServer,
		Scheduler: scheduler,
		Hub:       hub,
		DB:        pool,
		Redis:     redisClient,
		BotAPI:    botAPI,
	}, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.Hub.Close()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.DB.Close()
}

// authorizer — авторизационный коллаборатор движка оценок.
type authorizer struct {
	teams   *teams.Service
	members *members.Service
	cfg     *config.Config
}

// CanActFor — командные оценки начисляет капитан или состав команды.
func (a *authorizer) CanActFor(ctx context.Context, actorID, teamID int64) (bool, error) {
	if a.cfg.IsGlobalAdmin(actorID) {
		return true, nil
	}
	return a.teams.CanActFor(ctx, actorID, teamID)
}

// CanReview — одобряют глобальные админы и участники с флагом is_admin.
func (a *authorizer) CanReview(ctx context.Context, actorID int64) (bool, error) {
	if a.cfg.IsGlobalAdmin(actorID) {
		return true, nil
	}
	m, err := a.members.GetByUserID(ctx, actorID)
	if err != nil {
		return false, nil
	}
	return m.IsAdmin, nil
}

// rankingsInvalidator адаптирует сервис рейтингов под notify.CacheInvalidator.
type rankingsInvalidator struct {
	svc *rankings.Service
}

func (r *rankingsInvalidator) InvalidateRankings() {
	r.svc.Invalidate(context.Background())
}

func isReviewerFn(cfg *config.Config, memberService *members.Service) func(int64) bool {
	return func(userID int64) bool {
		if cfg.IsGlobalAdmin(userID) {
			return true
		}
		m, err := memberService.GetByUserID(context.Background(), userID)
		return err == nil && m.IsAdmin
	}
}
