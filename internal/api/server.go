// Package api — REST-сервер платформы на gin: CRUD оценок, цикл одобрения,
// рейтинги, справочник активностей, дашборд, выпуск токенов и WebSocket-поток
// событий. Вся бизнес-логика живёт в движке оценок; здесь только транспорт —
// биндинг, аутентификация и перевод ошибок в HTTP-статусы.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/auth"
	"scorebot/internal/common"
	"scorebot/internal/config"
	"scorebot/internal/features/activities"
	"scorebot/internal/features/rankings"
	"scorebot/internal/features/scores"
	"scorebot/internal/ws"
)

// ScoreEngine — операции движка оценок, нужные API.
type ScoreEngine interface {
	Create(ctx context.Context, req scores.CreateRequest) (*scores.ScoreRecord, error)
	GetByID(ctx context.Context, id int64) (*scores.ScoreRecord, error)
	Update(ctx context.Context, id, actorID int64, patch scores.UpdatePatch) (*scores.ScoreRecord, error)
	Delete(ctx context.Context, id, actorID int64) error
	History(ctx context.Context, f scores.Filter, limit int) ([]*scores.ScoreRecord, error)
	Approve(ctx context.Context, id, reviewerID int64) (*scores.ScoreRecord, error)
	Reject(ctx context.Context, id, reviewerID int64, reason string) (*scores.ScoreRecord, error)
	Dispute(ctx context.Context, id, actorID int64) (*scores.ScoreRecord, error)
	Dashboard(ctx context.Context, subject scores.SubjectRef, period common.Period) (*scores.DashboardSummary, error)
}

// RankingSource — построение страниц рейтинга.
type RankingSource interface {
	Get(ctx context.Context, q rankings.Query) (*rankings.Result, error)
}

// ActivityCatalog — справочник активностей.
type ActivityCatalog interface {
	ListActive(ctx context.Context) ([]*activities.Activity, error)
	CreateActivity(ctx context.Context, name, description string, subActivities []string, createdBy int64) (*activities.Activity, error)
}

// TokenIssuer выпускает JWT для аутентифицированного субъекта.
type TokenIssuer interface {
	Issue(subject auth.Subject) (string, error)
}

// Server — HTTP-сервер REST API.
type Server struct {
	cfg      *config.Config
	engine   ScoreEngine
	rankings RankingSource
	catalog  ActivityCatalog
	resolver auth.Resolver
	issuer   TokenIssuer
	hub      *ws.Hub
	upgrader websocket.Upgrader

	router *gin.Engine
	srv    *http.Server
}

// NewServer собирает роутер и middleware.
func NewServer(
	cfg *config.Config,
	engine ScoreEngine,
	rankingSource RankingSource,
	catalog ActivityCatalog,
	resolver auth.Resolver,
	issuer TokenIssuer,
	hub *ws.Hub,
) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidations()

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		rankings: rankingSource,
		catalog:  catalog,
		resolver: resolver,
		issuer:   issuer,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog())
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.handleWS)

	api := router.Group("/api")
	{
		api.POST("/auth/token", s.handleIssueToken)

		authed := api.Group("", Authenticated(resolver))
		{
			authed.POST("/scores", s.handleCreateScore)
			authed.GET("/scores", s.handleListScores)
			authed.GET("/scores/:id", s.handleGetScore)
			authed.PATCH("/scores/:id", s.handleUpdateScore)
			authed.DELETE("/scores/:id", s.handleDeleteScore)
			authed.POST("/scores/:id/approve", s.handleApprove)
			authed.POST("/scores/:id/reject", s.handleReject)
			authed.POST("/scores/:id/dispute", s.handleDispute)

			authed.GET("/rankings", s.handleRankings)
			authed.GET("/activities", s.handleListActivities)
			authed.POST("/activities", s.handleCreateActivity)
			authed.GET("/dashboard", s.handleDashboard)
		}
	}

	s.router = router
	return s
}

// Router отдаёт http.Handler — нужен тестам.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run запускает сервер и блокируется до его остановки.
func (s *Server) Run() error {
	s.srv = &http.Server{
		Addr:              s.cfg.APIAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("REST API слушает %s", s.cfg.APIAddr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	origins := splitOrigins(cfg.CORSOrigins)
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-Telegram-Init-Data")
	c.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	return c
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// registerValidations добавляет доменные правила в валидатор gin'а.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	// period: day/week/month/year/all либо пусто
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		return common.Period(raw).Valid()
	})
}
