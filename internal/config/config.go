// Package config загружает конфигурацию платформы из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// ID чата клуба, в котором бот принимает команды и публикует события
	ClubChatID int64 `envconfig:"CLUB_CHAT_ID" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"scorebot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (кэш рейтингов) ---
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	RankingsCacheTTL time.Duration `envconfig:"RANKINGS_CACHE_TTL" default:"30s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- REST API ---
	APIEnabled  bool          `envconfig:"API_ENABLED" default:"true"`
	APIAddr     string        `envconfig:"API_ADDR" default:":8080"`
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CORSOrigins string        `envconfig:"CORS_ORIGINS" default:"*"`

	// --- Admin (панель ревьюера) ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Scores ---
	// Статус новой оценки, если автор его не указал
	ScoreDefaultStatus string `envconfig:"SCORE_DEFAULT_STATUS" default:"approved"`
	// Лимит строк истории в ответах бота
	ScoreHistoryLimit int `envconfig:"SCORE_HISTORY_LIMIT" default:"10"`

	// --- Rankings ---
	RankingsDefaultLimit int `envconfig:"RANKINGS_DEFAULT_LIMIT" default:"10"`
	RankingsMaxLimit     int `envconfig:"RANKINGS_MAX_LIMIT" default:"100"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureTeamsEnabled  bool `envconfig:"FEATURE_TEAMS_ENABLED" default:"true"`
	FeatureTimersEnabled bool `envconfig:"FEATURE_TIMERS_ENABLED" default:"true"`
	FeatureRankingsCache bool `envconfig:"FEATURE_RANKINGS_CACHE" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.ClubChatID == 0 {
		return fmt.Errorf("CLUB_CHAT_ID не задан или равен 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.ScoreDefaultStatus != "approved" && c.ScoreDefaultStatus != "pending" {
		return fmt.Errorf("SCORE_DEFAULT_STATUS должен быть approved или pending")
	}
	if c.RankingsDefaultLimit <= 0 || c.RankingsMaxLimit < c.RankingsDefaultLimit {
		return fmt.Errorf("некорректные RANKINGS_DEFAULT_LIMIT/RANKINGS_MAX_LIMIT")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsGlobalAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsGlobalAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
