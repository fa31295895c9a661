// Package redisdb подключает клиент Redis.
// Redis используется только как кэш рейтингов: платформа полностью
// работоспособна и без него, поэтому недоступность Redis — это Warn,
// а не фатальная ошибка.
package redisdb

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/config"
)

// NewClient создаёт клиент Redis и проверяет соединение.
// Если Redis недоступен — возвращает nil: кэш рейтингов просто отключается.
func NewClient(ctx context.Context, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("Redis недоступен, кэш рейтингов отключён")
		_ = client.Close()
		return nil
	}

	log.Info("Подключение к Redis установлено")
	return client
}
