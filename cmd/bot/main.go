// Package main — точка входа платформы.
// Загружает конфигурацию, инициализирует приложение и запускает бота,
// REST API и планировщик. Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/app"
	"scorebot/internal/config"
)

func main() {
	// .env нужен только для локальной разработки; в Docker переменные
	// приходят из окружения
	_ = godotenv.Load()

	setupLogging()

	log.Info("=== Платформа запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	if err := application.Scheduler.Start(); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	if application.API != nil {
		go func() {
			if err := application.API.Run(); err != nil {
				log.WithError(err).Error("REST API остановился с ошибкой")
			}
		}()
	}

	go application.Bot.Start(ctx)

	log.Info("=== Платформа готова к работе ===")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("Получен сигнал %s, останавливаемся...", sig)

	cancel()

	if application.API != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := application.API.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("REST API не остановился корректно")
		}
	}

	log.Info("=== Платформа остановлена ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
