package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio_tracker/internal/app/service"
	dex_client "portfolio_tracker/internal/client"
	"portfolio_tracker/internal/infrastructure/configloader"
	"portfolio_tracker/internal/infrastructure/restapi"
	"portfolio_tracker/internal/infrastructure/storage"
	"portfolio_tracker/internal/pkg/logger"
	"portfolio_tracker/internal/pkg/metrics"
	"portfolio_tracker/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yml"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf(".env not loaded: %v", err)
	}

	// Загрузка конфигурации
	cfgPath := utils.GetEnv("CONFIG_PATH", defaultConfigPath)
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		logrus.Fatalf("Не удалось инициализировать zapLogger: %v", err)
	}
	defer zapLogger.Sync()
	logger.InitSlog(zapLogger)

	logger.Info("Трекер портфеля запускается...", "config", cfgPath)

	if cfg.Metrics.Enabled {
		metrics.MustRegisterMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateStorage, closeStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Не удалось открыть хранилище состояния", "backend", cfg.Storage.Backend, "ошибка", err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Error("Ошибка при закрытии хранилища", "ошибка", err)
		}
	}()

	dexscreenerAPIClient := dex_client.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		cfg.DEXScreener.RequestTimeout(),
		zapLogger,
		cfg.DEXScreener.RateLimitPerSecond,
		cfg.DEXScreener.RateLimitBurst,
	)
	tokenDataService := service.NewTokenDataService(dexscreenerAPIClient, logger.NewSlogAdapter("TokenDataService"))

	store := service.NewPortfolioStore(stateStorage, logger.NewSlogAdapter("PortfolioStore"))
	if err := store.Restore(ctx); err != nil {
		logger.Fatal("Не удалось восстановить портфель", "ошибка", err)
	}

	scheduler := service.NewTokenUpdateScheduler(
		tokenDataService,
		store,
		store,
		stateStorage,
		logger.NewSlogAdapter("TokenUpdateScheduler"),
		service.SchedulerConfig{
			Interval:  cfg.Updater.Interval,
			BatchSize: cfg.Updater.BatchSize,
			Retention: cfg.Updater.BookkeepingRetention,
		},
	)
	if err := scheduler.Restore(ctx); err != nil {
		// без истории обновлений все токены просто считаются устаревшими
		logger.Warn("Не удалось восстановить историю обновлений", "ошибка", err)
	}

	trigger := service.NewUpdateTrigger(store, scheduler, logger.NewSlogAdapter("UpdateTrigger"))
	triggerDone := make(chan struct{})
	go func() {
		defer close(triggerDone)
		_ = trigger.Run(ctx)
	}()

	portfolioService := service.NewPortfolioService(store, tokenDataService, logger.NewSlogAdapter("PortfolioService"))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := restapi.SetupRouter(restapi.NewPortfolioHandler(portfolioService), cfg, zapLogger)

	serverAddr := cfg.Server.Port
	if !strings.Contains(serverAddr, ":") {
		serverAddr = fmt.Sprintf(":%s", serverAddr)
	}
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("Запуск HTTP сервера", "адрес", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Не удалось запустить HTTP сервер", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал завершения. Завершение работы HTTP сервера...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при Graceful Shutdown HTTP сервера", "ошибка", err)
	}

	<-triggerDone
	scheduler.Wait()
	logger.Info("Трекер портфеля остановлен.")
}
