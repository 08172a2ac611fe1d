// Package main запускает сервис мониторинга усталости водителя.
// Сервис реализует:
// - HTTP API для приема точек лица по сессиям
// - EAR детекцию закрытых глаз и детекцию кивков головой
// - PERCLOS за скользящее окно
// - Кэширование результатов в Redis
// - Рассылку результатов по websocket
// - Экспорт метрик в Prometheus
package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"drowsiness-service/internal/cache"
	"drowsiness-service/internal/config"
	"drowsiness-service/internal/handlers"
	"drowsiness-service/internal/log"
	"drowsiness-service/internal/metrics"
	"drowsiness-service/internal/session"
	"drowsiness-service/internal/stream"
)

func main() {
	logger := log.NewLogger()
	logger.Info("Starting Drowsiness Service...")
	logger.WithFields(logrus.Fields{
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
	}).Info("Runtime")

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Инициализируем менеджер сессий
	sessions, err := session.NewManager(cfg.Analyzer, cfg.PerclosWindow, cfg.BufferSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create session manager")
	}
	if err := sessions.Start(cfg.WorkerCount); err != nil {
		logger.WithError(err).Fatal("Failed to start session workers")
	}
	logger.Infof("Session workers started: %d", cfg.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Пробуем подключиться к Redis с повторами
	redisCache := connectRedis(ctx, cfg, logger)

	hub := stream.NewHub(logger)
	go hub.Run(ctx)

	// Создаем обработчики
	handler := handlers.NewHandler(sessions, redisCache, hub, logger)

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.Register(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	router.Use(handlers.LoggingMiddleware(logger))

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go updateMetricsLoop(ctx, handler, cfg.SessionIdleTimeout)
	go processResults(ctx, sessions, handler)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server listening on %s", cfg.ServerAddr)
		logger.Info("Endpoints:")
		logger.Info("  POST   /sessions                      - Open a session")
		logger.Info("  GET    /sessions                      - List sessions")
		logger.Info("  GET    /sessions/{id}                 - Session state")
		logger.Info("  DELETE /sessions/{id}                 - Close a session")
		logger.Info("  POST   /sessions/{id}/frames          - Analyze a frame")
		logger.Info("  POST   /sessions/{id}/frames/batch    - Analyze frames in order")
		logger.Info("  POST   /sessions/{id}/frames/async    - Queue a frame")
		logger.Info("  POST   /sessions/{id}/reset           - Reset session state")
		logger.Info("  GET    /sessions/{id}/results/latest  - Recent results")
		logger.Info("  GET    /sessions/{id}/stream          - Websocket result stream")
		logger.Info("  GET    /health                        - Health check")
		logger.Info("  GET    /stats                         - Service statistics")
		logger.Info("  GET    /prometheus                    - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Завершаем HTTP сервер
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}

	// Останавливаем воркеры, hub и фоновые циклы
	sessions.Stop()
	cancel()

	if redisCache != nil {
		redisCache.Close()
	}

	logger.Info("Server stopped")
}

// connectRedis подключается к Redis, без кэша сервис продолжает работу
func connectRedis(ctx context.Context, cfg config.Config, logger *logrus.Logger) *cache.RedisCache {
	var err error
	for i := 0; i < 5; i++ {
		var redisCache *cache.RedisCache
		redisCache, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResultHistory)
		if err == nil {
			logger.Infof("Connected to Redis at %s", cfg.RedisAddr)
			return redisCache
		}
		logger.WithError(err).Warnf("Redis connection attempt %d failed", i+1)
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	logger.WithError(err).Warn("Failed to connect to Redis, running without cache")
	return nil
}

// updateMetricsLoop периодически обновляет метрики и закрывает простаивающие сессии
func updateMetricsLoop(ctx context.Context, handler *handlers.Handler, idleTimeout time.Duration) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			handler.EvictIdle(ctx, idleTimeout)
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}

// processResults раздает результаты асинхронной обработки
func processResults(ctx context.Context, sessions *session.Manager, handler *handlers.Handler) {
	for {
		select {
		case result := <-sessions.Results():
			handler.Deliver(ctx, result)
		case <-ctx.Done():
			return
		}
	}
}
