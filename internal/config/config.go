// Package config загружает конфигурацию сервиса из переменных окружения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"drowsiness-service/internal/analysis"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr    string `validate:"required"`
	RedisAddr     string `validate:"required"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	WorkerCount   int `validate:"gt=0"`
	BufferSize    int `validate:"gt=0"`
	ResultHistory int `validate:"gt=0"`

	SessionIdleTimeout time.Duration `validate:"gt=0"`
	PerclosWindow      time.Duration `validate:"gt=0"`

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Analyzer analysis.Config
}

var validate = validator.New()

// Load читает .env (если есть) и переменные окружения
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	defaults := analysis.DefaultConfig()

	cfg := Config{
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		WorkerCount:        getEnvInt("WORKER_COUNT", runtime.NumCPU()),
		BufferSize:         getEnvInt("BUFFER_SIZE", 10000),
		ResultHistory:      getEnvInt("RESULT_HISTORY", 1000),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		PerclosWindow:      getEnvDuration("PERCLOS_WINDOW", analysis.DefaultPerclosWindow),
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		Analyzer: analysis.Config{
			EarClosedThreshold:    getEnvFloat("EAR_CLOSED_THRESHOLD", defaults.EarClosedThreshold),
			EarSmoothingAlpha:     getEnvFloat("EAR_SMOOTHING_ALPHA", defaults.EarSmoothingAlpha),
			NodAmplitudeThreshold: getEnvFloat("NOD_AMPLITUDE_THRESHOLD", defaults.NodAmplitudeThreshold),
			NodReleaseThreshold:   getEnvFloat("NOD_RELEASE_THRESHOLD", defaults.NodReleaseThreshold),
			NodMaxDurationMs:      int64(getEnvInt("NOD_MAX_DURATION_MS", int(defaults.NodMaxDurationMs))),
			NodBaselineAlpha:      getEnvFloat("NOD_BASELINE_ALPHA", defaults.NodBaselineAlpha),
			NodMeasureAlpha:       getEnvFloat("NOD_MEASURE_ALPHA", defaults.NodMeasureAlpha),
			NodPolarity:           analysis.Polarity(strings.ToUpper(getEnv("NOD_POLARITY", string(defaults.NodPolarity)))),
		},
	}

	if err := cfg.Analyzer.Validate(); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
