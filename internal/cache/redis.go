// Package cache реализует кэширование результатов анализа в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"drowsiness-service/internal/models"
)

const (
	// LatestResultKeyPrefix префикс ключа последнего результата сессии
	LatestResultKeyPrefix = "result:latest:"
	// ResultHistoryKeyPrefix префикс списка последних результатов сессии
	ResultHistoryKeyPrefix = "results:"
	// SessionKeyPrefix префикс описания сессии
	SessionKeyPrefix = "session:"
	// FramesTotalKey счетчик обработанных кадров
	FramesTotalKey = "frames:total"
	// NodsTotalKey счетчик засчитанных кивков
	NodsTotalKey = "nods:total"
	// FramesDroppedKey счетчик кадров, не поместившихся в очередь
	FramesDroppedKey = "frames:dropped"
	// DefaultTTL время жизни записи по умолчанию
	DefaultTTL = 5 * time.Minute
	// ResultsTTL время жизни истории результатов
	ResultsTTL = 1 * time.Hour
)

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client      *redis.Client
	historySize int64
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db, historySize int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:      client,
		historySize: int64(historySize),
	}, nil
}

func latestKey(sessionID string) string {
	return LatestResultKeyPrefix + sessionID
}

func historyKey(sessionID string) string {
	return ResultHistoryKeyPrefix + sessionID
}

func sessionKey(sessionID string) string {
	return SessionKeyPrefix + sessionID
}

// CacheResult сохраняет результат кадра и обновляет счетчики
func (r *RedisCache) CacheResult(ctx context.Context, result models.FrameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, latestKey(result.SessionID), data, ResultsTTL)
	pipe.LPush(ctx, historyKey(result.SessionID), data)
	pipe.LTrim(ctx, historyKey(result.SessionID), 0, r.historySize-1)
	pipe.Expire(ctx, historyKey(result.SessionID), ResultsTTL)
	pipe.Incr(ctx, FramesTotalKey)
	if result.IsNodEvent {
		pipe.Incr(ctx, NodsTotalKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// GetLatestResults возвращает последние count результатов сессии, новые первыми
func (r *RedisCache) GetLatestResults(ctx context.Context, sessionID string, count int64) ([]models.FrameResult, error) {
	data, err := r.client.LRange(ctx, historyKey(sessionID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest results: %w", err)
	}

	results := make([]models.FrameResult, 0, len(data))
	for _, d := range data {
		var fr models.FrameResult
		if err := json.Unmarshal([]byte(d), &fr); err != nil {
			continue
		}
		results = append(results, fr)
	}
	return results, nil
}

// GetLatestResult возвращает последний результат сессии
func (r *RedisCache) GetLatestResult(ctx context.Context, sessionID string) (models.FrameResult, bool, error) {
	var fr models.FrameResult
	err := r.Get(ctx, latestKey(sessionID), &fr)
	if errors.Is(err, redis.Nil) {
		return models.FrameResult{}, false, nil
	}
	if err != nil {
		return models.FrameResult{}, false, err
	}
	return fr, true, nil
}

// SaveSession сохраняет описание сессии
func (r *RedisCache) SaveSession(ctx context.Context, info models.SessionInfo, ttl time.Duration) error {
	return r.SetWithTTL(ctx, sessionKey(info.ID), info, ttl)
}

// GetSession возвращает сохраненное описание сессии
func (r *RedisCache) GetSession(ctx context.Context, sessionID string) (models.SessionInfo, bool, error) {
	var info models.SessionInfo
	err := r.Get(ctx, sessionKey(sessionID), &info)
	if errors.Is(err, redis.Nil) {
		return models.SessionInfo{}, false, nil
	}
	if err != nil {
		return models.SessionInfo{}, false, err
	}
	return info, true, nil
}

// DeleteSession удаляет все ключи сессии
func (r *RedisCache) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID), latestKey(sessionID), historyKey(sessionID)).Err()
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// SetWithTTL устанавливает значение с TTL
func (r *RedisCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Get получает значение по ключу
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
