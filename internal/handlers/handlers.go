// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"drowsiness-service/internal/cache"
	"drowsiness-service/internal/metrics"
	"drowsiness-service/internal/models"
	"drowsiness-service/internal/session"
	"drowsiness-service/internal/stream"
)

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	sessions  *session.Manager
	cache     *cache.RedisCache
	hub       *stream.Hub
	log       *logrus.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик. cache может быть nil.
func NewHandler(sessions *session.Manager, cache *cache.RedisCache, hub *stream.Hub, logger *logrus.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		cache:     cache,
		hub:       hub,
		log:       logger,
		startTime: time.Now(),
	}
}

// Deliver раздает результат кадра: метрики, кэш, подписчики
func (h *Handler) Deliver(ctx context.Context, result models.FrameResult) {
	metrics.ObserveFrame(result)

	if h.cache != nil {
		if err := h.cache.CacheResult(ctx, result); err != nil {
			metrics.CacheMisses.Inc()
			h.log.WithFields(logrus.Fields{
				"session_id": result.SessionID,
				"error":      err.Error(),
			}).Warn("[handlers.Deliver] failed to cache result")
		} else {
			metrics.CacheHits.Inc()
		}
	}

	if h.hub != nil {
		if err := h.hub.Publish(result); err != nil {
			h.log.WithField("error", err.Error()).Warn("[handlers.Deliver] failed to publish result")
		}
	}

	if result.IsNodEvent {
		h.log.WithFields(logrus.Fields{
			"session_id": result.SessionID,
			"total_nods": result.TotalNods,
		}).Info("Nod detected")
	}
}

// CreateSessionHandler обрабатывает POST /sessions
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/sessions", r.Method))
	defer timer.ObserveDuration()

	var req models.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			metrics.RequestsTotal.WithLabelValues("/sessions", r.Method, "400").Inc()
			return
		}
	}

	info, err := h.sessions.Create(req.Source)
	if err != nil {
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		metrics.RequestsTotal.WithLabelValues("/sessions", r.Method, "500").Inc()
		return
	}
	metrics.ActiveSessions.Set(float64(h.sessions.Len()))

	h.saveSession(r.Context(), info)

	metrics.RequestsTotal.WithLabelValues("/sessions", r.Method, "201").Inc()
	h.respondJSON(w, info, http.StatusCreated)
}

// ListSessionsHandler обрабатывает GET /sessions
func (h *Handler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/sessions", r.Method, "200").Inc()
	h.respondJSON(w, h.sessions.List(), http.StatusOK)
}

// GetSessionHandler обрабатывает GET /sessions/{id}.
// Сессию, которой нет в памяти, ищет в кэше: последнее сохраненное описание.
func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := h.sessions.Info(id)
	if errors.Is(err, session.ErrSessionNotFound) && h.cache != nil {
		if stored, found, cacheErr := h.cache.GetSession(r.Context(), id); cacheErr == nil && found {
			info, err = stored, nil
		}
	}
	if err != nil {
		h.respondSessionError(w, r, "/sessions/{id}", err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}", r.Method, "200").Inc()
	h.respondJSON(w, info, http.StatusOK)
}

// DeleteSessionHandler обрабатывает DELETE /sessions/{id}
func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Delete(id); err != nil {
		h.respondSessionError(w, r, "/sessions/{id}", err)
		return
	}
	h.forget(r.Context(), id)

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}", r.Method, "204").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// ResetSessionHandler обрабатывает POST /sessions/{id}/reset
func (h *Handler) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Reset(id); err != nil {
		h.respondSessionError(w, r, "/sessions/{id}/reset", err)
		return
	}

	info, err := h.sessions.Info(id)
	if err != nil {
		h.respondSessionError(w, r, "/sessions/{id}/reset", err)
		return
	}
	h.saveSession(r.Context(), info)

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}/reset", r.Method, "200").Inc()
	h.respondJSON(w, info, http.StatusOK)
}

// FrameHandler обрабатывает POST /sessions/{id}/frames - синхронный анализ кадра
func (h *Handler) FrameHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/sessions/{id}/frames", r.Method))
	defer timer.ObserveDuration()

	var frame models.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames", r.Method, "400").Inc()
		return
	}

	start := time.Now()
	result, err := h.sessions.ProcessSync(mux.Vars(r)["id"], frame)
	if err != nil {
		h.respondSessionError(w, r, "/sessions/{id}/frames", err)
		return
	}
	metrics.AnalysisLatency.Observe(time.Since(start).Seconds())

	h.Deliver(r.Context(), result)

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames", r.Method, "200").Inc()
	h.respondJSON(w, result, http.StatusOK)
}

// BatchFramesHandler обрабатывает POST /sessions/{id}/frames/batch - кадры по порядку
func (h *Handler) BatchFramesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/sessions/{id}/frames/batch", r.Method))
	defer timer.ObserveDuration()

	var batch models.FrameBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames/batch", r.Method, "400").Inc()
		return
	}

	id := mux.Vars(r)["id"]
	results := make([]models.FrameResult, 0, len(batch.Frames))
	nodEvents, alarms := 0, 0

	for _, frame := range batch.Frames {
		start := time.Now()
		result, err := h.sessions.ProcessSync(id, frame)
		if err != nil {
			h.respondSessionError(w, r, "/sessions/{id}/frames/batch", err)
			return
		}
		metrics.AnalysisLatency.Observe(time.Since(start).Seconds())

		h.Deliver(r.Context(), result)
		results = append(results, result)

		if result.IsNodEvent {
			nodEvents++
		}
		if result.Alarm {
			alarms++
		}
	}

	response := map[string]interface{}{
		"processed":  len(batch.Frames),
		"nod_events": nodEvents,
		"alarms":     alarms,
		"results":    results,
	}

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames/batch", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// AsyncFrameHandler обрабатывает POST /sessions/{id}/frames/async - постановка в очередь
func (h *Handler) AsyncFrameHandler(w http.ResponseWriter, r *http.Request) {
	var frame models.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames/async", r.Method, "400").Inc()
		return
	}

	if err := h.sessions.Submit(mux.Vars(r)["id"], frame); err != nil {
		if errors.Is(err, session.ErrQueueFull) {
			metrics.FramesDropped.Inc()
			if h.cache != nil {
				_, _ = h.cache.IncrementCounter(r.Context(), cache.FramesDroppedKey)
			}
		}
		h.respondSessionError(w, r, "/sessions/{id}/frames/async", err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}/frames/async", r.Method, "202").Inc()
	h.respondJSON(w, map[string]string{"status": "queued"}, http.StatusAccepted)
}

// LatestResultsHandler возвращает последние результаты сессии из кэша
func (h *Handler) LatestResultsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/sessions/{id}/results/latest", r.Method))
	defer timer.ObserveDuration()

	count := int64(50)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= 1000 {
			count = c
		}
	}

	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues("/sessions/{id}/results/latest", r.Method, "503").Inc()
		return
	}

	id := mux.Vars(r)["id"]
	results := []models.FrameResult{}
	var err error
	if count == 1 {
		var latest models.FrameResult
		var found bool
		latest, found, err = h.cache.GetLatestResult(r.Context(), id)
		if found {
			results = []models.FrameResult{latest}
		}
	} else {
		results, err = h.cache.GetLatestResults(r.Context(), id, count)
	}
	if err != nil {
		h.respondError(w, "Failed to get results: "+err.Error(), http.StatusInternalServerError)
		metrics.RequestsTotal.WithLabelValues("/sessions/{id}/results/latest", r.Method, "500").Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues("/sessions/{id}/results/latest", r.Method, "200").Inc()
	h.respondJSON(w, results, http.StatusOK)
}

// StreamHandler обрабатывает GET /sessions/{id}/stream и GET /stream
func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id != "" {
		if _, err := h.sessions.Get(id); err != nil {
			h.respondSessionError(w, r, "/sessions/{id}/stream", err)
			return
		}
	}

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	if err := h.hub.ServeWS(w, r, id); err != nil {
		h.log.WithFields(logrus.Fields{
			"session_id": id,
			"error":      err.Error(),
		}).Warn("[handlers.StreamHandler] websocket closed with error")
	}
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.cache != nil && h.cache.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	response := models.StatsResponse{
		ActiveSessions: h.sessions.Len(),
		QueuedFrames:   h.sessions.QueueLength(),
	}
	if h.hub != nil {
		response.StreamClients = h.hub.ClientCount()
	}

	if h.cache != nil {
		response.TotalFrames, _ = h.cache.GetCounter(r.Context(), cache.FramesTotalKey)
		response.TotalNods, _ = h.cache.GetCounter(r.Context(), cache.NodsTotalKey)
		response.DroppedFrames, _ = h.cache.GetCounter(r.Context(), cache.FramesDroppedKey)
	} else {
		for _, info := range h.sessions.List() {
			response.TotalFrames += info.Frames
			response.TotalNods += int64(info.TotalNods)
		}
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// EvictIdle закрывает простаивающие сессии и чистит их следы
func (h *Handler) EvictIdle(ctx context.Context, maxIdle time.Duration) {
	for _, id := range h.sessions.EvictIdle(maxIdle) {
		h.forget(ctx, id)
	}
}

func (h *Handler) saveSession(ctx context.Context, info models.SessionInfo) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SaveSession(ctx, info, cache.ResultsTTL); err != nil {
		metrics.CacheMisses.Inc()
		h.log.WithFields(logrus.Fields{
			"session_id": info.ID,
			"error":      err.Error(),
		}).Warn("[handlers.saveSession] failed to cache session")
	}
}

func (h *Handler) forget(ctx context.Context, id string) {
	metrics.ForgetSession(id)
	metrics.ActiveSessions.Set(float64(h.sessions.Len()))
	if h.cache != nil {
		_ = h.cache.DeleteSession(ctx, id)
	}
}

// respondSessionError отображает ошибки менеджера сессий в HTTP статусы
func (h *Handler) respondSessionError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrQueueFull), errors.Is(err, session.ErrNotStarted), errors.Is(err, session.ErrStopped):
		status = http.StatusServiceUnavailable
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondError(w, err.Error(), status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
