// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drowsiness-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drowsiness_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drowsiness_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// FramesReceived количество полученных кадров
	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_frames_received_total",
			Help: "Total number of landmark frames received",
		},
	)

	// FramesWithoutFace кадры без лица или с неполным набором точек
	FramesWithoutFace = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_frames_without_face_total",
			Help: "Total number of frames skipped for missing or incomplete landmarks",
		},
	)

	// FramesDropped кадры, не поместившиеся в очередь
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_frames_dropped_total",
			Help: "Total number of async frames dropped on a full queue",
		},
	)

	// EyesClosedFrames кадры с закрытыми глазами
	EyesClosedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_eyes_closed_frames_total",
			Help: "Total number of frames classified as eyes closed",
		},
	)

	// NodEvents количество засчитанных кивков
	NodEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_nod_events_total",
			Help: "Total number of confirmed head nods",
		},
	)

	// Alarms кадры, на которых поднята тревога
	Alarms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_alarm_frames_total",
			Help: "Total number of frames that raised the alarm",
		},
	)

	// ActiveSessions количество активных сессий
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drowsiness_active_sessions",
			Help: "Number of active monitoring sessions",
		},
	)

	// EarSmoothed последнее сглаженное значение EAR
	EarSmoothed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drowsiness_ear_smoothed",
			Help: "Last smoothed eye aspect ratio per session",
		},
		[]string{"session"},
	)

	// Perclos текущий PERCLOS
	Perclos = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drowsiness_perclos",
			Help: "Current PERCLOS per session",
		},
		[]string{"session"},
	)

	// CacheHits успешные записи в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_cache_hits_total",
			Help: "Total number of successful cache operations",
		},
	)

	// CacheMisses ошибки кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drowsiness_cache_misses_total",
			Help: "Total number of failed cache operations",
		},
	)

	// StreamClients количество подписчиков websocket
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drowsiness_stream_clients",
			Help: "Number of connected result stream clients",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drowsiness_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// AnalysisLatency время выполнения анализа
	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drowsiness_analysis_latency_seconds",
			Help:    "Frame analysis latency in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)
)

// ObserveFrame обновляет метрики по результату кадра
func ObserveFrame(r models.FrameResult) {
	FramesReceived.Inc()
	if !r.FaceDetected {
		FramesWithoutFace.Inc()
		return
	}

	EarSmoothed.WithLabelValues(r.SessionID).Set(r.EarAverage)
	Perclos.WithLabelValues(r.SessionID).Set(r.Perclos)

	if r.EyesClosed {
		EyesClosedFrames.Inc()
	}
	if r.IsNodEvent {
		NodEvents.Inc()
	}
	if r.Alarm {
		Alarms.Inc()
	}
}

// ForgetSession удаляет серии метрик завершенной сессии
func ForgetSession(sessionID string) {
	EarSmoothed.DeleteLabelValues(sessionID)
	Perclos.DeleteLabelValues(sessionID)
}
