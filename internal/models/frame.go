// Package models содержит структуры данных API сервиса мониторинга водителя
package models

import (
	"time"

	"drowsiness-service/internal/analysis"
)

// Frame точки лица одного кадра от внешнего детектора.
// Пустой Landmarks означает, что лицо не найдено.
type Frame struct {
	TimestampMs int64                `json:"timestamp_ms"`
	Landmarks   analysis.LandmarkSet `json:"landmarks"`
}

// FrameBatch пакет кадров одной сессии в порядке времени
type FrameBatch struct {
	Frames []Frame `json:"frames"`
}

// FrameResult результат обработки кадра в сессии
type FrameResult struct {
	SessionID    string               `json:"session_id"`
	TimestampMs  int64                `json:"timestamp_ms"`
	FaceDetected bool                 `json:"face_detected"`
	EarLeft      float64              `json:"ear_left"`
	EarRight     float64              `json:"ear_right"`
	EarAverage   float64              `json:"ear_average"`
	EyesClosed   bool                 `json:"eyes_closed"`
	IsNodEvent   bool                 `json:"is_nod_event"`
	TotalNods    int                  `json:"total_nods"`
	PitchProxy   float64              `json:"pitch_proxy"`
	Perclos      float64              `json:"perclos"`
	DriverState  analysis.DriverState `json:"driver_state"`
	Alarm        bool                 `json:"alarm"`
}

// NewFrameResult собирает результат из вывода анализатора
func NewFrameResult(sessionID string, timestampMs int64, r analysis.Result) FrameResult {
	return FrameResult{
		SessionID:    sessionID,
		TimestampMs:  timestampMs,
		FaceDetected: true,
		EarLeft:      r.EarLeft,
		EarRight:     r.EarRight,
		EarAverage:   r.EarAverage,
		EyesClosed:   r.EyesClosed,
		IsNodEvent:   r.IsNodEvent,
		TotalNods:    r.TotalNods,
		PitchProxy:   r.PitchProxy,
	}
}

// SessionInfo описание сессии мониторинга
type SessionInfo struct {
	ID          string            `json:"id"`
	Source      string            `json:"source,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	LastFrameAt time.Time         `json:"last_frame_at,omitempty"`
	Frames      int64             `json:"frames"`
	TotalNods   int               `json:"total_nods"`
	State       analysis.Snapshot `json:"state"`
	Config      analysis.Config   `json:"config"`
}

// CreateSessionRequest запрос на создание сессии
type CreateSessionRequest struct {
	Source string `json:"source,omitempty"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	ActiveSessions int   `json:"active_sessions"`
	TotalFrames    int64 `json:"total_frames"`
	TotalNods      int64 `json:"total_nods"`
	DroppedFrames  int64 `json:"dropped_frames"`
	StreamClients  int   `json:"stream_clients"`
	QueuedFrames   int   `json:"queued_frames"`
}
