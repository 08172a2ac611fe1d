// Package session связывает анализатор сигналов с источником кадров:
// одна сессия мониторинга на одну камеру или поток.
package session

import (
	"sync"
	"time"

	"drowsiness-service/internal/analysis"
	"drowsiness-service/internal/models"
)

// Session сессия мониторинга одного водителя.
// Все обращения к анализатору сериализуются мьютексом сессии.
type Session struct {
	mu sync.Mutex

	id          string
	seq         uint64
	source      string
	createdAt   time.Time
	lastFrameAt time.Time
	frames      int64

	analyzer *analysis.Analyzer
	perclos  *analysis.PerclosWindow
}

func newSession(id string, seq uint64, source string, cfg analysis.Config, perclosWindow time.Duration, now time.Time) (*Session, error) {
	analyzer, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	return &Session{
		id:        id,
		seq:       seq,
		source:    source,
		createdAt: now,
		analyzer:  analyzer,
		perclos:   analysis.NewPerclosWindow(perclosWindow, cfg.EarClosedThreshold),
	}, nil
}

// Process анализирует кадр. Кадр без лица или с неполным набором точек
// не меняет состояние и возвращает результат с FaceDetected=false.
func (s *Session) Process(frame models.Frame, now time.Time) models.FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.lastFrameAt = now

	result, ok := s.analyzer.Update(frame.Landmarks, frame.TimestampMs)
	if !ok {
		return models.FrameResult{
			SessionID:   s.id,
			TimestampMs: frame.TimestampMs,
			TotalNods:   s.analyzer.State().NodCount,
			Perclos:     s.perclos.Value(),
			DriverState: s.perclos.State(),
		}
	}

	s.perclos.Add(frame.TimestampMs, result.EarAverage)

	fr := models.NewFrameResult(s.id, frame.TimestampMs, result)
	fr.Perclos = s.perclos.Value()
	fr.DriverState = s.perclos.State()
	fr.Alarm = result.EyesClosed || fr.DriverState == analysis.DriverMicrosleep
	return fr
}

// Reset очищает состояние анализатора и окно PERCLOS
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyzer.Reset()
	s.perclos.Reset()
}

// Info возвращает описание сессии
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.analyzer.State()
	return models.SessionInfo{
		ID:          s.id,
		Source:      s.source,
		CreatedAt:   s.createdAt,
		LastFrameAt: s.lastFrameAt,
		Frames:      s.frames,
		TotalNods:   state.NodCount,
		State:       state,
		Config:      s.analyzer.Config(),
	}
}

// lastActivity время последнего кадра или создания сессии
func (s *Session) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastFrameAt.IsZero() {
		return s.createdAt
	}
	return s.lastFrameAt
}
