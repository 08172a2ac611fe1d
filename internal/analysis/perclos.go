package analysis

import "time"

const (
	// DefaultPerclosWindow окно расчета PERCLOS
	DefaultPerclosWindow = 30 * time.Second
	// PerclosWarningThreshold доля закрытых глаз, начиная с которой водитель сонный
	PerclosWarningThreshold = 0.15
	// PerclosDangerThreshold доля закрытых глаз, соответствующая микросну
	PerclosDangerThreshold = 0.40

	compactThreshold = 64
)

// DriverState состояние водителя по PERCLOS
type DriverState string

const (
	DriverAttentive  DriverState = "attentive"
	DriverDrowsy     DriverState = "drowsy"
	DriverMicrosleep DriverState = "microsleep"
)

type perclosSample struct {
	timestampMs int64
	closed      bool
}

// PerclosWindow считает долю кадров с закрытыми глазами (PERCLOS)
// в скользящем временном окне. Время берется из меток кадров.
type PerclosWindow struct {
	windowMs  int64
	threshold float64

	samples []perclosSample
	head    int
	closed  int
}

// NewPerclosWindow создает окно заданной длительности с порогом EAR
func NewPerclosWindow(window time.Duration, earThreshold float64) *PerclosWindow {
	return &PerclosWindow{
		windowMs:  window.Milliseconds(),
		threshold: earThreshold,
	}
}

// Add добавляет измерение EAR и удаляет вышедшие из окна
func (w *PerclosWindow) Add(timestampMs int64, ear float64) {
	closed := ear < w.threshold
	w.samples = append(w.samples, perclosSample{timestampMs: timestampMs, closed: closed})
	if closed {
		w.closed++
	}

	cutoff := timestampMs - w.windowMs
	for w.head < len(w.samples) && w.samples[w.head].timestampMs < cutoff {
		if w.samples[w.head].closed {
			w.closed--
		}
		w.head++
	}

	// Сжимаем буфер, когда вытесненная часть становится большой
	if w.head >= compactThreshold && w.head*2 >= len(w.samples) {
		n := copy(w.samples, w.samples[w.head:])
		w.samples = w.samples[:n]
		w.head = 0
	}
}

// Count возвращает количество измерений в окне
func (w *PerclosWindow) Count() int {
	return len(w.samples) - w.head
}

// Value возвращает PERCLOS в диапазоне [0,1]; 0 при менее чем двух измерениях
func (w *PerclosWindow) Value() float64 {
	count := w.Count()
	if count < 2 {
		return 0
	}
	return float64(w.closed) / float64(count)
}

// State классифицирует текущее значение PERCLOS
func (w *PerclosWindow) State() DriverState {
	return ClassifyPerclos(w.Value())
}

// Reset очищает историю измерений
func (w *PerclosWindow) Reset() {
	w.samples = w.samples[:0]
	w.head = 0
	w.closed = 0
}

// ClassifyPerclos переводит значение PERCLOS в состояние водителя
func ClassifyPerclos(perclos float64) DriverState {
	switch {
	case perclos >= PerclosDangerThreshold:
		return DriverMicrosleep
	case perclos >= PerclosWarningThreshold:
		return DriverDrowsy
	default:
		return DriverAttentive
	}
}
