// Package analysis реализует покадровый анализ лицевых сигналов водителя:
// сглаженный Eye Aspect Ratio (EAR) и детекцию кивков головы
// гистерезисным автоматом по прокси наклона головы.
package analysis

import "fmt"

// NodState фаза автомата детекции кивка
type NodState int

const (
	// NodIdle кивок не выполняется
	NodIdle NodState = iota
	// NodDown кандидат на кивок
	NodDown
)

// String реализует fmt.Stringer
func (s NodState) String() string {
	switch s {
	case NodDown:
		return "down"
	default:
		return "idle"
	}
}

// MarshalText реализует encoding.TextMarshaler
func (s NodState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (s *NodState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = NodIdle
	case "down":
		*s = NodDown
	default:
		return fmt.Errorf("unknown nod state %q", text)
	}
	return nil
}

// Result результат анализа одного кадра
type Result struct {
	EarLeft    float64 `json:"ear_left"`
	EarRight   float64 `json:"ear_right"`
	EarAverage float64 `json:"ear_average"`
	EyesClosed bool    `json:"eyes_closed"`
	IsNodEvent bool    `json:"is_nod_event"`
	TotalNods  int     `json:"total_nods"`
	PitchProxy float64 `json:"pitch_proxy"`
}

// Snapshot копия внутреннего состояния анализатора
type Snapshot struct {
	EarSmoothed      float64  `json:"ear_smoothed"`
	EarSmoothedSet   bool     `json:"ear_smoothed_set"`
	NodState         NodState `json:"nod_state"`
	NodDownStartedAt int64    `json:"nod_down_started_at"`
	NodBaseline      float64  `json:"nod_baseline"`
	NodBaselineSet   bool     `json:"nod_baseline_set"`
	NodMeasure       float64  `json:"nod_measure"`
	NodMeasureSet    bool     `json:"nod_measure_set"`
	NodCount         int      `json:"nod_count"`
}

// Analyzer хранит состояние сглаживания для одного субъекта.
// Не безопасен для конкурентного использования: вызовы Update и Reset
// должны сериализоваться вызывающей стороной, timestamp не убывает.
type Analyzer struct {
	cfg Config

	ear EMA
	nod nodDetector
}

// NewAnalyzer создает анализатор, проверяя конфигурацию
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Analyzer{cfg: cfg}
	a.Reset()
	return a, nil
}

// Config возвращает конфигурацию анализатора
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Update обрабатывает точки лица текущего кадра.
// Второе значение false означает "недостаточно данных": кадр пропускается,
// состояние не изменяется.
func (a *Analyzer) Update(landmarks LandmarkSet, timestampMs int64) (Result, bool) {
	if !landmarks.Sufficient() {
		return Result{}, false
	}

	earLeft := EyeAspectRatio(landmarks, LeftEye)
	earRight := EyeAspectRatio(landmarks, RightEye)
	smoothed := a.ear.Update((earLeft + earRight) / 2)

	isNod, pitch := a.nod.update(PitchProxy(landmarks), timestampMs)

	return Result{
		EarLeft:    earLeft,
		EarRight:   earRight,
		EarAverage: smoothed,
		EyesClosed: smoothed < a.cfg.EarClosedThreshold,
		IsNodEvent: isNod,
		TotalNods:  a.nod.count,
		PitchProxy: pitch,
	}, true
}

// Reset сбрасывает все состояние: EMA не заданы, автомат в Idle, счетчик 0.
// Нужен при смене источника кадров, чтобы состояние не перетекало между сессиями.
func (a *Analyzer) Reset() {
	a.ear = NewEMA(a.cfg.EarSmoothingAlpha)
	a.nod = nodDetector{
		cfg:      a.cfg,
		baseline: NewEMA(a.cfg.NodBaselineAlpha),
		measure:  NewEMA(a.cfg.NodMeasureAlpha),
	}
}

// State возвращает копию текущего состояния
func (a *Analyzer) State() Snapshot {
	ear, earSet := a.ear.Value()
	baseline, baselineSet := a.nod.baseline.Value()
	measure, measureSet := a.nod.measure.Value()

	return Snapshot{
		EarSmoothed:      ear,
		EarSmoothedSet:   earSet,
		NodState:         a.nod.state,
		NodDownStartedAt: a.nod.downStartedAt,
		NodBaseline:      baseline,
		NodBaselineSet:   baselineSet,
		NodMeasure:       measure,
		NodMeasureSet:    measureSet,
		NodCount:         a.nod.count,
	}
}

// nodDetector гистерезисный автомат кивков по разнице быстрой и медленной EMA
type nodDetector struct {
	cfg Config

	baseline EMA
	measure  EMA

	state         NodState
	downStartedAt int64
	count         int
}

// update возвращает признак завершенного кивка и сглаженный pitch
func (d *nodDetector) update(pitch float64, timestampMs int64) (bool, float64) {
	baseline := d.baseline.Update(pitch)
	measure := d.measure.Update(pitch)
	delta := measure - baseline

	switch d.state {
	case NodIdle:
		if d.triggered(delta) {
			d.state = NodDown
			d.downStartedAt = timestampMs
		}
	case NodDown:
		// таймаут имеет приоритет над отпусканием
		if timestampMs-d.downStartedAt > d.cfg.NodMaxDurationMs {
			d.state = NodIdle
			return false, measure
		}
		if d.released(delta) {
			d.state = NodIdle
			d.count++
			return true, measure
		}
	}

	return false, measure
}

func (d *nodDetector) triggered(delta float64) bool {
	if d.cfg.NodPolarity == PolarityUp {
		return delta < -d.cfg.NodAmplitudeThreshold
	}
	return delta > d.cfg.NodAmplitudeThreshold
}

func (d *nodDetector) released(delta float64) bool {
	if d.cfg.NodPolarity == PolarityUp {
		return delta > -d.cfg.NodReleaseThreshold
	}
	return delta < d.cfg.NodReleaseThreshold
}
