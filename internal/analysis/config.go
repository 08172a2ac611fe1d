package analysis

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Polarity задает, какой знак delta считается опусканием головы
type Polarity string

const (
	// PolarityDown нос уходит вниз относительно линии глаз (типичный монтаж камеры)
	PolarityDown Polarity = "DOWN"
	// PolarityUp камера перевернута или стоит выше лица
	PolarityUp Polarity = "UP"
)

const (
	// DefaultEarClosedThreshold порог EAR, ниже которого глаза считаются закрытыми
	DefaultEarClosedThreshold = 0.21
	// DefaultEarSmoothingAlpha коэффициент EMA для среднего EAR
	DefaultEarSmoothingAlpha = 0.3
	// DefaultNodAmplitudeThreshold порог входа в состояние Down
	DefaultNodAmplitudeThreshold = 0.10
	// DefaultNodReleaseThreshold порог выхода из Down с засчитанным кивком
	DefaultNodReleaseThreshold = 0.05
	// DefaultNodMaxDurationMs максимальная длительность кивка
	DefaultNodMaxDurationMs = 1200
	// DefaultNodBaselineAlpha коэффициент медленной EMA (поза головы)
	DefaultNodBaselineAlpha = 0.03
	// DefaultNodMeasureAlpha коэффициент быстрой EMA (движение головы)
	DefaultNodMeasureAlpha = 0.3
)

// ErrInvalidConfig возвращается при недопустимой конфигурации анализатора
var ErrInvalidConfig = errors.New("invalid analyzer config")

// Config содержит параметры анализатора, фиксируемые при создании
type Config struct {
	EarClosedThreshold    float64  `json:"ear_closed_threshold" validate:"gt=0"`
	EarSmoothingAlpha     float64  `json:"ear_smoothing_alpha" validate:"gt=0,lte=1"`
	NodAmplitudeThreshold float64  `json:"nod_amplitude_threshold" validate:"gt=0"`
	NodReleaseThreshold   float64  `json:"nod_release_threshold" validate:"gte=0"`
	NodMaxDurationMs      int64    `json:"nod_max_duration_ms" validate:"gt=0"`
	NodBaselineAlpha      float64  `json:"nod_baseline_alpha" validate:"gt=0,lte=1"`
	NodMeasureAlpha       float64  `json:"nod_measure_alpha" validate:"gt=0,lte=1"`
	NodPolarity           Polarity `json:"nod_polarity" validate:"oneof=DOWN UP"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		EarClosedThreshold:    DefaultEarClosedThreshold,
		EarSmoothingAlpha:     DefaultEarSmoothingAlpha,
		NodAmplitudeThreshold: DefaultNodAmplitudeThreshold,
		NodReleaseThreshold:   DefaultNodReleaseThreshold,
		NodMaxDurationMs:      DefaultNodMaxDurationMs,
		NodBaselineAlpha:      DefaultNodBaselineAlpha,
		NodMeasureAlpha:       DefaultNodMeasureAlpha,
		NodPolarity:           PolarityDown,
	}
}

var validate = validator.New()

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
