package analysis

// EMA экспоненциальное скользящее среднее с явным состоянием "не задано"
type EMA struct {
	alpha float64
	value float64
	valid bool
}

// NewEMA создает EMA с коэффициентом alpha
func NewEMA(alpha float64) EMA {
	return EMA{alpha: alpha}
}

// Update добавляет значение: первое значение принимается как есть,
// далее new = old + alpha*(raw - old)
func (e *EMA) Update(raw float64) float64 {
	if !e.valid {
		e.value = raw
		e.valid = true
		return e.value
	}
	e.value += e.alpha * (raw - e.value)
	return e.value
}

// Value возвращает текущее значение и признак инициализации
func (e EMA) Value() (float64, bool) {
	return e.value, e.valid
}

