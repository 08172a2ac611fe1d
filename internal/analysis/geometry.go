package analysis

import "math"

// Индексы точек топологии face mesh (468 точек)
const (
	NoseTip       = 1
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	RightEyeOuter = 263
	RightEyeInner = 362

	// MinLandmarks минимальный размер набора: старший используемый индекс 387
	MinLandmarks = 388

	// interOcularEpsilon защищает нормировку pitch от деления на ноль
	interOcularEpsilon = 1e-6
)

// Point нормализованная 2D координата точки лица
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet упорядоченный набор точек одного лица
type LandmarkSet []Point

// Sufficient сообщает, содержит ли набор все используемые индексы
func (l LandmarkSet) Sufficient() bool {
	return len(l) >= MinLandmarks
}

// EyeIndices шесть точек глаза: P1/P4 уголки, (P2,P6) и (P3,P5) пары век
type EyeIndices struct {
	P1, P2, P3, P4, P5, P6 int
}

var (
	// LeftEye индексы левого глаза
	LeftEye = EyeIndices{P1: 33, P2: 160, P3: 158, P4: 133, P5: 153, P6: 144}
	// RightEye зеркальные индексы правого глаза
	RightEye = EyeIndices{P1: 263, P2: 387, P3: 385, P4: 362, P5: 380, P6: 373}
)

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio вычисляет EAR = (|p2-p6| + |p3-p5|) / (2 * |p1-p4|).
// Для вырожденной геометрии (нулевая ширина глаза) возвращает 0.
// Набор должен быть достаточным (см. Sufficient).
func EyeAspectRatio(lm LandmarkSet, eye EyeIndices) float64 {
	vertical1 := distance(lm[eye.P2], lm[eye.P6])
	vertical2 := distance(lm[eye.P3], lm[eye.P5])
	horizontal := distance(lm[eye.P1], lm[eye.P4])

	if horizontal <= 0 {
		return 0
	}
	return (vertical1 + vertical2) / (2 * horizontal)
}

// PitchProxy вертикальное смещение кончика носа относительно середины
// линии внешних уголков глаз, нормированное на межглазное расстояние.
// Положительное значение: нос ниже линии глаз.
func PitchProxy(lm LandmarkSet) float64 {
	left := lm[LeftEyeOuter]
	right := lm[RightEyeOuter]

	eyeMidY := (left.Y + right.Y) / 2
	interOcular := math.Max(distance(left, right), interOcularEpsilon)

	return (lm[NoseTip].Y - eyeMidY) / interOcular
}
