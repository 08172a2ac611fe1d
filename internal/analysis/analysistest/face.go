// Package analysistest строит синтетические наборы точек лица для тестов
package analysistest

import "drowsiness-service/internal/analysis"

// FaceMeshSize размер канонической топологии face mesh
const FaceMeshSize = 468

// Face возвращает набор из 468 точек, у которого EAR обоих глаз равен ear,
// а кончик носа смещен на pitch межглазных расстояний ниже линии глаз.
func Face(ear, pitch float64) analysis.LandmarkSet {
	lm := make(analysis.LandmarkSet, FaceMeshSize)
	for i := range lm {
		lm[i] = analysis.Point{X: 0.5, Y: 0.5}
	}

	const (
		eyeY     = 0.40
		eyeWidth = 0.08
	)
	gap := ear * eyeWidth
	top, bottom := eyeY-gap/2, eyeY+gap/2

	lm[33] = analysis.Point{X: 0.40, Y: eyeY}
	lm[133] = analysis.Point{X: 0.40 + eyeWidth, Y: eyeY}
	lm[160] = analysis.Point{X: 0.43, Y: top}
	lm[144] = analysis.Point{X: 0.43, Y: bottom}
	lm[158] = analysis.Point{X: 0.45, Y: top}
	lm[153] = analysis.Point{X: 0.45, Y: bottom}

	lm[263] = analysis.Point{X: 0.60, Y: eyeY}
	lm[362] = analysis.Point{X: 0.60 - eyeWidth, Y: eyeY}
	lm[387] = analysis.Point{X: 0.57, Y: top}
	lm[373] = analysis.Point{X: 0.57, Y: bottom}
	lm[385] = analysis.Point{X: 0.55, Y: top}
	lm[380] = analysis.Point{X: 0.55, Y: bottom}

	lm[analysis.NoseTip] = analysis.Point{X: 0.50, Y: eyeY + pitch*0.20}
	return lm
}

// OpenEyes лицо с открытыми глазами и нейтральной позой
func OpenEyes() analysis.LandmarkSet {
	return Face(0.30, 0)
}

// ClosedEyes лицо с закрытыми глазами и нейтральной позой
func ClosedEyes() analysis.LandmarkSet {
	return Face(0.05, 0)
}
