// Package evaluation оценивает детектор закрытых глаз на размеченном наборе
// кадров: accuracy, precision, recall, F1, матрица ошибок и задержки анализа.
package evaluation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"drowsiness-service/internal/analysis"
)

// Sample размеченный кадр. Label=true означает сонливого водителя.
type Sample struct {
	Label     bool                 `json:"label"`
	Landmarks analysis.LandmarkSet `json:"landmarks"`
}

// Evaluator прогоняет кадры через анализатор и копит предсказания
type Evaluator struct {
	analyzer *analysis.Analyzer
	log      *logrus.Logger

	labels      []bool
	predictions []bool
	latenciesMs []float64
	failed      int
}

// NewEvaluator создает оценщик с конфигурацией анализатора
func NewEvaluator(cfg analysis.Config, logger *logrus.Logger) (*Evaluator, error) {
	analyzer, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return &Evaluator{analyzer: analyzer, log: logger}, nil
}

// Evaluate анализирует один кадр. Состояние анализатора сбрасывается перед
// каждым кадром, кадр без достаточного набора точек считается "не сонный"
// и в статистику задержек не попадает.
func (e *Evaluator) Evaluate(s Sample) bool {
	e.analyzer.Reset()

	start := time.Now()
	result, ok := e.analyzer.Update(s.Landmarks, 0)
	elapsed := time.Since(start)

	if !ok {
		e.failed++
		e.record(s.Label, false)
		return false
	}

	e.Add(s.Label, result.EyesClosed, float64(elapsed.Nanoseconds())/1e6)
	return result.EyesClosed
}

// Add записывает пару метка/предсказание и задержку в миллисекундах
func (e *Evaluator) Add(label, predicted bool, latencyMs float64) {
	e.record(label, predicted)
	e.latenciesMs = append(e.latenciesMs, latencyMs)
}

func (e *Evaluator) record(label, predicted bool) {
	e.labels = append(e.labels, label)
	e.predictions = append(e.predictions, predicted)
}

// Run оценивает все кадры, прерывается по отмене контекста
func (e *Evaluator) Run(ctx context.Context, samples []Sample, progressEvery int) (Report, error) {
	for i, s := range samples {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		e.Evaluate(s)

		if progressEvery > 0 && (i+1)%progressEvery == 0 {
			e.log.WithFields(logrus.Fields{
				"processed": i + 1,
				"total":     len(samples),
			}).Info("[evaluation.Run] progress")
		}
	}
	return e.Report(), nil
}

// Report считает итоговые метрики
func (e *Evaluator) Report() Report {
	r := Report{
		Samples:         len(e.labels),
		FailedDetection: e.failed,
		Confusion:       confusion(e.labels, e.predictions),
		Latency:         latencyStats(e.latenciesMs),
	}
	r.fillScores()
	return r
}
