package evaluation

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ConfusionMatrix матрица ошибок, положительный класс - сонливость
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Total возвращает число кадров в матрице
func (c ConfusionMatrix) Total() int {
	return c.TN + c.FP + c.FN + c.TP
}

// LatencyStats статистика задержки анализа в миллисекундах.
// При пустой выборке все значения равны -1.
type LatencyStats struct {
	Mean float64 `json:"mean_ms"`
	Std  float64 `json:"std_ms"`
	Min  float64 `json:"min_ms"`
	Max  float64 `json:"max_ms"`
	P25  float64 `json:"p25_ms"`
	P50  float64 `json:"p50_ms"`
	P75  float64 `json:"p75_ms"`
	P90  float64 `json:"p90_ms"`
	P95  float64 `json:"p95_ms"`
	P99  float64 `json:"p99_ms"`
}

// Report итог оценки
type Report struct {
	Samples         int             `json:"samples"`
	FailedDetection int             `json:"failed_detection"`
	Accuracy        float64         `json:"accuracy"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	F1              float64         `json:"f1"`
	Confusion       ConfusionMatrix `json:"confusion_matrix"`
	Latency         LatencyStats    `json:"latency"`
}

func confusion(labels, predictions []bool) ConfusionMatrix {
	var cm ConfusionMatrix
	for i, label := range labels {
		switch {
		case label && predictions[i]:
			cm.TP++
		case label && !predictions[i]:
			cm.FN++
		case !label && predictions[i]:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm
}

// ratio делит с нулем при нулевом знаменателе
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func (r *Report) fillScores() {
	cm := r.Confusion
	r.Accuracy = ratio(cm.TP+cm.TN, cm.Total())
	r.Precision = ratio(cm.TP, cm.TP+cm.FP)
	r.Recall = ratio(cm.TP, cm.TP+cm.FN)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
}

func latencyStats(latencies []float64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	// LinInterp интерполирует между x[k-1] и x[k] при p*n в (k-1, k].
	// Сдвиг p дает линейную интерполяцию по позиции (n-1)*p.
	n := float64(len(sorted))
	q := func(p float64) float64 {
		return stat.Quantile(((n-1)*p+1)/n, stat.LinInterp, sorted, nil)
	}

	return LatencyStats{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(sorted),
		Max:  floats.Max(sorted),
		P25:  q(0.25),
		P50:  q(0.50),
		P75:  q(0.75),
		P90:  q(0.90),
		P95:  q(0.95),
		P99:  q(0.99),
	}
}

// Log выводит отчет в лог
func (r Report) Log(logger *logrus.Logger) {
	logger.WithFields(logrus.Fields{
		"samples":          r.Samples,
		"failed_detection": r.FailedDetection,
		"accuracy":         r.Accuracy,
		"precision":        r.Precision,
		"recall":           r.Recall,
		"f1":               r.F1,
	}).Info("Classification metrics")

	logger.WithFields(logrus.Fields{
		"tn": r.Confusion.TN,
		"fp": r.Confusion.FP,
		"fn": r.Confusion.FN,
		"tp": r.Confusion.TP,
	}).Info("Confusion matrix")

	logger.WithFields(logrus.Fields{
		"mean_ms": r.Latency.Mean,
		"std_ms":  r.Latency.Std,
		"min_ms":  r.Latency.Min,
		"max_ms":  r.Latency.Max,
		"p50_ms":  r.Latency.P50,
		"p95_ms":  r.Latency.P95,
		"p99_ms":  r.Latency.P99,
	}).Info("Analysis latency")
}
