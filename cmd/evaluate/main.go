// Package main оценивает детектор закрытых глаз на размеченном наборе кадров
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"drowsiness-service/internal/analysis"
	"drowsiness-service/internal/evaluation"
	"drowsiness-service/internal/log"
)

func main() {
	dataset := flag.String("dataset", "dataset.jsonl", "Path to a JSON Lines dataset of labelled landmark sets")
	threshold := flag.Float64("ear-threshold", 0.10, "EAR below which eyes are considered closed")
	maxPerClass := flag.Int("max-per-class", 500, "Maximum samples per class, 0 for all")
	progress := flag.Int("progress", 100, "Log progress every N samples, 0 to disable")
	asJSON := flag.Bool("json", false, "Print the report as JSON to stdout")
	flag.Parse()

	logger := log.NewLogger()

	cfg := analysis.DefaultConfig()
	cfg.EarClosedThreshold = *threshold

	evaluator, err := evaluation.NewEvaluator(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid analyzer configuration")
	}

	samples, err := evaluation.LoadDatasetFile(*dataset, *maxPerClass)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load dataset")
	}
	logger.WithField("samples", len(samples)).Info("Dataset loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := evaluator.Run(ctx, samples, *progress)
	if err != nil {
		logger.WithError(err).Fatal("Evaluation interrupted")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.WithError(err).Fatal("Failed to write report")
		}
		return
	}
	report.Log(logger)
}
