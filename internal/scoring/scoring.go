// Package scoring folds per-script confidences into one job confidence and
// routes it to a terminal action.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/result"
)

// ErrInvalidConfidence rejects NaN or out-of-range inputs to Aggregate.
var ErrInvalidConfidence = errors.New("confidence out of range")

// Aggregate returns the rank-weighted mean of confidences: sorted descending,
// the value at rank i weighs 1/(i+1). An empty batch yields fallback
// unchanged; a NaN or out-of-range fallback is rejected like any other
// confidence.
func Aggregate(confidences []float64, fallback float64) (float64, error) {
	if len(confidences) == 0 {
		if !inRange(fallback) {
			return 0, fmt.Errorf("fallback %v: %w", fallback, ErrInvalidConfidence)
		}
		return fallback, nil
	}
	sorted := make([]float64, len(confidences))
	for i, c := range confidences {
		if !inRange(c) {
			return 0, fmt.Errorf("script %d: %v: %w", i, c, ErrInvalidConfidence)
		}
		sorted[i] = c
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var sum, weights float64
	for i, c := range sorted {
		w := 1 / float64(i+1)
		sum += c * w
		weights += w
	}
	return result.Clamp(sum / weights), nil
}

func inRange(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 100
}

// Route maps a confidence to auto_pr, manual_review or reject. Both
// thresholds are inclusive lower bounds.
func Route(confidence float64, th config.Thresholds) result.Action {
	switch {
	case confidence >= th.AutoPRThreshold:
		return result.ActionAutoPR
	case confidence >= th.ManualReviewThreshold:
		return result.ActionManualReview
	default:
		return result.ActionReject
	}
}

// Justification explains the bracket a confidence fell into.
func Justification(confidence float64, th config.Thresholds) string {
	switch Route(confidence, th) {
	case result.ActionAutoPR:
		return fmt.Sprintf("High confidence (%.1f%%) - All tests passed, ready for automatic PR submission (auto-PR threshold %.1f%%)",
			confidence, th.AutoPRThreshold)
	case result.ActionManualReview:
		return fmt.Sprintf("Medium confidence (%.1f%%) - Most tests passed, requires manual review before PR (between %.1f%% and %.1f%%)",
			confidence, th.ManualReviewThreshold, th.AutoPRThreshold)
	default:
		return fmt.Sprintf("Low confidence (%.1f%%) - Multiple test failures, needs significant work (below %.1f%%)",
			confidence, th.ManualReviewThreshold)
	}
}

// Decide aggregates the batch and builds the scoring stage payload.
func Decide(confidences []float64, fallback float64, th config.Thresholds) (result.ScoringSummary, error) {
	final, err := Aggregate(confidences, fallback)
	if err != nil {
		return result.ScoringSummary{}, err
	}
	return result.ScoringSummary{
		FinalConfidence:   final,
		ScriptConfidences: append([]float64{}, confidences...),
		RecommendedAction: Route(final, th),
		Thresholds:        th,
		Justification:     Justification(final, th),
		UsedFallback:      len(confidences) == 0,
	}, nil
}
