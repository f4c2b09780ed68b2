// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

// Trend labels.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// trendSlopeEpsilon is the dead band around zero slope: fitted slopes
// inside it read as stable.
const trendSlopeEpsilon = 0.02

// StatValue is one computed statistic. Numeric statistics fill Number,
// the trend statistic fills Label. A nil *StatValue in a report means
// the statistic could not be computed.
type StatValue struct {
	Number *float64 `json:"number,omitempty"`
	Label  string   `json:"label,omitempty"`
}

// statFunc computes one statistic over a non-empty value slice, returning
// nil when the statistic is undefined for the input.
type statFunc func(vals []float64) *StatValue

// statRegistry holds every statistic the pipeline can be asked for.
// Requested names outside this set are dropped upstream at the intent
// boundary and again here, so either filter alone is sufficient.
var statRegistry = map[string]statFunc{
	"avg":   statAvg,
	"max":   statMax,
	"min":   statMin,
	"trend": statTrend,
}

// SupportedStats reports whether name is a computable statistic.
func SupportedStats(name string) bool {
	_, ok := statRegistry[name]
	return ok
}

// DefaultNeed is the statistic set used when the question did not name any.
func DefaultNeed() []string {
	return []string{"avg", "max", "min", "trend"}
}

func numberStat(v float64) *StatValue {
	return &StatValue{Number: &v}
}

func statAvg(vals []float64) *StatValue {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return numberStat(sum / float64(len(vals)))
}

func statMax(vals []float64) *StatValue {
	if len(vals) == 0 {
		return nil
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return numberStat(m)
}

func statMin(vals []float64) *StatValue {
	if len(vals) == 0 {
		return nil
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return numberStat(m)
}

// statTrend fits a least-squares line over the sample index and classifies
// the slope. Fewer than three samples carry no trend.
func statTrend(vals []float64) *StatValue {
	n := len(vals)
	if n < 3 {
		return nil
	}

	// slope = sum((x-x̄)(y-ȳ)) / sum((x-x̄)²) with x = 0..n-1
	xMean := float64(n-1) / 2
	var yMean float64
	for _, v := range vals {
		yMean += v
	}
	yMean /= float64(n)

	var num, den float64
	for i, v := range vals {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return &StatValue{Label: TrendStable}
	}

	slope := num / den
	switch {
	case slope > trendSlopeEpsilon:
		return &StatValue{Label: TrendRising}
	case slope < -trendSlopeEpsilon:
		return &StatValue{Label: TrendFalling}
	default:
		return &StatValue{Label: TrendStable}
	}
}
