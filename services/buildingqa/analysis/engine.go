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

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Diagnostic reason codes. Carried on reports so callers and tests can
// assert on why a series produced no numbers without parsing messages.
const (
	ReasonNoTimeWindow = "no_time_window"
	ReasonFetchFailed  = "fetch_failed"
	ReasonNoData       = "no_data_in_window"
	ReasonExactMatch   = "exact_match"
	ReasonWindowMatch  = "window_match"
	ReasonNoTargetTime = "no_target_time"
)

// pointInTimeWidening bounds the search window when a requested instant has
// no exact sample.
const pointInTimeWidening = 3 * time.Minute

// Diagnostic explains how one series report was produced.
type Diagnostic struct {
	Reason      string            `json:"reason,omitempty"`
	Samples     int               `json:"samples"`
	WindowUTC   []string          `json:"window_utc,omitempty"`
	FirstSample string            `json:"first_sample,omitempty"`
	LastSample  string            `json:"last_sample,omitempty"`
	StatErrors  map[string]string `json:"stat_errors,omitempty"`
}

// SeriesReport is the per-series result record.
//
// Description:
//
//	Stats holds one entry per requested statistic; a nil value means the
//	statistic could not be computed for this series. Value is only set by
//	point-in-time analysis. Every report carries its Diagnostic so a null
//	is always explainable.
type SeriesReport struct {
	TSID     string                `json:"tsid"`
	Span     string                `json:"span,omitempty"`
	Metric   string                `json:"metric"`
	MetricZH string                `json:"metric_zh,omitempty"`
	Unit     string                `json:"unit,omitempty"`
	N        int                   `json:"n"`
	Value    *float64              `json:"value,omitempty"`
	Stats    map[string]*StatValue `json:"stats,omitempty"`
	Diag     Diagnostic            `json:"diag"`
}

// Engine is the statistics collaborator the pipeline calls after a query
// produced timeseries rows.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Engine interface {
	// Analyze computes the requested statistics for each series over the
	// half-open window [start, end). A nil start or end means no usable
	// window: every report comes back with n=0 and null statistics.
	// Always returns one report per series id, never an error.
	Analyze(ctx context.Context, tsids []string, start, end *time.Time, label string, need []string) []SeriesReport

	// AnalyzePointInTime resolves each series at a single instant:
	// an exact sample when one exists, otherwise the first few minutes
	// after the instant, otherwise nulls.
	AnalyzePointInTime(ctx context.Context, tsids []string, at *time.Time) []SeriesReport
}

// StatEngine computes statistics over samples pulled from a SampleSource.
//
// Thread Safety: Safe for concurrent use when the source is.
type StatEngine struct {
	source SampleSource
	logger *slog.Logger
}

// NewStatEngine creates the engine.
//
// Inputs:
//
//	source - Backing reading store. Must not be nil.
//	logger - Logger instance. Nil uses slog.Default().
func NewStatEngine(source SampleSource, logger *slog.Logger) (*StatEngine, error) {
	if source == nil {
		return nil, fmt.Errorf("analysis: sample source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatEngine{source: source, logger: logger}, nil
}

// Analyze computes the requested statistics per series.
//
// Thread Safety: Safe for concurrent use.
func (e *StatEngine) Analyze(ctx context.Context, tsids []string, start, end *time.Time, label string, need []string) []SeriesReport {
	want := filterNeed(need)

	reports := make([]SeriesReport, 0, len(tsids))
	for _, tsid := range tsids {
		if start == nil || end == nil {
			reports = append(reports, emptyReport(tsid, label, want, ReasonNoTimeWindow, nil))
			continue
		}
		reports = append(reports, e.analyzeOne(ctx, tsid, *start, *end, label, want))
	}
	return reports
}

// analyzeOne computes one series report over a concrete window. Fetch and
// per-statistic failures stay inside the report.
func (e *StatEngine) analyzeOne(ctx context.Context, tsid string, start, end time.Time, label string, want []string) SeriesReport {
	window := []string{start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)}

	samples, err := e.source.Fetch(ctx, tsid, start, end)
	if err != nil {
		e.logger.Warn("sample fetch failed",
			slog.String("tsid", tsid),
			slog.String("error", err.Error()),
		)
		return emptyReport(tsid, label, want, ReasonFetchFailed, window)
	}

	info := metricFromTSID(tsid)
	report := SeriesReport{
		TSID:     tsid,
		Span:     label,
		Metric:   info.metric,
		MetricZH: info.metricZH,
		Unit:     info.unit,
		N:        len(samples),
		Stats:    make(map[string]*StatValue, len(want)),
		Diag: Diagnostic{
			Samples:   len(samples),
			WindowUTC: window,
		},
	}
	if len(samples) == 0 {
		report.Diag.Reason = ReasonNoData
		for _, w := range want {
			report.Stats[w] = nil
		}
		return report
	}

	report.Diag.FirstSample = samples[0].Time.UTC().Format(time.RFC3339)
	report.Diag.LastSample = samples[len(samples)-1].Time.UTC().Format(time.RFC3339)

	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	for _, w := range want {
		report.Stats[w] = statRegistry[w](vals)
	}
	return report
}

// AnalyzePointInTime resolves each series at one instant.
//
// Thread Safety: Safe for concurrent use.
func (e *StatEngine) AnalyzePointInTime(ctx context.Context, tsids []string, at *time.Time) []SeriesReport {
	reports := make([]SeriesReport, 0, len(tsids))
	for _, tsid := range tsids {
		if at == nil {
			reports = append(reports, emptyReport(tsid, "", DefaultNeed(), ReasonNoTargetTime, nil))
			continue
		}
		reports = append(reports, e.pointInTimeOne(ctx, tsid, *at))
	}
	return reports
}

func (e *StatEngine) pointInTimeOne(ctx context.Context, tsid string, at time.Time) SeriesReport {
	info := metricFromTSID(tsid)
	report := SeriesReport{
		TSID:     tsid,
		Metric:   info.metric,
		MetricZH: info.metricZH,
		Unit:     info.unit,
		Stats:    make(map[string]*StatValue, 3),
	}

	end := at.Add(pointInTimeWidening)
	window := []string{at.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)}

	samples, err := e.source.Fetch(ctx, tsid, at, end)
	if err != nil {
		e.logger.Warn("sample fetch failed",
			slog.String("tsid", tsid),
			slog.String("error", err.Error()),
		)
		rep := emptyReport(tsid, "", []string{"avg", "max", "min"}, ReasonFetchFailed, window)
		return rep
	}
	if len(samples) == 0 {
		rep := emptyReport(tsid, "", []string{"avg", "max", "min"}, ReasonNoData, window)
		return rep
	}

	// Exact sample wins; a single point is its own average and extrema.
	for _, s := range samples {
		if s.Time.Equal(at) {
			v := s.Value
			report.Value = &v
			report.N = 1
			report.Stats["avg"] = numberStat(v)
			report.Stats["max"] = numberStat(v)
			report.Stats["min"] = numberStat(v)
			report.Diag = Diagnostic{
				Reason:    ReasonExactMatch,
				Samples:   1,
				WindowUTC: window,
			}
			return report
		}
	}

	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	first := vals[0]
	report.Value = &first
	report.N = len(vals)
	report.Stats["avg"] = statAvg(vals)
	report.Stats["max"] = statMax(vals)
	report.Stats["min"] = statMin(vals)
	report.Diag = Diagnostic{
		Reason:      ReasonWindowMatch,
		Samples:     len(vals),
		WindowUTC:   window,
		FirstSample: samples[0].Time.UTC().Format(time.RFC3339),
		LastSample:  samples[len(samples)-1].Time.UTC().Format(time.RFC3339),
	}
	return report
}

// filterNeed keeps only computable statistic names, falling back to the
// default set when nothing survives.
func filterNeed(need []string) []string {
	var want []string
	for _, n := range need {
		if SupportedStats(n) {
			want = append(want, n)
		}
	}
	if len(want) == 0 {
		return DefaultNeed()
	}
	return want
}

// emptyReport builds an all-null report with the given diagnostic reason.
func emptyReport(tsid, label string, want []string, reason string, window []string) SeriesReport {
	info := metricFromTSID(tsid)
	stats := make(map[string]*StatValue, len(want))
	for _, w := range want {
		stats[w] = nil
	}
	return SeriesReport{
		TSID:     tsid,
		Span:     label,
		Metric:   info.metric,
		MetricZH: info.metricZH,
		Unit:     info.unit,
		N:        0,
		Stats:    stats,
		Diag: Diagnostic{
			Reason:    reason,
			Samples:   0,
			WindowUTC: window,
		},
	}
}
