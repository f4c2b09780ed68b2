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
	"errors"
	"testing"
	"time"
)

// fakeSource serves scripted samples per tsid and can fail selectively.
type fakeSource struct {
	samples map[string][]Sample
	failOn  map[string]bool
}

func (f *fakeSource) Fetch(_ context.Context, tsid string, start, end time.Time) ([]Sample, error) {
	if f.failOn[tsid] {
		return nil, errors.New("backend down")
	}
	var out []Sample
	for _, s := range f.samples[tsid] {
		if !s.Time.Before(start) && s.Time.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func at(t *testing.T, iso string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", iso, err)
	}
	return ts
}

func TestStatEngine_AnalyzeComputesRequestedStats(t *testing.T) {
	base := at(t, "2024-05-01T00:00:00Z")
	src := &fakeSource{samples: map[string][]Sample{
		"r1.temp": {
			{Time: base, Value: 20},
			{Time: base.Add(time.Hour), Value: 22},
			{Time: base.Add(2 * time.Hour), Value: 24},
		},
	}}
	engine, err := NewStatEngine(src, nil)
	if err != nil {
		t.Fatalf("NewStatEngine: %v", err)
	}

	end := base.Add(24 * time.Hour)
	reports := engine.Analyze(context.Background(), []string{"r1.temp"}, &base, &end, "yesterday", []string{"avg", "trend"})
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}

	rep := reports[0]
	if rep.N != 3 {
		t.Errorf("n = %d, want 3", rep.N)
	}
	if rep.Span != "yesterday" {
		t.Errorf("span = %q", rep.Span)
	}
	if rep.Metric != "temperature" || rep.Unit != "°C" {
		t.Errorf("metric mapping wrong: %q %q", rep.Metric, rep.Unit)
	}
	if got := mustNumber(t, rep.Stats["avg"]); got != 22 {
		t.Errorf("avg = %v, want 22", got)
	}
	if rep.Stats["trend"] == nil || rep.Stats["trend"].Label != TrendRising {
		t.Errorf("trend = %+v, want rising", rep.Stats["trend"])
	}
	if _, present := rep.Stats["max"]; present {
		t.Error("unrequested statistic must not appear")
	}
}

func TestStatEngine_NoWindowYieldsNullsWithReason(t *testing.T) {
	engine, _ := NewStatEngine(&fakeSource{}, nil)

	reports := engine.Analyze(context.Background(), []string{"r1.temp"}, nil, nil, "(no time constraint)", []string{"avg"})
	if len(reports) != 1 {
		t.Fatalf("got %d reports", len(reports))
	}
	rep := reports[0]
	if rep.N != 0 || rep.Stats["avg"] != nil {
		t.Error("missing window must yield n=0 and null statistics")
	}
	if rep.Diag.Reason != ReasonNoTimeWindow {
		t.Errorf("reason = %q, want %q", rep.Diag.Reason, ReasonNoTimeWindow)
	}
}

func TestStatEngine_OneSeriesFailureDoesNotSuppressOthers(t *testing.T) {
	base := at(t, "2024-05-01T00:00:00Z")
	src := &fakeSource{
		samples: map[string][]Sample{
			"r2.rh": {{Time: base, Value: 40}},
		},
		failOn: map[string]bool{"r1.temp": true},
	}
	engine, _ := NewStatEngine(src, nil)

	end := base.Add(time.Hour)
	reports := engine.Analyze(context.Background(), []string{"r1.temp", "r2.rh"}, &base, &end, "", []string{"avg"})
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Diag.Reason != ReasonFetchFailed {
		t.Errorf("reports[0].reason = %q, want %q", reports[0].Diag.Reason, ReasonFetchFailed)
	}
	if got := mustNumber(t, reports[1].Stats["avg"]); got != 40 {
		t.Errorf("healthy series avg = %v, want 40", got)
	}
}

func TestStatEngine_PointInTimeExactMatch(t *testing.T) {
	target := at(t, "2024-05-01T09:00:00Z")
	src := &fakeSource{samples: map[string][]Sample{
		"r1.co2": {
			{Time: target, Value: 612},
			{Time: target.Add(time.Minute), Value: 800},
		},
	}}
	engine, _ := NewStatEngine(src, nil)

	reports := engine.AnalyzePointInTime(context.Background(), []string{"r1.co2"}, &target)
	rep := reports[0]
	if rep.Diag.Reason != ReasonExactMatch {
		t.Fatalf("reason = %q, want %q", rep.Diag.Reason, ReasonExactMatch)
	}
	if rep.Value == nil || *rep.Value != 612 {
		t.Errorf("value = %v, want 612", rep.Value)
	}
	// A single point is its own average and extrema.
	for _, stat := range []string{"avg", "max", "min"} {
		if got := mustNumber(t, rep.Stats[stat]); got != 612 {
			t.Errorf("%s = %v, want 612", stat, got)
		}
	}
	if rep.N != 1 {
		t.Errorf("n = %d, want 1", rep.N)
	}
}

func TestStatEngine_PointInTimeWindowFallback(t *testing.T) {
	target := at(t, "2024-05-01T09:00:00Z")
	src := &fakeSource{samples: map[string][]Sample{
		"r1.co2": {
			{Time: target.Add(time.Minute), Value: 600},
			{Time: target.Add(2 * time.Minute), Value: 620},
		},
	}}
	engine, _ := NewStatEngine(src, nil)

	rep := engine.AnalyzePointInTime(context.Background(), []string{"r1.co2"}, &target)[0]
	if rep.Diag.Reason != ReasonWindowMatch {
		t.Fatalf("reason = %q, want %q", rep.Diag.Reason, ReasonWindowMatch)
	}
	if rep.Value == nil || *rep.Value != 600 {
		t.Errorf("value = %v, want first sample 600", rep.Value)
	}
	if got := mustNumber(t, rep.Stats["avg"]); got != 610 {
		t.Errorf("avg = %v, want 610", got)
	}
	if rep.N != 2 {
		t.Errorf("n = %d, want 2", rep.N)
	}
}

func TestStatEngine_PointInTimeNoData(t *testing.T) {
	target := at(t, "2024-05-01T09:00:00Z")
	engine, _ := NewStatEngine(&fakeSource{}, nil)

	rep := engine.AnalyzePointInTime(context.Background(), []string{"r1.lux"}, &target)[0]
	if rep.Diag.Reason != ReasonNoData {
		t.Errorf("reason = %q, want %q", rep.Diag.Reason, ReasonNoData)
	}
	if rep.Value != nil || rep.N != 0 {
		t.Error("expected null value and n=0")
	}
}

func TestStatEngine_PointInTimeMissingTarget(t *testing.T) {
	engine, _ := NewStatEngine(&fakeSource{}, nil)

	rep := engine.AnalyzePointInTime(context.Background(), []string{"r1.lux"}, nil)[0]
	if rep.Diag.Reason != ReasonNoTargetTime {
		t.Errorf("reason = %q, want %q", rep.Diag.Reason, ReasonNoTargetTime)
	}
}
