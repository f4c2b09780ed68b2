// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

// Context-compaction limits. Raw query results can run to thousands of
// rows; the model only needs a representative slice.
const (
	maxRowsInContext     = 50
	maxAnalysisInContext = 20
)

// shortIRI reduces an IRI to its local name: everything after the last
// '#', then after the last '/'. Plain strings pass through unchanged.
func shortIRI(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	if strings.Contains(s, "/") {
		s = strings.TrimRight(s, "/")
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
	}
	return s
}

// rowView is the compacted per-row record handed to the model.
type rowView struct {
	Room string `json:"room"`
	Name string `json:"name"`
	Type string `json:"type"`
	TSID string `json:"tsid"`
}

// firstOf returns the first non-empty value among the named row fields.
func firstOf(row sparql.Row, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

// cleanRows compacts timeseries result rows: local names only, capped at
// maxRowsInContext. Topology rows are kept whole (and uncapped) because
// the row set itself is the answer.
func cleanRows(rows []sparql.Row, topology bool) []map[string]string {
	if len(rows) == 0 {
		return []map[string]string{}
	}
	if topology {
		out := make([]map[string]string, 0, len(rows))
		for _, r := range rows {
			view := make(map[string]string, len(r))
			for k, v := range r {
				view[k] = shortIRI(v)
			}
			out = append(out, view)
		}
		return out
	}

	out := make([]map[string]string, 0, min(len(rows), maxRowsInContext))
	for _, r := range rows {
		out = append(out, map[string]string{
			"room": shortIRI(firstOf(r, "room", "Room")),
			"name": shortIRI(firstOf(r, "pt", "sensor", "point")),
			"type": shortIRI(firstOf(r, "ptType", "type", "pttype")),
			"tsid": firstOf(r, "tsid", "ts_id"),
		})
		if len(out) >= maxRowsInContext {
			break
		}
	}
	return out
}

// analysisView flattens one series report for the model: requested
// statistics become top-level nullable fields.
type analysisView struct {
	TSID     string   `json:"tsid"`
	Span     string   `json:"span,omitempty"`
	MetricZH string   `json:"metric_zh,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	N        int      `json:"n"`
	Value    *float64 `json:"value"`
	Avg      *float64 `json:"avg"`
	Max      *float64 `json:"max"`
	Min      *float64 `json:"min"`
	Trend    string   `json:"trend,omitempty"`
}

func statNumber(stats map[string]*analysis.StatValue, name string) *float64 {
	if sv := stats[name]; sv != nil {
		return sv.Number
	}
	return nil
}

// cleanAnalysis flattens reports, capped at maxAnalysisInContext.
func cleanAnalysis(reports []analysis.SeriesReport) []analysisView {
	out := make([]analysisView, 0, min(len(reports), maxAnalysisInContext))
	for _, rep := range reports {
		view := analysisView{
			TSID:     rep.TSID,
			Span:     rep.Span,
			MetricZH: rep.MetricZH,
			Unit:     rep.Unit,
			N:        rep.N,
			Value:    rep.Value,
			Avg:      statNumber(rep.Stats, "avg"),
			Max:      statNumber(rep.Stats, "max"),
			Min:      statNumber(rep.Stats, "min"),
		}
		if sv := rep.Stats["trend"]; sv != nil {
			view.Trend = sv.Label
		}
		out = append(out, view)
		if len(out) >= maxAnalysisInContext {
			break
		}
	}
	return out
}

var leadingDateRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// justDate extracts the calendar date from a local ISO timestamp, "" when
// the input carries none.
func justDate(iso string) string {
	m := leadingDateRe.FindStringSubmatch(strings.TrimSpace(iso))
	if m == nil {
		return ""
	}
	return m[1]
}

// roomUniverse deduplicates the full-building room listing into bare local
// names, preserving first-seen order.
func roomUniverse(rows []sparql.Row) []string {
	out := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		id := shortIRI(firstOf(r, "room", "Room", "room_id", "space"))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// stripFence removes a wrapping code fence from a model reply.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = t[3:]
		if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], " \t") {
			t = t[nl+1:]
		}
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	}
	return strings.TrimSpace(t)
}
