// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent extracts structured query hints from a natural-language
// question about building sensors. The Hints record is the typed boundary
// between the free-form model output and the rest of the pipeline: every
// enum field is validated here, and anything unrecognized is normalized to
// its absent value instead of leaking downstream.
package intent

import (
	"regexp"
	"strings"
)

// QuestionType classifies what kind of answer a question wants.
type QuestionType string

const (
	// QuestionTimeseries asks about sensor readings over time.
	QuestionTimeseries QuestionType = "timeseries"

	// QuestionTopology asks about the building structure (rooms, sensors).
	QuestionTopology QuestionType = "topology"

	// QuestionOther is everything else, including unparseable questions.
	QuestionOther QuestionType = "other"
)

// TopologyIntent refines a topology question.
type TopologyIntent string

const (
	// TopologyCountRooms asks how many rooms exist.
	TopologyCountRooms TopologyIntent = "count_rooms"

	// TopologyListRooms asks which rooms exist.
	TopologyListRooms TopologyIntent = "list_rooms"

	// TopologySensorExistence asks whether rooms carry a sensor kind.
	TopologySensorExistence TopologyIntent = "sensor_existence"

	// TopologyNone means no specific topology intent was recognized.
	TopologyNone TopologyIntent = ""
)

// TimeRangeKind tags the shape of a requested time constraint.
type TimeRangeKind string

const (
	// RangeRelativeDays is a whole calendar day N days ago.
	RangeRelativeDays TimeRangeKind = "relative_days"

	// RangeLastHours is a trailing window ending now.
	RangeLastHours TimeRangeKind = "last_hours"

	// RangeAbsolute is an explicit [start, end) pair.
	RangeAbsolute TimeRangeKind = "absolute"

	// RangePointInTime is a single instant (widened to one hour downstream).
	RangePointInTime TimeRangeKind = "point_in_time"
)

// TimeRange is the tagged time constraint extracted from a question.
// Only the fields matching Kind are meaningful.
type TimeRange struct {
	Kind    TimeRangeKind `json:"kind"`
	DaysAgo int           `json:"days_ago,omitempty"`
	Hours   int           `json:"hours,omitempty"`
	Start   string        `json:"start,omitempty"`
	End     string        `json:"end,omitempty"`
	At      string        `json:"at,omitempty"`
}

// Hints is the structured intent extracted from one question.
//
// Description:
//
//	Set once by the intent step and treated as read-only afterwards.
//	All enum fields hold validated values; Room holds a bare room number
//	(digits only) and Metric one of the known metric keys. A zero-valued
//	Hints with QuestionType=QuestionOther and Uncertain=true is the
//	"neutral" record used when extraction fails.
type Hints struct {
	QuestionType   QuestionType   `json:"question_type"`
	TopologyIntent TopologyIntent `json:"topology_intent,omitempty"`
	NeedStats      bool           `json:"need_stats"`
	Need           []string       `json:"need,omitempty"`
	Room           string         `json:"room,omitempty"`
	Metric         string         `json:"metric,omitempty"`
	TimeRange      *TimeRange     `json:"time_range,omitempty"`
	Uncertain      bool           `json:"uncertain"`
	Ambiguities    []string       `json:"ambiguities,omitempty"`
}

// Neutral returns the degraded hints record used when the understander is
// unavailable or its output cannot be parsed. The pipeline continues with
// these; they route every question down the generic path.
func Neutral() Hints {
	return Hints{
		QuestionType: QuestionOther,
		Uncertain:    true,
	}
}

// allowedNeeds is the validated statistic vocabulary. Metric names outside
// this set are dropped at the boundary so the analysis registry never sees
// a name it cannot compute.
var allowedNeeds = map[string]bool{
	"avg":   true,
	"max":   true,
	"min":   true,
	"trend": true,
}

// allowedMetrics is the sensor metric vocabulary shared with the SPARQL
// templates and the analysis engine.
var allowedMetrics = map[string]bool{
	"temp": true,
	"rh":   true,
	"lux":  true,
	"co2":  true,
	"pm25": true,
}

// roomNumberRe matches a standalone 1-4 digit room number.
var roomNumberRe = regexp.MustCompile(`(^|\D)(\d{1,4})($|\D)`)

// NormalizeNeed lowercases, trims, and filters a requested statistic list
// down to the supported vocabulary. Returns nil when nothing survives.
func NormalizeNeed(raw []string) []string {
	var out []string
	for _, n := range raw {
		n = strings.ToLower(strings.TrimSpace(n))
		if allowedNeeds[n] {
			out = append(out, n)
		}
	}
	return out
}

// NormalizeQuestionType maps a free-form type string onto the enum,
// degrading to QuestionOther.
func NormalizeQuestionType(raw string) QuestionType {
	switch QuestionType(strings.ToLower(strings.TrimSpace(raw))) {
	case QuestionTimeseries:
		return QuestionTimeseries
	case QuestionTopology:
		return QuestionTopology
	default:
		return QuestionOther
	}
}

// NormalizeTopologyIntent maps a free-form intent string onto the enum,
// degrading to TopologyNone.
func NormalizeTopologyIntent(raw string) TopologyIntent {
	switch TopologyIntent(strings.ToLower(strings.TrimSpace(raw))) {
	case TopologyCountRooms:
		return TopologyCountRooms
	case TopologyListRooms:
		return TopologyListRooms
	case TopologySensorExistence:
		return TopologySensorExistence
	default:
		return TopologyNone
	}
}

// NormalizeMetric validates a metric key, returning "" for unknown values.
func NormalizeMetric(raw string) string {
	m := strings.ToLower(strings.TrimSpace(raw))
	if allowedMetrics[m] {
		return m
	}
	return ""
}

// NormalizeRoom extracts a bare room number from a free-form room string.
// "room 1205" and "bldg:Room_1205" both yield "1205". Returns "" when no
// standalone 1-4 digit run is present.
func NormalizeRoom(raw string) string {
	m := roomNumberRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[2]
}

// NormalizeTimeRange validates a decoded time range. A range without a
// recognized kind is absent, not an error.
func NormalizeTimeRange(tr *TimeRange) *TimeRange {
	if tr == nil {
		return nil
	}
	switch tr.Kind {
	case RangeRelativeDays, RangeLastHours, RangeAbsolute, RangePointInTime:
		return tr
	default:
		return nil
	}
}
