// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"fmt"
	"time"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
)

// Labels for windows that carry no bounds.
const (
	labelNoTimeConstraint = "(no time constraint)"
	labelTimeParseFailed  = "(time parse failed)"
)

// timestampFormats are the accepted literal forms, tried in order.
var timestampFormats = []string{"2006-01-02T15:04", "2006-01-02"}

// pointInTimeSpan widens a requested instant into a queryable window.
const pointInTimeSpan = time.Hour

// NormalizeTime resolves a tagged time range into a concrete local window.
//
// Description:
//
//	Pure function: all time arithmetic is anchored on the supplied now and
//	location. An absent range yields an unbounded OK window rather than an
//	invented default; a malformed literal yields OK=false with the parse
//	error recorded, and the pipeline continues without bounds. Windows are
//	inclusive-start, exclusive-end.
func NormalizeTime(tr *intent.TimeRange, now time.Time, loc *time.Location) TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	nowLocal := now.In(loc)

	if tr == nil {
		return TimeWindow{Label: labelNoTimeConstraint, OK: true}
	}

	switch tr.Kind {
	case intent.RangeRelativeDays:
		return windowRelativeDays(nowLocal, tr.DaysAgo)

	case intent.RangeLastHours:
		return windowLastHours(nowLocal, tr.Hours)

	case intent.RangeAbsolute:
		return windowAbsolute(tr.Start, tr.End, loc)

	case intent.RangePointInTime:
		return windowPointInTime(tr.At, loc)

	default:
		return TimeWindow{Label: labelNoTimeConstraint, OK: true}
	}
}

// windowRelativeDays covers the whole calendar day daysAgo days back.
func windowRelativeDays(nowLocal time.Time, daysAgo int) TimeWindow {
	if daysAgo < 0 {
		return parseFailure(fmt.Errorf("days_ago must not be negative: %d", daysAgo))
	}

	y, m, d := nowLocal.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, nowLocal.Location())
	start := startOfToday.AddDate(0, 0, -daysAgo)
	end := start.AddDate(0, 0, 1)

	label := fmt.Sprintf("%d days ago", daysAgo)
	if daysAgo == 1 {
		label = "yesterday"
	}
	return TimeWindow{Start: &start, End: &end, Label: label, OK: true}
}

// windowLastHours is the trailing window ending now, floored to one hour.
func windowLastHours(nowLocal time.Time, hours int) TimeWindow {
	if hours < 1 {
		hours = 1
	}
	end := nowLocal
	start := end.Add(-time.Duration(hours) * time.Hour)
	return TimeWindow{
		Start: &start,
		End:   &end,
		Label: fmt.Sprintf("last %d hours", hours),
		OK:    true,
	}
}

// windowAbsolute parses explicit bounds, both in the local zone.
func windowAbsolute(startStr, endStr string, loc *time.Location) TimeWindow {
	start, err := parseLocal(startStr, loc)
	if err != nil {
		return parseFailure(err)
	}
	end, err := parseLocal(endStr, loc)
	if err != nil {
		return parseFailure(err)
	}
	return TimeWindow{
		Start: &start,
		End:   &end,
		Label: fmt.Sprintf("%s ~ %s", startStr, endStr),
		OK:    true,
	}
}

// windowPointInTime widens an instant to [at, at+1h). The label is the
// literal timestamp string as the user supplied it.
func windowPointInTime(atStr string, loc *time.Location) TimeWindow {
	at, err := parseLocal(atStr, loc)
	if err != nil {
		return parseFailure(err)
	}
	end := at.Add(pointInTimeSpan)
	return TimeWindow{Start: &at, End: &end, Label: atStr, OK: true}
}

// parseLocal accepts "2006-01-02T15:04" or a bare date (midnight).
func parseLocal(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampFormats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func parseFailure(err error) TimeWindow {
	return TimeWindow{
		Label: labelTimeParseFailed,
		OK:    false,
		Error: fmt.Sprintf("time parse failed: %v", err),
	}
}
