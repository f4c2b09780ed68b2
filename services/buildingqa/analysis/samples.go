// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis computes per-series statistics over sensor timeseries.
// The statistic registry is intentionally small (avg, max, min, trend) and
// failures are reported per series and per statistic rather than raised:
// one broken series never suppresses the others.
package analysis

import (
	"context"
	"strings"
	"time"
)

// Sample is one timestamped sensor reading.
type Sample struct {
	Time  time.Time
	Value float64
}

// SampleSource fetches the raw readings of one series inside a window.
//
// Description:
//
//	The window is half-open [start, end). Implementations return readings
//	ordered by time ascending. An unknown series yields an empty slice,
//	not an error; errors are reserved for backend failures.
//
// Thread Safety: Implementations must be safe for concurrent use.
type SampleSource interface {
	Fetch(ctx context.Context, tsid string, start, end time.Time) ([]Sample, error)
}

// metricInfo describes the physical quantity a series measures,
// recovered from the series id suffix.
type metricInfo struct {
	metric   string
	metricZH string
	unit     string
}

// metricFromTSID maps a series id onto its metric by suffix convention
// (r1205.temp, r1205.rh, ...). Unknown suffixes degrade to a unitless
// "value" so reports stay renderable.
func metricFromTSID(tsid string) metricInfo {
	t := strings.ToLower(tsid)
	switch {
	case strings.Contains(t, ".temp"):
		return metricInfo{"temperature", "温度", "°C"}
	case strings.Contains(t, ".rh"):
		return metricInfo{"humidity", "湿度", "%RH"}
	case strings.Contains(t, ".lux"):
		return metricInfo{"illuminance", "光照强度", "lux"}
	case strings.Contains(t, ".co2"):
		return metricInfo{"co2", "二氧化碳浓度", "ppm"}
	case strings.Contains(t, ".pm25"), strings.Contains(t, ".pm2.5"):
		return metricInfo{"pm25", "PM2.5 浓度", "µg/m³"}
	default:
		return metricInfo{"value", "数值", ""}
	}
}
