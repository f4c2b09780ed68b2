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
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxConfig configures the InfluxDB-backed sample source.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// DefaultInfluxConfig returns local-development defaults.
func DefaultInfluxConfig() InfluxConfig {
	return InfluxConfig{
		URL:         "http://localhost:8086",
		Org:         "building",
		Bucket:      "sensors",
		Measurement: "readings",
	}
}

// InfluxSource reads sensor samples from an InfluxDB bucket.
//
// Description:
//
//	Readings are stored one measurement per bucket with the series id as
//	the tsid tag. Fetch issues a Flux range query and returns the samples
//	sorted by time ascending.
//
// Thread Safety: Safe for concurrent use.
type InfluxSource struct {
	cfg      InfluxConfig
	queryAPI api.QueryAPI
	logger   *slog.Logger
}

// NewInfluxSource creates the source and its underlying client.
//
// Inputs:
//
//	cfg    - Connection settings. URL and Bucket must not be empty.
//	logger - Logger instance. Nil uses slog.Default().
func NewInfluxSource(cfg InfluxConfig, logger *slog.Logger) (*InfluxSource, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("analysis: influx URL and bucket must not be empty")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "readings"
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSource{
		cfg:      cfg,
		queryAPI: client.QueryAPI(cfg.Org),
		logger:   logger,
	}, nil
}

// Fetch returns the readings of one series inside [start, end).
//
// Thread Safety: Safe for concurrent use.
func (s *InfluxSource) Fetch(ctx context.Context, tsid string, start, end time.Time) ([]Sample, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r.tsid == %q)
  |> keep(columns: ["_time", "_value"])`,
		s.cfg.Bucket,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		s.cfg.Measurement,
		tsid,
	)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}

	var samples []Sample
	for result.Next() {
		record := result.Record()
		v, ok := record.Value().(float64)
		if !ok {
			continue
		}
		samples = append(samples, Sample{Time: record.Time(), Value: v})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx result: %w", err)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
	s.logger.Debug("samples fetched",
		slog.String("tsid", tsid),
		slog.Int("count", len(samples)),
	)
	return samples, nil
}
