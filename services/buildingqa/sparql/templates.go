// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sparql generates and executes SPARQL queries against the Brick
// building-model graph. Generation comes in three flavors: deterministic
// templates (the default), an LLM fallback, and a context-augmented LLM
// fallback. The latter two exist for the escalation policy that fires
// after an empty result.
package sparql

import (
	"fmt"
	"strings"
)

// Brick schema prefixes shared by every generated query.
const (
	brickPrefix = "PREFIX brick: <https://brickschema.org/schema/Brick#>"
	refPrefix   = "PREFIX ref:   <https://brickschema.org/schema/Brick/ref#>"
	bldgPrefix  = "PREFIX bldg:  <urn:demo-building#>"
)

var allPrefixes = strings.Join([]string{brickPrefix, refPrefix, bldgPrefix}, "\n")

// metricToTypes maps a metric key to its Brick sensor classes.
var metricToTypes = map[string][]string{
	"temp": {"brick:Air_Temperature_Sensor"},
	"rh":   {"brick:Relative_Humidity_Sensor"},
	"lux":  {"brick:Illuminance_Sensor"},
	"co2":  {"brick:CO2_Level_Sensor"},
	"pm25": {"brick:PM2.5_Sensor"},
}

// metricOrder keeps the "all types" VALUES block deterministic.
var metricOrder = []string{"temp", "rh", "lux", "co2", "pm25"}

// metricTypes returns the sensor classes for a metric, or every known class
// when the metric is empty or unknown.
func metricTypes(metric string) []string {
	if types, ok := metricToTypes[metric]; ok {
		return types
	}
	var all []string
	for _, m := range metricOrder {
		all = append(all, metricToTypes[m]...)
	}
	return all
}

// valuesPtTypes renders the VALUES constraint limiting ?ptType to the
// sensor classes for metric.
func valuesPtTypes(metric string) string {
	return fmt.Sprintf("VALUES ?ptType { %s }", strings.Join(metricTypes(metric), " "))
}

// roomFilter constrains ?room to IRIs ending in _<roomNo>.
func roomFilter(roomNo string) string {
	return fmt.Sprintf(`FILTER(STRENDS(STR(?room), "_%s"))`, roomNo)
}

// RoomPointsTSID selects the sensor points and timeseries ids of one room,
// optionally constrained to a metric.
func RoomPointsTSID(roomNo, metric string) string {
	return strings.TrimSpace(fmt.Sprintf(`%s

SELECT ?room ?pt ?ptType ?tsid WHERE {
  ?room a brick:Room .
  %s

  ?pt a ?ptType ;
      brick:isPointOf ?room ;
      ref:hasTimeseriesReference [
        a ref:TimeseriesReference ;
        ref:hasTimeseriesId ?tsid
      ] .

  %s
}
LIMIT 50
`, allPrefixes, roomFilter(roomNo), valuesPtTypes(metric)))
}

// ListPointsAny selects points across all rooms. This is the catch-all
// query used when no room can be determined.
func ListPointsAny(limit int) string {
	if limit <= 0 {
		limit = 20
	}
	return strings.TrimSpace(fmt.Sprintf(`%s

SELECT ?room ?pt ?ptType ?tsid WHERE {
  ?room a brick:Room .

  ?pt a ?ptType ;
      brick:isPointOf ?room ;
      ref:hasTimeseriesReference [
        a ref:TimeseriesReference ;
        ref:hasTimeseriesId ?tsid
      ] .

  %s
}
LIMIT %d
`, allPrefixes, valuesPtTypes(""), limit))
}

// CountRooms counts distinct room entities.
func CountRooms() string {
	return strings.TrimSpace(fmt.Sprintf(`%s

SELECT (COUNT(DISTINCT ?room) AS ?roomCount)
WHERE {
  ?room a brick:Room .
}
`, allPrefixes))
}

// ListRooms lists every room, ordered for stable output.
func ListRooms() string {
	return strings.TrimSpace(fmt.Sprintf(`%s

SELECT DISTINCT ?room
WHERE {
  ?room a brick:Room .
}
ORDER BY ?room
`, allPrefixes))
}

// SensorExistence asks which rooms carry a sensor of the given metric,
// optionally restricted to one room.
func SensorExistence(roomNo, metric string) string {
	roomCondition := "?room a brick:Room ."
	if roomNo != "" {
		roomCondition = roomFilter(roomNo)
	}
	return strings.TrimSpace(fmt.Sprintf(`%s

SELECT DISTINCT ?room ?ptType
WHERE {
  %s
  ?pt a ?ptType ;
      brick:isPointOf ?room .
  %s
}
`, allPrefixes, roomCondition, valuesPtTypes(metric)))
}

// PlaceholderNoRows is the terminal fallback query. It is syntactically
// valid and guaranteed to bind nothing, so a pipeline whose escalation
// itself failed still executes and terminates deterministically.
func PlaceholderNoRows() string {
	return `SELECT ?nothing WHERE { FILTER(false) }`
}
