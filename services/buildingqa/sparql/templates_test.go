// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparql

import (
	"strings"
	"testing"
)

func TestRoomPointsTSID_RoomAndMetric(t *testing.T) {
	q := RoomPointsTSID("1205", "temp")

	if !strings.Contains(q, "PREFIX brick:") {
		t.Error("expected brick prefix")
	}
	if !strings.Contains(q, `FILTER(STRENDS(STR(?room), "_1205"))`) {
		t.Errorf("expected room filter for 1205, got:\n%s", q)
	}
	if !strings.Contains(q, "VALUES ?ptType { brick:Air_Temperature_Sensor }") {
		t.Errorf("expected temperature sensor VALUES block, got:\n%s", q)
	}
	if !strings.Contains(q, "ref:hasTimeseriesId ?tsid") {
		t.Error("expected timeseries id binding")
	}
}

func TestRoomPointsTSID_UnknownMetricUsesAllTypes(t *testing.T) {
	q := RoomPointsTSID("7", "")

	for _, cls := range []string{
		"brick:Air_Temperature_Sensor",
		"brick:Relative_Humidity_Sensor",
		"brick:Illuminance_Sensor",
		"brick:CO2_Level_Sensor",
		"brick:PM2.5_Sensor",
	} {
		if !strings.Contains(q, cls) {
			t.Errorf("expected %s in VALUES block", cls)
		}
	}
}

func TestListPointsAny_LimitClamping(t *testing.T) {
	if q := ListPointsAny(0); !strings.Contains(q, "LIMIT 20") {
		t.Error("zero limit should clamp to 20")
	}
	if q := ListPointsAny(-3); !strings.Contains(q, "LIMIT 20") {
		t.Error("negative limit should clamp to 20")
	}
	if q := ListPointsAny(7); !strings.Contains(q, "LIMIT 7") {
		t.Error("explicit limit should pass through")
	}
}

func TestCountRooms(t *testing.T) {
	q := CountRooms()
	if !strings.Contains(q, "COUNT(DISTINCT ?room)") {
		t.Errorf("expected room count aggregate, got:\n%s", q)
	}
}

func TestSensorExistence_WithAndWithoutRoom(t *testing.T) {
	withRoom := SensorExistence("301", "co2")
	if !strings.Contains(withRoom, `"_301"`) {
		t.Error("expected room filter when room given")
	}
	if !strings.Contains(withRoom, "brick:CO2_Level_Sensor") {
		t.Error("expected CO2 sensor class")
	}

	noRoom := SensorExistence("", "co2")
	if strings.Contains(noRoom, "STRENDS") {
		t.Error("expected no room filter when room empty")
	}
	if !strings.Contains(noRoom, "?room a brick:Room .") {
		t.Error("expected unconstrained room pattern")
	}
}

func TestPlaceholderNoRows_PassesSyntaxCheck(t *testing.T) {
	q := PlaceholderNoRows()
	if !BasicSyntaxCheck(q) {
		t.Fatalf("placeholder query must survive the precheck: %s", q)
	}
	if !strings.Contains(q, "FILTER(false)") {
		t.Error("placeholder must be guaranteed empty")
	}
}

func TestTemplates_AllPassSyntaxCheck(t *testing.T) {
	queries := map[string]string{
		"room_points":      RoomPointsTSID("1205", "rh"),
		"list_points":      ListPointsAny(20),
		"count_rooms":      CountRooms(),
		"list_rooms":       ListRooms(),
		"sensor_existence": SensorExistence("12", "lux"),
	}
	for name, q := range queries {
		if !BasicSyntaxCheck(q) {
			t.Errorf("%s: generated template failed the precheck:\n%s", name, q)
		}
	}
}
