// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package track

import (
	"testing"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

func fix(lat, lng float64, alt int32, timeMPU uint32) *fluctus.Record {
	return &fluctus.Record{
		Callsign:   'F',
		PacketType: 'b',
		GPSState:   1,
		GPSLat:     lat,
		GPSLng:     lng,
		Altitude:   alt,
		TimeMPU:    timeMPU,
	}
}

func TestHasFix(t *testing.T) {
	tests := []struct {
		name string
		rec  *fluctus.Record
		want bool
	}{
		{"valid", fix(-33.86, 151.21, 10, 0), true},
		{"no gps state", &fluctus.Record{GPSLat: -33.86, GPSLng: 151.21}, false},
		{"null island", fix(0, 0, 0, 0), false},
		{"latitude out of range", fix(95, 10, 0, 0), false},
		{"longitude out of range", fix(10, -200, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasFix(tt.rec); got != tt.want {
				t.Errorf("HasFix = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_Add(t *testing.T) {
	start := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	b := NewBuilder("flight-1", start)

	if !b.Add(fix(-33.8600, 151.2100, 5, 1000)) {
		t.Fatal("record with fix was skipped")
	}
	if b.Add(&fluctus.Record{}) {
		t.Error("record without fix was added")
	}
	if b.Add(nil) {
		t.Error("nil record was added")
	}
	b.Add(fix(-33.8601, 151.2102, 420, 2500))

	if b.Len() != 2 || b.Skipped() != 2 {
		t.Fatalf("Len = %d, Skipped = %d", b.Len(), b.Skipped())
	}

	g := b.GPX()
	if len(g.Tracks) != 1 || len(g.Tracks[0].Segments) != 1 {
		t.Fatalf("unexpected track structure: %+v", g.Tracks)
	}
	points := g.Tracks[0].Segments[0].Points
	if points[1].Elevation.Value() != 420 {
		t.Errorf("elevation = %v, expected 420", points[1].Elevation.Value())
	}
	if want := start.Add(2500 * time.Millisecond); !points[1].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, expected %v", points[1].Timestamp, want)
	}
}

func TestBuilder_XML(t *testing.T) {
	start := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	b := NewBuilder("flight-1", start)
	b.Add(fix(-33.8600, 151.2100, 5, 0))
	b.Add(fix(-33.8610, 151.2110, 300, 1000))

	data, err := b.XML()
	if err != nil {
		t.Fatalf("XML failed: %v", err)
	}

	parsed, err := gpx.ParseBytes(data)
	if err != nil {
		t.Fatalf("ParseBytes failed: %v\n%s", err, data)
	}
	if parsed.Creator != Creator {
		t.Errorf("creator = %q", parsed.Creator)
	}
	if len(parsed.Tracks) != 1 || len(parsed.Tracks[0].Segments[0].Points) != 2 {
		t.Fatalf("unexpected parsed track: %+v", parsed.Tracks)
	}
	p := parsed.Tracks[0].Segments[0].Points[1]
	if p.Latitude != -33.861 || p.Longitude != 151.211 {
		t.Errorf("position = %v, %v", p.Latitude, p.Longitude)
	}
	if parsed.Length2D() <= 0 {
		t.Error("track should have a positive length")
	}
}
