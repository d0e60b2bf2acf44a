// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package track turns the GPS fixes in a telemetry stream into a GPX track.
package track

import (
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

// Creator is written into the GPX header
const Creator = "fluctus-relay"

// Builder accumulates records with a GPS fix into a single track segment.
// Point times are start plus the flight computer's MPU time.
type Builder struct {
	name    string
	start   time.Time
	points  []gpx.GPXPoint
	skipped int
}

// NewBuilder creates a builder for a track called name
func NewBuilder(name string, start time.Time) *Builder {
	return &Builder{name: name, start: start}
}

// HasFix reports whether the record carries a usable position
func HasFix(r *fluctus.Record) bool {
	if r.GPSState == 0 {
		return false
	}
	if r.GPSLat == 0 && r.GPSLng == 0 {
		return false
	}
	return r.GPSLat >= -90 && r.GPSLat <= 90 && r.GPSLng >= -180 && r.GPSLng <= 180
}

// Add appends the record's position if it has a fix
func (b *Builder) Add(r *fluctus.Record) bool {
	if r == nil || !HasFix(r) {
		b.skipped++
		return false
	}
	b.points = append(b.points, gpx.GPXPoint{
		Point: gpx.Point{
			Latitude:  r.GPSLat,
			Longitude: r.GPSLng,
			Elevation: *gpx.NewNullableFloat64(float64(r.Altitude)),
		},
		Timestamp: b.start.Add(time.Duration(r.TimeMPU) * time.Millisecond).UTC(),
	})
	return true
}

// Len returns the number of track points
func (b *Builder) Len() int {
	return len(b.points)
}

// Skipped returns the number of records without a fix
func (b *Builder) Skipped() int {
	return b.skipped
}

// GPX returns the track as a GPX document
func (b *Builder) GPX() *gpx.GPX {
	points := make([]gpx.GPXPoint, len(b.points))
	copy(points, b.points)
	return &gpx.GPX{
		Version: "1.1",
		Creator: Creator,
		Name:    b.name,
		Tracks: []gpx.GPXTrack{{
			Name:     b.name,
			Segments: []gpx.GPXTrackSegment{{Points: points}},
		}},
	}
}

// XML renders the track as indented GPX 1.1
func (b *Builder) XML() ([]byte, error) {
	return b.GPX().ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
