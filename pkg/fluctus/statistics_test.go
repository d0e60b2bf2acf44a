// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"strings"
	"testing"
	"time"
)

// ============================================================
// Anomaly Tests
// ============================================================

func TestCheckRecord_Sample(t *testing.T) {
	if anomalies := CheckRecord(mustDecode(t, sampleLine)); len(anomalies) != 0 {
		t.Errorf("sample should have no anomalies, got %v", anomalies)
	}
}

func TestCheckRecord_Anomalies(t *testing.T) {
	tests := []struct {
		name string
		set  func(r *Record)
		want []AnomalyType
	}{
		{"unknown status", func(r *Record) { r.Status = Status(7) }, []AnomalyType{AnomalyUnknownStatus}},
		{"unknown pyro B", func(r *Record) { r.Pyro = NewPyro(PyroDisabled, PyroState(2), PyroDisabled) }, []AnomalyType{AnomalyUnknownPyro}},
		{"two unknown pyro", func(r *Record) { r.Pyro = 0x22 }, []AnomalyType{AnomalyUnknownPyro, AnomalyUnknownPyro}},
		{"spare bits", func(r *Record) { r.Pyro = 0xC0 }, []AnomalyType{AnomalySpareBits}},
		{"unknown message", func(r *Record) { r.Message = Message{Kind: 'Z', Value: 5} }, []AnomalyType{AnomalyUnknownMessage}},
		{"empty message slot", func(r *Record) { r.Message = Message{} }, nil},
		{"latitude out of range", func(r *Record) { r.GPSLat = 91 }, []AnomalyType{AnomalyInvalidGPS}},
		{"longitude out of range", func(r *Record) { r.GPSLng = -181 }, []AnomalyType{AnomalyInvalidGPS}},
		{"low battery", func(r *Record) { r.BattVoltage = 2.9 }, []AnomalyType{AnomalyLowBattery}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustDecode(t, sampleLine)
			tt.set(r)
			got := CheckRecord(r)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d anomalies %v, expected %d", len(got), got, len(tt.want))
			}
			for i, a := range got {
				if a.Type != tt.want[i] {
					t.Errorf("anomaly %d = %s, expected %s", i, a.Type, tt.want[i])
				}
				if a.Error() == "" {
					t.Errorf("anomaly %d has an empty message", i)
				}
			}
		})
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Observe(t *testing.T) {
	stats := NewStatistics()

	lines := []string{
		sampleLine,
		"startok",
		"",
		"Fb3E0|Grssi-65/Gsnr6",
		"Fb00|Grssi-65/Gsnr6",
		sampleLine,
	}
	for _, line := range lines {
		r, err := Decode(line)
		stats.Observe(r, err)
	}

	low := mustDecode(t, sampleLine)
	low.BattVoltage = 2.5
	if anomalies := stats.Observe(low, nil); len(anomalies) != 1 {
		t.Errorf("expected one anomaly, got %v", anomalies)
	}

	checks := []struct {
		name      string
		got, want uint64
	}{
		{"TotalLines", stats.TotalLines, 7},
		{"NonTelemetry", stats.NonTelemetry, 2},
		{"TotalPackets", stats.TotalPackets, 5},
		{"ValidPackets", stats.ValidPackets, 2},
		{"MalformedPackets", stats.MalformedPackets, 1},
		{"TruncatedPackets", stats.TruncatedPackets, 1},
		{"AnomalousValues", stats.AnomalousValues, 1},
		{"LowBattery", stats.LowBattery, 1},
		{"Errors", stats.Errors(), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, expected %d", c.name, c.got, c.want)
		}
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	stats := NewStatistics()
	stats.StartTime = time.Now().Add(-10 * time.Second)
	r, err := Decode("Fb00|Grssi-65/Gsnr6")
	stats.Observe(r, err)

	out := stats.String()
	for _, want := range []string{"=== Statistics", "Total Packets:", "Truncated Pkts:", "Packet Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if stats.PacketRate <= 0 {
		t.Errorf("packet rate = %v, expected > 0", stats.PacketRate)
	}

	stats.Reset()
	if stats.TotalLines != 0 || stats.TruncatedPackets != 0 {
		t.Error("Reset should clear counters")
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatRecord(t *testing.T) {
	r := mustDecode(t, sampleLine)
	received := time.Date(2025, 6, 1, 12, 30, 45, 123000000, time.UTC)

	out := FormatRecord(r, received)
	for _, want := range []string{
		"[12:30:45.123] FB uid=62 fw=263",
		"Status: Idle (0)",
		"Accel: 10.8",
		"Battery: 4.233 V",
		"Mission Time: 6543.6 s",
		"Message: Max Speed (83)",
		"RSSI -65 dBm, SNR 6 dB",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted record missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "User Inputs") {
		t.Error("record without tail should not show user inputs")
	}
}

func TestFormatAnomalies(t *testing.T) {
	if FormatAnomalies(nil) != "" {
		t.Error("no anomalies should format as empty")
	}
	r := mustDecode(t, sampleLine)
	r.BattVoltage = 1
	out := FormatAnomalies(CheckRecord(r))
	if !strings.Contains(out, "ANOMALY [low battery]") {
		t.Errorf("unexpected anomaly output: %q", out)
	}
}
