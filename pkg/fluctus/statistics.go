// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks line counts and error rates. It is not safe for
// concurrent use; callers that share one must serialize access.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines       uint64
	NonTelemetry     uint64
	TotalPackets     uint64
	ValidPackets     uint64
	MalformedPackets uint64
	TruncatedPackets uint64
	DecodeErrors     uint64
	AnomalousValues  uint64
	UnknownEnums     uint64
	InvalidGPS       uint64
	LowBattery       uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Observe records the outcome of decoding one line: a record, a decode error,
// or neither for lines that were not telemetry.
func (s *Statistics) Observe(r *Record, decodeErr error) []ValidationError {
	if r == nil && decodeErr == nil {
		s.TotalLines++
		s.NonTelemetry++
		s.LastUpdateTime = time.Now()
		return nil
	}
	var anomalies []ValidationError
	if r != nil {
		anomalies = CheckRecord(r)
	}
	s.Update(r, decodeErr, anomalies)
	return anomalies
}

// Update updates statistics based on a telemetry packet and its anomalies
func (s *Statistics) Update(r *Record, decodeErr error, anomalies []ValidationError) {
	s.TotalLines++
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrMalformedPacket):
			s.MalformedPackets++
		case errors.Is(decodeErr, ErrTruncatedPayload):
			s.TruncatedPackets++
		default:
			s.DecodeErrors++
		}
		return // Don't process packet further if decode failed
	}

	if len(anomalies) == 0 {
		s.ValidPackets++
		return
	}

	s.AnomalousValues++
	for _, a := range anomalies {
		switch a.Type {
		case AnomalyUnknownStatus, AnomalyUnknownPyro, AnomalyUnknownMessage, AnomalySpareBits:
			s.UnknownEnums++
		case AnomalyInvalidGPS:
			s.InvalidGPS++
		case AnomalyLowBattery:
			s.LowBattery++
		}
	}
}

// Errors returns the number of packets that failed to decode
func (s *Statistics) Errors() uint64 {
	return s.MalformedPackets + s.TruncatedPackets + s.DecodeErrors
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.Errors()+s.AnomalousValues) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, malformedPercent, truncatedPercent, anomalousPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
		malformedPercent = float64(s.MalformedPackets) * 100.0 / float64(s.TotalPackets)
		truncatedPercent = float64(s.TruncatedPackets) * 100.0 / float64(s.TotalPackets)
		anomalousPercent = float64(s.AnomalousValues) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Non-telemetry:   %8d\n", s.NonTelemetry)
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)

	if s.MalformedPackets > 0 {
		result += fmt.Sprintf("Malformed Pkts:  %8d (%.1f%%)\n", s.MalformedPackets, malformedPercent)
	}
	if s.TruncatedPackets > 0 {
		result += fmt.Sprintf("Truncated Pkts:  %8d (%.1f%%)\n", s.TruncatedPackets, truncatedPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Pkts:  %8d (%.1f%%)\n", s.AnomalousValues, anomalousPercent)
		if s.UnknownEnums > 0 {
			result += fmt.Sprintf("  Unknown Codes:    %5d\n", s.UnknownEnums)
		}
		if s.InvalidGPS > 0 {
			result += fmt.Sprintf("  Invalid GPS:      %5d\n", s.InvalidGPS)
		}
		if s.LowBattery > 0 {
			result += fmt.Sprintf("  Low Battery:      %5d\n", s.LowBattery)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
