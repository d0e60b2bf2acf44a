// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import "fmt"

// AnomalyType represents different kinds of suspicious telemetry values
type AnomalyType int

const (
	AnomalyUnknownStatus AnomalyType = iota
	AnomalyUnknownPyro
	AnomalyUnknownMessage
	AnomalyInvalidGPS
	AnomalyLowBattery
	AnomalySpareBits
)

func (t AnomalyType) String() string {
	switch t {
	case AnomalyUnknownStatus:
		return "unknown status"
	case AnomalyUnknownPyro:
		return "unknown pyro state"
	case AnomalyUnknownMessage:
		return "unknown message"
	case AnomalyInvalidGPS:
		return "invalid GPS"
	case AnomalyLowBattery:
		return "low battery"
	case AnomalySpareBits:
		return "spare bits set"
	default:
		return "unknown anomaly"
	}
}

// ValidationError describes one anomaly found in a decoded record.
// Anomalies never make a record invalid; they are reported alongside it.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// CheckRecord inspects a decoded record for out-of-family values
// Returns a slice of anomalies (empty if nothing looks wrong)
func CheckRecord(r *Record) []ValidationError {
	errors := []ValidationError{}

	if !r.Status.Known() {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownStatus,
			Message: fmt.Sprintf("Unknown status code=%d (max %d)", r.Status.Raw(), StatusTouchdown.Raw()),
			Details: map[string]interface{}{"status": r.Status.Raw()},
		})
	}

	channels := []struct {
		name  string
		state PyroState
	}{
		{"A", r.Pyro.A()},
		{"B", r.Pyro.B()},
		{"C", r.Pyro.C()},
	}
	for _, ch := range channels {
		if !ch.state.Known() {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnknownPyro,
				Message: fmt.Sprintf("Unknown pyro %s state=%d", ch.name, ch.state.Raw()),
				Details: map[string]interface{}{"channel": ch.name, "state": ch.state.Raw()},
			})
		}
	}

	if r.Pyro.Spare() != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalySpareBits,
			Message: fmt.Sprintf("Pyro spare bits set (raw=0x%02X)", r.Pyro.Raw()),
			Details: map[string]interface{}{"raw": r.Pyro.Raw()},
		})
	}

	// Kind 0 with value 0 is an empty message slot, not an anomaly
	if !r.Message.Kind.Known() && r.Message.Raw() != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownMessage,
			Message: fmt.Sprintf("Unknown message kind=%d value=%d", r.Message.Kind.Raw(), r.Message.Value),
			Details: map[string]interface{}{"kind": r.Message.Kind.Raw(), "value": r.Message.Value},
		})
	}

	if r.GPSLat < -90 || r.GPSLat > 90 || r.GPSLng < -180 || r.GPSLng > 180 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidGPS,
			Message: fmt.Sprintf("GPS position out of range (lat=%.6f, lng=%.6f)", r.GPSLat, r.GPSLng),
			Details: map[string]interface{}{"lat": r.GPSLat, "lng": r.GPSLng},
		})
	}

	if r.BattVoltage < MinBattVoltage {
		errors = append(errors, ValidationError{
			Type:    AnomalyLowBattery,
			Message: fmt.Sprintf("Battery voltage low (%.3f V, min %.1f V)", r.BattVoltage, MinBattVoltage),
			Details: map[string]interface{}{"value": r.BattVoltage, "min": MinBattVoltage},
		})
	}

	return errors
}
