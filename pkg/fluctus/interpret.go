// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"fmt"
	"math"
)

// Raw returns the wire value of the status
func (s Status) Raw() uint8 {
	return uint8(s)
}

// Known reports whether the status is one of the defined states
func (s Status) Known() bool {
	return s <= StatusTouchdown
}

// String returns the human-readable status name, or Unknown(n)
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusArmed:
		return "Armed"
	case StatusCountdownEngaged:
		return "Countdown Engaged"
	case StatusWaitingForLaunch:
		return "Waiting for Launch"
	case StatusAscent:
		return "Ascent"
	case StatusDescent:
		return "Descent"
	case StatusTouchdown:
		return "Touchdown"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Raw returns the 2-bit wire value of the channel state
func (p PyroState) Raw() uint8 {
	return uint8(p) & pyroMask
}

// Known reports whether the channel state is assigned
func (p PyroState) Known() bool {
	switch p {
	case PyroDisabled, PyroContinuity, PyroEnabledOrFired:
		return true
	}
	return false
}

func (p PyroState) String() string {
	switch p {
	case PyroDisabled:
		return "Disabled"
	case PyroContinuity:
		return "Continuity"
	case PyroEnabledOrFired:
		return "Enabled / Fired"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// Raw returns the pyro byte as received
func (p Pyro) Raw() uint8 {
	return uint8(p)
}

// A returns the state of pyro channel A (bits 0-1)
func (p Pyro) A() PyroState {
	return PyroState(uint8(p) >> PyroShiftA & pyroMask)
}

// B returns the state of pyro channel B (bits 2-3)
func (p Pyro) B() PyroState {
	return PyroState(uint8(p) >> PyroShiftB & pyroMask)
}

// C returns the state of pyro channel C (bits 4-5)
func (p Pyro) C() PyroState {
	return PyroState(uint8(p) >> PyroShiftC & pyroMask)
}

// Spare returns bits 6-7, which carry no channel
func (p Pyro) Spare() uint8 {
	return uint8(p) >> 6
}

func (p Pyro) String() string {
	return fmt.Sprintf("A=%s B=%s C=%s", p.A(), p.B(), p.C())
}

// Raw returns the wire value of the message kind
func (k MessageKind) Raw() uint8 {
	return uint8(k)
}

// Known reports whether the message kind is defined
func (k MessageKind) Known() bool {
	switch k {
	case MessageMaxAltitude, MessageMaxSpeed, MessageMaxAcceleration:
		return true
	}
	return false
}

func (k MessageKind) String() string {
	switch k {
	case MessageMaxAltitude:
		return "Max Altitude"
	case MessageMaxSpeed:
		return "Max Speed"
	case MessageMaxAcceleration:
		return "Max Acceleration"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// scaleInt converts a raw field value to physical units
func scaleInt(f Field, raw int64) float64 {
	if f.Scale == 0 {
		return float64(raw)
	}
	return float64(raw) / f.Scale
}

// snapTolerance is the relative distance to an integer under which a scaled
// product is taken as that integer rather than truncated. It covers the
// rounding error of one float multiplication and nothing more.
const snapTolerance = 1e-12

// unscaleFloat converts a physical value back to its raw integer, truncating
// toward zero. Products that only miss an integer by float error snap to it,
// so 4.1 V encodes as 4100 mV. Any real shortfall is truncated: 0.29999999
// m/s² of accel encodes as 2, not 3.
func unscaleFloat(f Field, v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &RangeError{Field: f.Name, Value: v, Min: f.Min(), Max: f.Max()}
	}
	scaled := v
	if f.Scale != 0 {
		scaled = v * f.Scale
	}
	raw := math.Trunc(scaled)
	tol := snapTolerance * math.Max(1, math.Abs(scaled))
	if r := math.Round(scaled); math.Abs(scaled-r) <= tol {
		raw = r
	}
	if raw < float64(f.Min()) || raw > float64(f.Max()) {
		return 0, &RangeError{Field: f.Name, Value: v, Min: f.Min(), Max: f.Max()}
	}
	return int64(raw), nil
}
