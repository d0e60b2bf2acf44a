// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fluctus implements the Fluctus avionics telemetry codec.
//
// A telemetry line carries a one-character callsign, a packet type character
// ('b' for binary), a hex-encoded little-endian payload of 38 or 44 bytes and
// a radio diagnostics suffix:
//
//	FB3E0007...000000|Grssi-65/Gsnr6
//
// The package decodes such lines into immutable Records and encodes Records
// back to the identical wire form. It performs no I/O and holds no mutable
// state, so every function is safe for concurrent use.
package fluctus

// Packet framing
const (
	PacketTypeBinary      = 'b'
	PacketTypeBinaryUpper = 'B'

	DiagnosticsSeparator = '|'
	RSSIPrefix           = "Grssi"
	SNRPrefix            = "/Gsnr"
)

// Payload sizes
const (
	PayloadSize         = 38 // fixed fields only
	PayloadSizeWithTail = 44 // fixed fields + userIn1 + userIn2
	TailSize            = PayloadSizeWithTail - PayloadSize
)

// Fixed-point scale divisors
const (
	ScaleAccel       = 10
	ScaleBattVoltage = 1000
	ScaleMissionTime = 10
	ScaleGPS         = 1000000
)

// Field describes the position and encoding of one payload field.
type Field struct {
	Name   string  // relay key
	Offset int     // first byte
	Width  int     // bytes, 1..4
	Signed bool    // two's-complement, sign-extended on decode
	Scale  float64 // physical = raw / Scale (0 means unscaled)
}

// End returns the exclusive end offset of the field.
func (f Field) End() int {
	return f.Offset + f.Width
}

// Bits returns the width of the field in bits.
func (f Field) Bits() int {
	return f.Width * 8
}

// Min returns the smallest raw integer the field can hold.
func (f Field) Min() int64 {
	if !f.Signed {
		return 0
	}
	return -(int64(1) << (f.Bits() - 1))
}

// Max returns the largest raw integer the field can hold.
func (f Field) Max() int64 {
	if f.Signed {
		return int64(1)<<(f.Bits()-1) - 1
	}
	return int64(1)<<f.Bits() - 1
}

// Field indices into the payload layout, see FieldAt
const (
	FieldUID = iota
	FieldFW
	FieldRX
	FieldTimeMPU
	FieldStatus
	FieldAltitude
	FieldSpeedVert
	FieldAccel
	FieldAngle
	FieldBattVoltage
	FieldMissionTime
	FieldPyro
	FieldLogStatus
	FieldGPSLat
	FieldGPSLng
	FieldGPSState
	FieldWarnCode
	FieldMessageKind
	FieldMessageValue
	FieldUserIn1
	FieldUserIn2

	// FieldCount is the number of fields in a payload with the tail
	FieldCount
)

// layout is the byte layout of a telemetry payload. The last two entries form
// the optional tail and are only present in 44-byte payloads.
var layout = [FieldCount]Field{
	FieldUID:          {Name: "uid", Offset: 0, Width: 2, Signed: true},
	FieldFW:           {Name: "fw", Offset: 2, Width: 2, Signed: true},
	FieldRX:           {Name: "rx", Offset: 4, Width: 1, Signed: true},
	FieldTimeMPU:      {Name: "timeMPU", Offset: 5, Width: 4},
	FieldStatus:       {Name: "status", Offset: 9, Width: 1},
	FieldAltitude:     {Name: "altitude", Offset: 10, Width: 3, Signed: true},
	FieldSpeedVert:    {Name: "speedVert", Offset: 13, Width: 2},
	FieldAccel:        {Name: "accel", Offset: 15, Width: 2, Scale: ScaleAccel},
	FieldAngle:        {Name: "angle", Offset: 17, Width: 1},
	FieldBattVoltage:  {Name: "battVoltage", Offset: 18, Width: 2, Scale: ScaleBattVoltage},
	FieldMissionTime:  {Name: "time", Offset: 20, Width: 2, Scale: ScaleMissionTime},
	FieldPyro:         {Name: "pyroStates", Offset: 22, Width: 1},
	FieldLogStatus:    {Name: "logStatus", Offset: 23, Width: 1},
	FieldGPSLat:       {Name: "gpsLat", Offset: 24, Width: 4, Signed: true, Scale: ScaleGPS},
	FieldGPSLng:       {Name: "gpsLng", Offset: 28, Width: 4, Signed: true, Scale: ScaleGPS},
	FieldGPSState:     {Name: "gpsState", Offset: 32, Width: 1},
	FieldWarnCode:     {Name: "warnCode", Offset: 33, Width: 1},
	FieldMessageKind:  {Name: "messageKind", Offset: 34, Width: 1},
	FieldMessageValue: {Name: "messageValue", Offset: 35, Width: 3, Signed: true},
	FieldUserIn1:      {Name: "userIn1", Offset: 38, Width: 4},
	FieldUserIn2:      {Name: "userIn2", Offset: 42, Width: 2},
}

// FieldAt returns a copy of the layout entry for a Field index.
// It panics if id is out of range.
func FieldAt(id int) Field {
	return layout[id]
}

// Status represents the flight computer state machine
type Status uint8

// Status values
const (
	StatusIdle Status = iota
	StatusArmed
	StatusCountdownEngaged
	StatusWaitingForLaunch
	StatusAscent
	StatusDescent
	StatusTouchdown
)

// PyroState represents the 2-bit state of one pyro channel
type PyroState uint8

// Pyro channel state values. 0b10 is not assigned.
const (
	PyroDisabled       PyroState = 0x0
	PyroContinuity     PyroState = 0x1
	PyroEnabledOrFired PyroState = 0x3
)

// Pyro channel bit positions within the pyro byte
const (
	PyroShiftA = 0
	PyroShiftB = 2
	PyroShiftC = 4
	pyroMask   = 0x3
)

// MessageKind identifies the event carried in the message field
type MessageKind uint8

// Message kind values (ASCII letters on the wire)
const (
	MessageMaxAltitude     MessageKind = 'A'
	MessageMaxSpeed        MessageKind = 'S'
	MessageMaxAcceleration MessageKind = 'G'
)

// Minimum plausible battery voltage before an anomaly is reported
const MinBattVoltage = 3.0
