// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import "fmt"

// Decode parses one telemetry line into a Record.
//
// Returns nil, nil for lines that are not binary telemetry, so callers can
// skip them silently. Any error means the whole line was rejected; a partial
// Record is never returned.
func Decode(line string) (*Record, error) {
	frame, err := ParseLine(line)
	if err != nil || frame == nil {
		return nil, err
	}
	return DecodeFrame(frame)
}

// DecodeFrame decodes the payload of an already validated frame
func DecodeFrame(f *Frame) (*Record, error) {
	return DecodePayload(f.Callsign, f.PacketType, f.Payload, f.Diagnostics)
}

// DecodePayload decodes a raw 38 or 44 byte payload into a Record
func DecodePayload(callsign, packetType byte, payload []byte, diag Diagnostics) (*Record, error) {
	if len(payload) != PayloadSize && len(payload) != PayloadSizeWithTail {
		return nil, fmt.Errorf("%w: %d bytes (expected %d or %d)",
			ErrTruncatedPayload, len(payload), PayloadSize, PayloadSizeWithTail)
	}

	r := &Record{
		Callsign:   callsign,
		PacketType: packetType,

		UID:     int16(readField(payload, FieldUID)),
		FW:      int16(readField(payload, FieldFW)),
		RX:      int8(readField(payload, FieldRX)),
		TimeMPU: uint32(readField(payload, FieldTimeMPU)),

		Status:      Status(readField(payload, FieldStatus)),
		Altitude:    int32(readField(payload, FieldAltitude)),
		SpeedVert:   uint16(readField(payload, FieldSpeedVert)),
		Accel:       readScaled(payload, FieldAccel),
		Angle:       uint8(readField(payload, FieldAngle)),
		BattVoltage: readScaled(payload, FieldBattVoltage),
		MissionTime: readScaled(payload, FieldMissionTime),

		Pyro:      Pyro(readField(payload, FieldPyro)),
		LogStatus: uint8(readField(payload, FieldLogStatus)),

		GPSLat:   readScaled(payload, FieldGPSLat),
		GPSLng:   readScaled(payload, FieldGPSLng),
		GPSState: uint8(readField(payload, FieldGPSState)),
		WarnCode: uint8(readField(payload, FieldWarnCode)),

		Message: Message{
			Kind:  MessageKind(readField(payload, FieldMessageKind)),
			Value: int32(readField(payload, FieldMessageValue)),
		},

		Diagnostics: diag,
	}

	if len(payload) == PayloadSizeWithTail {
		r.UserIn1 = ptr(uint32(readField(payload, FieldUserIn1)))
		r.UserIn2 = ptr(uint16(readField(payload, FieldUserIn2)))
	}

	return r, nil
}

// readField assembles a little-endian integer from the payload. Signed fields
// are sign-extended from their top bit; this is the only place that happens.
func readField(payload []byte, id int) int64 {
	f := layout[id]
	var u uint64
	for i := 0; i < f.Width; i++ {
		u |= uint64(payload[f.Offset+i]) << (8 * i)
	}
	return signExtend(u, f)
}

// signExtend interprets the low f.Bits() bits of u as the field's integer
func signExtend(u uint64, f Field) int64 {
	if f.Signed && u&(1<<(f.Bits()-1)) != 0 {
		return int64(u) - int64(1)<<f.Bits()
	}
	return int64(u)
}

func readScaled(payload []byte, id int) float64 {
	return scaleInt(layout[id], readField(payload, id))
}
