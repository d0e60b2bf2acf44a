// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Encode serializes a Record to its wire line, without a trailing newline.
//
// Scaled fields are multiplied back and truncated toward zero, so values with
// more precision than the wire carries are lost. Any value that does not fit
// its field aborts the encode with a *RangeError and no output.
func Encode(r *Record) (string, error) {
	if err := checkPrefix(r.Callsign, r.PacketType); err != nil {
		return "", err
	}

	payload, err := EncodePayload(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(2 + 2*len(payload) + 24)
	b.WriteByte(r.Callsign)
	b.WriteByte(r.PacketType)
	b.WriteString(strings.ToUpper(hex.EncodeToString(payload)))
	b.WriteByte(DiagnosticsSeparator)
	b.WriteString(RSSIPrefix)
	b.WriteString(strconv.Itoa(r.Diagnostics.RSSI))
	b.WriteString(SNRPrefix)
	b.WriteString(strconv.Itoa(r.Diagnostics.SNR))
	return b.String(), nil
}

// MustEncode is like Encode but panics on error. Intended for test fixtures.
func MustEncode(r *Record) string {
	line, err := Encode(r)
	if err != nil {
		panic(fmt.Sprintf("fluctus: encode error: %v", err))
	}
	return line
}

// EncodePayload serializes the binary part of a Record: 38 bytes, or 44 when
// both user inputs are present.
func EncodePayload(r *Record) ([]byte, error) {
	size := PayloadSize
	if r.HasTail() {
		size = PayloadSizeWithTail
	}
	payload := make([]byte, size)

	ints := []struct {
		id  int
		val int64
	}{
		{FieldUID, int64(r.UID)},
		{FieldFW, int64(r.FW)},
		{FieldRX, int64(r.RX)},
		{FieldTimeMPU, int64(r.TimeMPU)},
		{FieldStatus, int64(r.Status)},
		{FieldAltitude, int64(r.Altitude)},
		{FieldSpeedVert, int64(r.SpeedVert)},
		{FieldAngle, int64(r.Angle)},
		{FieldPyro, int64(r.Pyro)},
		{FieldLogStatus, int64(r.LogStatus)},
		{FieldGPSState, int64(r.GPSState)},
		{FieldWarnCode, int64(r.WarnCode)},
		{FieldMessageKind, int64(r.Message.Kind)},
		{FieldMessageValue, int64(r.Message.Value)},
	}
	for _, v := range ints {
		if err := writeField(payload, v.id, v.val); err != nil {
			return nil, err
		}
	}

	floats := []struct {
		id  int
		val float64
	}{
		{FieldAccel, r.Accel},
		{FieldBattVoltage, r.BattVoltage},
		{FieldMissionTime, r.MissionTime},
		{FieldGPSLat, r.GPSLat},
		{FieldGPSLng, r.GPSLng},
	}
	for _, v := range floats {
		raw, err := unscaleFloat(layout[v.id], v.val)
		if err != nil {
			return nil, err
		}
		if err := writeField(payload, v.id, raw); err != nil {
			return nil, err
		}
	}

	if r.HasTail() {
		if err := writeField(payload, FieldUserIn1, int64(*r.UserIn1)); err != nil {
			return nil, err
		}
		if err := writeField(payload, FieldUserIn2, int64(*r.UserIn2)); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// writeField range-checks v against the field width and stores it little-endian
func writeField(payload []byte, id int, v int64) error {
	f := layout[id]
	if v < f.Min() || v > f.Max() {
		return &RangeError{Field: f.Name, Value: float64(v), Min: f.Min(), Max: f.Max()}
	}
	u := uint64(v)
	for i := 0; i < f.Width; i++ {
		payload[f.Offset+i] = byte(u >> (8 * i))
	}
	return nil
}

// checkPrefix rejects prefixes that would not decode back as binary telemetry
func checkPrefix(callsign, packetType byte) error {
	if packetType != PacketTypeBinary && packetType != PacketTypeBinaryUpper {
		return fmt.Errorf("%w: packet type %q is not binary", ErrEncodeRange, packetType)
	}
	if callsign <= ' ' || callsign > '~' || callsign == DiagnosticsSeparator {
		return fmt.Errorf("%w: callsign %q is not a printable character", ErrEncodeRange, callsign)
	}
	return nil
}
