// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR snapshot map keys
const (
	KeyCallsign = iota
	KeyPacketType
	KeyUID
	KeyFW
	KeyRX
	KeyTimeMPU
	KeyStatus
	KeyAltitude
	KeySpeedVert
	KeyAccel
	KeyAngle
	KeyBattVoltage
	KeyMissionTime
	KeyPyro
	KeyLogStatus
	KeyGPSLat
	KeyGPSLng
	KeyGPSState
	KeyWarnCode
	KeyMessage
	KeyUserIn1
	KeyUserIn2
	KeyRSSI
	KeySNR
)

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalCBOR encodes a record as a deterministic integer-keyed CBOR map.
// Enums are stored as their raw wire values.
func MarshalCBOR(r *Record) ([]byte, error) {
	m := map[int]interface{}{
		KeyCallsign:    uint64(r.Callsign),
		KeyPacketType:  uint64(r.PacketType),
		KeyUID:         int64(r.UID),
		KeyFW:          int64(r.FW),
		KeyRX:          int64(r.RX),
		KeyTimeMPU:     uint64(r.TimeMPU),
		KeyStatus:      uint64(r.Status),
		KeyAltitude:    int64(r.Altitude),
		KeySpeedVert:   uint64(r.SpeedVert),
		KeyAccel:       r.Accel,
		KeyAngle:       uint64(r.Angle),
		KeyBattVoltage: r.BattVoltage,
		KeyMissionTime: r.MissionTime,
		KeyPyro:        uint64(r.Pyro),
		KeyLogStatus:   uint64(r.LogStatus),
		KeyGPSLat:      r.GPSLat,
		KeyGPSLng:      r.GPSLng,
		KeyGPSState:    uint64(r.GPSState),
		KeyWarnCode:    uint64(r.WarnCode),
		KeyMessage:     uint64(r.Message.Raw()),
		KeyRSSI:        int64(r.Diagnostics.RSSI),
		KeySNR:         int64(r.Diagnostics.SNR),
	}
	if r.HasTail() {
		m[KeyUserIn1] = uint64(*r.UserIn1)
		m[KeyUserIn2] = uint64(*r.UserIn2)
	}
	return cborEncMode.Marshal(m)
}

// ParseCBORRecord decodes a snapshot produced by MarshalCBOR
func ParseCBORRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var m map[int]interface{}
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	d := cborReader{m: m}
	r := &Record{
		Callsign:   uint8(d.readUint(KeyCallsign, 0xFF)),
		PacketType: uint8(d.readUint(KeyPacketType, 0xFF)),

		UID:     int16(d.field(KeyUID, FieldUID)),
		FW:      int16(d.field(KeyFW, FieldFW)),
		RX:      int8(d.field(KeyRX, FieldRX)),
		TimeMPU: uint32(d.field(KeyTimeMPU, FieldTimeMPU)),

		Status:      Status(d.field(KeyStatus, FieldStatus)),
		Altitude:    int32(d.field(KeyAltitude, FieldAltitude)),
		SpeedVert:   uint16(d.field(KeySpeedVert, FieldSpeedVert)),
		Accel:       d.readFloat(KeyAccel),
		Angle:       uint8(d.field(KeyAngle, FieldAngle)),
		BattVoltage: d.readFloat(KeyBattVoltage),
		MissionTime: d.readFloat(KeyMissionTime),

		Pyro:      Pyro(d.field(KeyPyro, FieldPyro)),
		LogStatus: uint8(d.field(KeyLogStatus, FieldLogStatus)),

		GPSLat:   d.readFloat(KeyGPSLat),
		GPSLng:   d.readFloat(KeyGPSLng),
		GPSState: uint8(d.field(KeyGPSState, FieldGPSState)),
		WarnCode: uint8(d.field(KeyWarnCode, FieldWarnCode)),

		Message: messageFromRaw(uint32(d.readUint(KeyMessage, 0xFFFFFFFF))),

		Diagnostics: Diagnostics{
			RSSI: int(d.readInt(KeyRSSI)),
			SNR:  int(d.readInt(KeySNR)),
		},
	}

	_, has1 := m[KeyUserIn1]
	_, has2 := m[KeyUserIn2]
	if has1 != has2 {
		return nil, fmt.Errorf("user inputs must be present together")
	}
	if has1 {
		r.UserIn1 = ptr(uint32(d.field(KeyUserIn1, FieldUserIn1)))
		r.UserIn2 = ptr(uint16(d.field(KeyUserIn2, FieldUserIn2)))
	}

	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

// messageFromRaw splits the kind<<24|value form back into a Message
func messageFromRaw(raw uint32) Message {
	return Message{
		Kind:  MessageKind(raw >> 24),
		Value: int32(signExtend(uint64(raw&0xFFFFFF), layout[FieldMessageValue])),
	}
}

// cborReader extracts required keys and keeps the first error
type cborReader struct {
	m   map[int]interface{}
	err error
}

func (d *cborReader) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *cborReader) readInt(key int) int64 {
	v, ok := GetMapInt(d.m, key)
	if !ok {
		d.fail("missing or non-integer key %d", key)
	}
	return v
}

func (d *cborReader) readUint(key int, limit uint64) uint64 {
	v, ok := GetMapUint(d.m, key)
	if !ok {
		d.fail("missing or non-integer key %d", key)
		return 0
	}
	if v > limit {
		d.fail("key %d out of range: %d", key, v)
	}
	return v
}

func (d *cborReader) readFloat(key int) float64 {
	v, ok := GetMapFloat(d.m, key)
	if !ok {
		d.fail("missing or non-numeric key %d", key)
	}
	return v
}

// field reads an integer and checks it fits the wire field it came from
func (d *cborReader) field(key, id int) int64 {
	v := d.readInt(key)
	f := layout[id]
	if v < f.Min() || v > f.Max() {
		d.fail("key %d (%s) out of range: %d", key, f.Name, v)
		return 0
	}
	return v
}

// Map value extraction helpers

// GetMapUint extracts a uint64 from a CBOR map by key
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}

// GetMapInt extracts an int64 from a CBOR map by key
func GetMapInt(m map[int]interface{}, key int) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case uint64:
		if val <= 1<<63-1 {
			return int64(val), true
		}
	}
	return 0, false
}

// GetMapFloat extracts a float64 from a CBOR map by key
func GetMapFloat(m map[int]interface{}, key int) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
