// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// CBOR Snapshot Tests
// ============================================================

func TestMarshalCBOR_RoundTrip(t *testing.T) {
	r := mustDecode(t, sampleLine)
	r.GPSLat = -33.868819
	r.Message = Message{Kind: MessageMaxAltitude, Value: -42}

	data, err := MarshalCBOR(r)
	if err != nil {
		t.Fatalf("MarshalCBOR failed: %v", err)
	}

	got, err := ParseCBORRecord(data)
	if err != nil {
		t.Fatalf("ParseCBORRecord failed: %v", err)
	}

	if MustEncode(got) != MustEncode(r) {
		t.Errorf("snapshot changed the record\n got: %s\nwant: %s", MustEncode(got), MustEncode(r))
	}
	if got.Message.Value != -42 || got.Message.Kind != MessageMaxAltitude {
		t.Errorf("message = %+v", got.Message)
	}
	if got.HasTail() {
		t.Error("snapshot without user inputs should not gain a tail")
	}
}

func TestMarshalCBOR_Tail(t *testing.T) {
	r := mustDecode(t, sampleLine)
	r.UserIn1 = ptr(uint32(0xCAFEBABE))
	r.UserIn2 = ptr(uint16(0x1234))

	data, err := MarshalCBOR(r)
	if err != nil {
		t.Fatalf("MarshalCBOR failed: %v", err)
	}
	got, err := ParseCBORRecord(data)
	if err != nil {
		t.Fatalf("ParseCBORRecord failed: %v", err)
	}
	if !got.HasTail() || *got.UserIn1 != 0xCAFEBABE || *got.UserIn2 != 0x1234 {
		t.Errorf("user inputs not preserved: %v %v", got.UserIn1, got.UserIn2)
	}
}

func TestMarshalCBOR_Deterministic(t *testing.T) {
	r := mustDecode(t, sampleLine)
	a, err := MarshalCBOR(r)
	if err != nil {
		t.Fatalf("MarshalCBOR failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, _ := MarshalCBOR(r)
		if !bytes.Equal(a, b) {
			t.Fatal("MarshalCBOR output is not deterministic")
		}
	}
}

func TestMarshalCBOR_RawEnums(t *testing.T) {
	r := mustDecode(t, sampleLine)
	r.Status = Status(9)
	r.Pyro = NewPyro(PyroEnabledOrFired, PyroContinuity, PyroDisabled)

	data, err := MarshalCBOR(r)
	if err != nil {
		t.Fatalf("MarshalCBOR failed: %v", err)
	}

	var m map[int]interface{}
	if err := cbor.Unmarshal(data, &m); err != nil {
		t.Fatalf("cbor.Unmarshal failed: %v", err)
	}
	if v, _ := GetMapUint(m, KeyStatus); v != 9 {
		t.Errorf("status = %d, expected 9", v)
	}
	if v, _ := GetMapUint(m, KeyPyro); v != 0x07 {
		t.Errorf("pyro = 0x%02X, expected 0x07", v)
	}
	if v, _ := GetMapUint(m, KeyMessage); v != 0x53000000 {
		t.Errorf("message = 0x%08X, expected 0x53000000", v)
	}
	if _, ok := m[KeyUserIn1]; ok {
		t.Error("absent user input should have no key")
	}
}

func TestParseCBORRecord_Errors(t *testing.T) {
	valid, err := MarshalCBOR(mustDecode(t, sampleLine))
	if err != nil {
		t.Fatalf("MarshalCBOR failed: %v", err)
	}

	var full map[int]interface{}
	if err := cbor.Unmarshal(valid, &full); err != nil {
		t.Fatalf("cbor.Unmarshal failed: %v", err)
	}

	build := func(mutate func(m map[int]interface{})) []byte {
		m := make(map[int]interface{}, len(full))
		for k, v := range full {
			m[k] = v
		}
		mutate(m)
		data, err := cbor.Marshal(m)
		if err != nil {
			t.Fatalf("cbor.Marshal failed: %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a map", []byte{0x83, 0x01, 0x02, 0x03}},
		{"missing uid", build(func(m map[int]interface{}) { delete(m, KeyUID) })},
		{"altitude out of range", build(func(m map[int]interface{}) { m[KeyAltitude] = int64(1 << 24) })},
		{"negative status", build(func(m map[int]interface{}) { m[KeyStatus] = int64(-1) })},
		{"string accel", build(func(m map[int]interface{}) { m[KeyAccel] = "fast" })},
		{"half tail", build(func(m map[int]interface{}) { m[KeyUserIn1] = uint64(1) })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r, err := ParseCBORRecord(tt.data); err == nil {
				t.Errorf("expected error, got %+v", r)
			}
		})
	}
}

func TestGetMapHelpers(t *testing.T) {
	m := map[int]interface{}{
		0: uint64(42),
		1: int64(-7),
		2: 3.5,
		3: "text",
	}

	if v, ok := GetMapUint(m, 0); !ok || v != 42 {
		t.Errorf("GetMapUint(0) = %d, %v", v, ok)
	}
	if _, ok := GetMapUint(m, 1); ok {
		t.Error("GetMapUint should reject negative values")
	}
	if v, ok := GetMapInt(m, 1); !ok || v != -7 {
		t.Errorf("GetMapInt(1) = %d, %v", v, ok)
	}
	if v, ok := GetMapFloat(m, 2); !ok || v != 3.5 {
		t.Errorf("GetMapFloat(2) = %v, %v", v, ok)
	}
	if v, ok := GetMapFloat(m, 0); !ok || v != 42 {
		t.Errorf("GetMapFloat(0) = %v, %v", v, ok)
	}
	if _, ok := GetMapInt(m, 3); ok {
		t.Error("GetMapInt should reject strings")
	}
	if _, ok := GetMapInt(m, 99); ok {
		t.Error("GetMapInt should report missing keys")
	}
	if _, ok := GetMapUint(nil, 0); ok {
		t.Error("GetMapUint should handle a nil map")
	}
}
