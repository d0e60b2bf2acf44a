// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// sampleLine is a telemetry line captured from a flight computer on the pad
const sampleLine = "FB3E00070100BEDD01000000000000006C00AA89109CFF00650000000000000000000E53000000|Grssi-65/Gsnr6"

// makeLine wraps a payload in the callsign, type and diagnostics suffix
func makeLine(payload []byte) string {
	return "Fb" + strings.ToUpper(hex.EncodeToString(payload)) + "|Grssi-65/Gsnr6"
}

// buildPayload creates a zeroed payload with the given raw field values set
func buildPayload(t *testing.T, size int, fields map[int]int64) []byte {
	t.Helper()
	payload := make([]byte, size)
	for id, v := range fields {
		if err := writeField(payload, id, v); err != nil {
			t.Fatalf("buildPayload: %v", err)
		}
	}
	return payload
}

func mustDecode(t *testing.T, line string) *Record {
	t.Helper()
	r, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode(%q) failed: %v", line, err)
	}
	if r == nil {
		t.Fatalf("Decode(%q) returned no record", line)
	}
	return r
}

// ============================================================
// Layout Tests
// ============================================================

func TestLayout_Contiguous(t *testing.T) {
	end := 0
	for id, f := range layout {
		if f.Offset != end {
			t.Errorf("field %s (%d) starts at %d, expected %d", f.Name, id, f.Offset, end)
		}
		if f.Width < 1 || f.Width > 4 {
			t.Errorf("field %s has width %d", f.Name, f.Width)
		}
		end = f.End()
		if id == FieldMessageValue && end != PayloadSize {
			t.Errorf("fixed fields end at %d, expected %d", end, PayloadSize)
		}
	}
	if end != PayloadSizeWithTail {
		t.Errorf("layout ends at %d, expected %d", end, PayloadSizeWithTail)
	}
}

func TestFieldAt_ReturnsCopy(t *testing.T) {
	f := FieldAt(FieldUID)
	f.Offset = 5
	f.Signed = false

	if got := FieldAt(FieldUID); got.Offset != 0 || !got.Signed {
		t.Fatalf("layout changed through FieldAt: %+v", got)
	}
	r, err := Decode(sampleLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if r.UID != 62 {
		t.Errorf("uid = %d, expected 62", r.UID)
	}
	if FieldAt(FieldCount-1).Name != "userIn2" {
		t.Errorf("last field = %s", FieldAt(FieldCount-1).Name)
	}
}

func TestField_Bounds(t *testing.T) {
	tests := []struct {
		id       int
		min, max int64
	}{
		{FieldUID, -32768, 32767},
		{FieldRX, -128, 127},
		{FieldTimeMPU, 0, 4294967295},
		{FieldAltitude, -8388608, 8388607},
		{FieldSpeedVert, 0, 65535},
		{FieldGPSLat, -2147483648, 2147483647},
		{FieldMessageValue, -8388608, 8388607},
	}
	for _, tt := range tests {
		f := layout[tt.id]
		t.Run(f.Name, func(t *testing.T) {
			if f.Min() != tt.min || f.Max() != tt.max {
				t.Errorf("bounds = [%d, %d], expected [%d, %d]", f.Min(), f.Max(), tt.min, tt.max)
			}
		})
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestIsTelemetry(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{sampleLine, true},
		{"Xb00|Grssi0/Gsnr0", true},
		{"  FB00|Grssi0/Gsnr0\r\n", true},
		{"", false},
		{"F", false},
		{"startok", false},
		{"fcpong", false},
		{"GPS lock acquired", false},
		{"Fa3E00|Grssi-65/Gsnr6", false},
	}
	for _, tt := range tests {
		if got := IsTelemetry(tt.line); got != tt.want {
			t.Errorf("IsTelemetry(%q) = %v, expected %v", tt.line, got, tt.want)
		}
	}
}

func TestDecode_NonTelemetry(t *testing.T) {
	for _, line := range []string{"", "   ", "\n", "hello world", "startok", "fcpong", "F", "Fa00|Grssi0/Gsnr0"} {
		r, err := Decode(line)
		if r != nil || err != nil {
			t.Errorf("Decode(%q) = %v, %v; expected nil, nil", line, r, err)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no diagnostics", "Fb3E00070100"},
		{"odd hex", "Fb3E0|Grssi-65/Gsnr6"},
		{"bad hex digit", "FbZZ00|Grssi-65/Gsnr6"},
		{"no rssi prefix", "Fb3E00|rssi-65/Gsnr6"},
		{"no snr", "Fb3E00|Grssi-65"},
		{"rssi not a number", "Fb3E00|Grssix/Gsnr6"},
		{"double sign", "Fb3E00|Grssi--65/Gsnr6"},
		{"empty snr", "Fb3E00|Grssi-65/Gsnr"},
		{"trailing junk", "Fb3E00|Grssi-65/Gsnr6dB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(tt.line)
			if r != nil {
				t.Errorf("expected no record, got %+v", r)
			}
			if !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("expected ErrMalformedPacket, got %v", err)
			}
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	for _, size := range []int{0, 1, 37, 39, 43, 45, 64} {
		line := makeLine(make([]byte, size))
		r, err := Decode(line)
		if r != nil {
			t.Errorf("size %d: expected no record", size)
		}
		if !errors.Is(err, ErrTruncatedPayload) {
			t.Errorf("size %d: expected ErrTruncatedPayload, got %v", size, err)
		}
	}
}

func TestParseLine_Diagnostics(t *testing.T) {
	tests := []struct {
		suffix    string
		rssi, snr int
	}{
		{"Grssi-65/Gsnr6", -65, 6},
		{"Grssi0/Gsnr0", 0, 0},
		{"Grssi-120/Gsnr-12", -120, -12},
		{"Grssi+3/Gsnr+4", 3, 4},
	}
	for _, tt := range tests {
		f, err := ParseLine("Fb00|" + tt.suffix)
		if err != nil {
			t.Fatalf("ParseLine(%q) failed: %v", tt.suffix, err)
		}
		if f.Diagnostics.RSSI != tt.rssi || f.Diagnostics.SNR != tt.snr {
			t.Errorf("%q: got rssi=%d snr=%d, expected %d/%d",
				tt.suffix, f.Diagnostics.RSSI, f.Diagnostics.SNR, tt.rssi, tt.snr)
		}
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecode_Sample(t *testing.T) {
	r := mustDecode(t, sampleLine)

	if r.Callsign != 'F' || r.PacketType != 'B' {
		t.Errorf("prefix = %c%c, expected FB", r.Callsign, r.PacketType)
	}

	ints := []struct {
		name      string
		got, want int64
	}{
		{"uid", int64(r.UID), 62},
		{"fw", int64(r.FW), 263},
		{"rx", int64(r.RX), 0},
		{"timeMPU", int64(r.TimeMPU), 122302},
		{"status", int64(r.Status), 0},
		{"altitude", int64(r.Altitude), 0},
		{"speedVert", int64(r.SpeedVert), 0},
		{"angle", int64(r.Angle), 170},
		{"pyroStates", int64(r.Pyro), 0},
		{"logStatus", int64(r.LogStatus), 101},
		{"gpsState", int64(r.GPSState), 0},
		{"warnCode", int64(r.WarnCode), 14},
		{"messageKind", int64(r.Message.Kind), 83},
		{"messageValue", int64(r.Message.Value), 0},
		{"rssi", int64(r.Diagnostics.RSSI), -65},
		{"snr", int64(r.Diagnostics.SNR), 6},
	}
	for _, f := range ints {
		if f.got != f.want {
			t.Errorf("%s = %d, expected %d", f.name, f.got, f.want)
		}
	}

	floats := []struct {
		name      string
		got, want float64
	}{
		{"accel", r.Accel, 10.8},
		{"battVoltage", r.BattVoltage, 4.233},
		{"time", r.MissionTime, 6543.6},
		{"gpsLat", r.GPSLat, 0},
		{"gpsLng", r.GPSLng, 0},
	}
	for _, f := range floats {
		if f.got != f.want {
			t.Errorf("%s = %v, expected %v", f.name, f.got, f.want)
		}
	}

	if r.Status.String() != "Idle" {
		t.Errorf("status name = %q", r.Status.String())
	}
	if r.Message.Kind.String() != "Max Speed" {
		t.Errorf("message name = %q", r.Message.Kind.String())
	}
	if r.HasTail() || r.UserIn1 != nil || r.UserIn2 != nil {
		t.Error("38-byte payload should not carry user inputs")
	}
}

func TestDecode_LowercaseTypeAndWhitespace(t *testing.T) {
	line := "Fb" + sampleLine[2:] + "\r\n"
	r := mustDecode(t, line)
	if r.PacketType != 'b' {
		t.Errorf("packet type = %c, expected b", r.PacketType)
	}
	if r.UID != 62 {
		t.Errorf("uid = %d, expected 62", r.UID)
	}
}

func TestDecode_SignBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		bytes []byte
		want  int64
	}{
		{"altitude -1", FieldAltitude, []byte{0xFF, 0xFF, 0xFF}, -1},
		{"altitude min", FieldAltitude, []byte{0x00, 0x00, 0x80}, -8388608},
		{"altitude max", FieldAltitude, []byte{0xFF, 0xFF, 0x7F}, 8388607},
		{"message value -1", FieldMessageValue, []byte{0xFF, 0xFF, 0xFF}, -1},
		{"message value min", FieldMessageValue, []byte{0x00, 0x00, 0x80}, -8388608},
		{"uid -1", FieldUID, []byte{0xFF, 0xFF}, -1},
		{"rx -128", FieldRX, []byte{0x80}, -128},
		{"gpsLat min", FieldGPSLat, []byte{0x00, 0x00, 0x00, 0x80}, -2147483648},
		{"timeMPU max", FieldTimeMPU, []byte{0xFF, 0xFF, 0xFF, 0xFF}, 4294967295},
		{"speedVert max", FieldSpeedVert, []byte{0xFF, 0xFF}, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, PayloadSize)
			copy(payload[layout[tt.id].Offset:], tt.bytes)
			if got := readField(payload, tt.id); got != tt.want {
				t.Errorf("readField = %d, expected %d", got, tt.want)
			}
		})
	}

	payload := make([]byte, PayloadSize)
	copy(payload[layout[FieldAltitude].Offset:], []byte{0xFF, 0xFF, 0xFF})
	r := mustDecode(t, makeLine(payload))
	if r.Altitude != -1 {
		t.Errorf("decoded altitude = %d, expected -1", r.Altitude)
	}
}

func TestDecode_Tail(t *testing.T) {
	payload := buildPayload(t, PayloadSizeWithTail, map[int]int64{
		FieldUID:     62,
		FieldUserIn1: 0xDEADBEEF,
		FieldUserIn2: 0xBEEF,
	})
	r := mustDecode(t, makeLine(payload))

	if !r.HasTail() {
		t.Fatal("44-byte payload should carry user inputs")
	}
	if *r.UserIn1 != 0xDEADBEEF {
		t.Errorf("userIn1 = 0x%X", *r.UserIn1)
	}
	if *r.UserIn2 != 0xBEEF {
		t.Errorf("userIn2 = 0x%X", *r.UserIn2)
	}
	if r.UID != 62 {
		t.Errorf("uid = %d, expected 62", r.UID)
	}
}

// ============================================================
// Interpreter Tests
// ============================================================

func TestStatus_AllCodes(t *testing.T) {
	names := map[Status]string{
		StatusIdle:             "Idle",
		StatusArmed:            "Armed",
		StatusCountdownEngaged: "Countdown Engaged",
		StatusWaitingForLaunch: "Waiting for Launch",
		StatusAscent:           "Ascent",
		StatusDescent:          "Descent",
		StatusTouchdown:        "Touchdown",
	}
	for code := 0; code <= 255; code++ {
		s := Status(code)
		want, known := names[s]
		if s.Known() != known {
			t.Errorf("Status(%d).Known() = %v", code, s.Known())
		}
		if !known {
			want = "Unknown(" + strconv.Itoa(code) + ")"
		}
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, expected %q", code, s.String(), want)
		}
		if s.Raw() != uint8(code) {
			t.Errorf("Status(%d).Raw() = %d", code, s.Raw())
		}
	}
}

func TestPyro_ChannelsIndependent(t *testing.T) {
	for raw := 0; raw <= 255; raw++ {
		p := Pyro(raw)
		if uint8(p.A()) != uint8(raw)&0x3 {
			t.Errorf("0x%02X: A = %d", raw, p.A())
		}
		if uint8(p.B()) != uint8(raw)>>2&0x3 {
			t.Errorf("0x%02X: B = %d", raw, p.B())
		}
		if uint8(p.C()) != uint8(raw)>>4&0x3 {
			t.Errorf("0x%02X: C = %d", raw, p.C())
		}
		if p.Spare() != uint8(raw)>>6 {
			t.Errorf("0x%02X: spare = %d", raw, p.Spare())
		}
	}
}

func TestPyro_StateNames(t *testing.T) {
	tests := []struct {
		state PyroState
		name  string
		known bool
	}{
		{PyroDisabled, "Disabled", true},
		{PyroContinuity, "Continuity", true},
		{PyroState(2), "Unknown(2)", false},
		{PyroEnabledOrFired, "Enabled / Fired", true},
	}
	for _, tt := range tests {
		if tt.state.String() != tt.name || tt.state.Known() != tt.known {
			t.Errorf("state %d: got %q known=%v", tt.state, tt.state.String(), tt.state.Known())
		}
	}

	p := NewPyro(PyroContinuity, PyroState(2), PyroEnabledOrFired)
	if p.Raw() != 0x39 {
		t.Errorf("NewPyro raw = 0x%02X, expected 0x39", p.Raw())
	}
	if p.String() != "A=Continuity B=Unknown(2) C=Enabled / Fired" {
		t.Errorf("pyro string = %q", p.String())
	}
}

func TestMessageKind_Names(t *testing.T) {
	for code := 0; code <= 255; code++ {
		k := MessageKind(code)
		var want string
		switch code {
		case 'A':
			want = "Max Altitude"
		case 'S':
			want = "Max Speed"
		case 'G':
			want = "Max Acceleration"
		default:
			want = "Unknown(" + strconv.Itoa(code) + ")"
		}
		if k.String() != want {
			t.Errorf("MessageKind(%d) = %q, expected %q", code, k.String(), want)
		}
	}
}

func TestMessage_Raw(t *testing.T) {
	tests := []struct {
		msg  Message
		want uint32
	}{
		{Message{Kind: MessageMaxSpeed, Value: 0}, 0x53000000},
		{Message{Kind: MessageMaxAltitude, Value: 1234}, 0x410004D2},
		{Message{Kind: MessageMaxAcceleration, Value: -1}, 0x47FFFFFF},
		{Message{}, 0},
	}
	for _, tt := range tests {
		if got := tt.msg.Raw(); got != tt.want {
			t.Errorf("%+v.Raw() = 0x%08X, expected 0x%08X", tt.msg, got, tt.want)
		}
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	r := mustDecode(t, sampleLine)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}

	checks := map[string]interface{}{
		"callsign":    "F",
		"packetType":  "B",
		"uid":         float64(62),
		"time":        6543.6,
		"statusName":  "Idle",
		"pyroA":       "Disabled",
		"messageName": "Max Speed",
	}
	for key, want := range checks {
		if m[key] != want {
			t.Errorf("%s = %v, expected %v", key, m[key], want)
		}
	}
	if _, ok := m["userIn1"]; ok {
		t.Error("userIn1 should be omitted without a tail")
	}
}
