// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import "encoding/json"

// Diagnostics holds the radio link quality reported in the line suffix
type Diagnostics struct {
	RSSI int `json:"rssi"`
	SNR  int `json:"snr"`
}

// Pyro is the raw pyro byte. Each channel occupies its own 2-bit field.
type Pyro uint8

// NewPyro packs three channel states into a pyro byte
func NewPyro(a, b, c PyroState) Pyro {
	return Pyro(uint8(a&pyroMask)<<PyroShiftA |
		uint8(b&pyroMask)<<PyroShiftB |
		uint8(c&pyroMask)<<PyroShiftC)
}

// Message is the event field: a kind byte followed by a signed 24-bit value
type Message struct {
	Kind  MessageKind `json:"kind"`
	Value int32       `json:"value"`
}

// Raw returns the message as the relay publishes it: kind in the top byte,
// value in the low 24 bits.
func (m Message) Raw() uint32 {
	return uint32(m.Kind)<<24 | uint32(m.Value)&0xFFFFFF
}

// Record is one decoded telemetry line. Records are created by Decode and
// never modified by this package.
type Record struct {
	Callsign   byte `json:"-"`
	PacketType byte `json:"-"`

	UID     int16  `json:"uid"`
	FW      int16  `json:"fw"`
	RX      int8   `json:"rx"`
	TimeMPU uint32 `json:"timeMPU"`

	Status      Status  `json:"status"`
	Altitude    int32   `json:"altitude"`  // m, int24 on the wire
	SpeedVert   uint16  `json:"speedVert"` // m/s
	Accel       float64 `json:"accel"`     // m/s^2
	Angle       uint8   `json:"angle"`     // deg
	BattVoltage float64 `json:"battVoltage"`
	MissionTime float64 `json:"time"` // s

	Pyro      Pyro  `json:"pyroStates"`
	LogStatus uint8 `json:"logStatus"`

	GPSLat   float64 `json:"gpsLat"`
	GPSLng   float64 `json:"gpsLng"`
	GPSState uint8   `json:"gpsState"`
	WarnCode uint8   `json:"warnCode"`

	Message Message `json:"message"`

	// Present together only in 44-byte payloads
	UserIn1 *uint32 `json:"userIn1,omitempty"`
	UserIn2 *uint16 `json:"userIn2,omitempty"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// HasTail reports whether the record carries the user input tail
func (r *Record) HasTail() bool {
	return r.UserIn1 != nil && r.UserIn2 != nil
}

// MarshalJSON renders the record with both raw and symbolic enum values
func (r *Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		*plain
		Callsign    string `json:"callsign"`
		PacketType  string `json:"packetType"`
		StatusName  string `json:"statusName"`
		PyroA       string `json:"pyroA"`
		PyroB       string `json:"pyroB"`
		PyroC       string `json:"pyroC"`
		MessageName string `json:"messageName"`
	}{
		plain:       (*plain)(r),
		Callsign:    string(rune(r.Callsign)),
		PacketType:  string(rune(r.PacketType)),
		StatusName:  r.Status.String(),
		PyroA:       r.Pyro.A().String(),
		PyroB:       r.Pyro.B().String(),
		PyroC:       r.Pyro.C().String(),
		MessageName: r.Message.Kind.String(),
	})
}

// ptr returns a pointer to v
func ptr[T any](v T) *T {
	return &v
}
