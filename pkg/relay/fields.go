// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

// Topics names the MQTT topics of one device
type Topics struct {
	Base string
	Name string
}

// Device returns "<base>/<name>"
func (t Topics) Device() string {
	return t.Base + "/" + t.Name
}

// Field returns "<base>/<name>/<key>"
func (t Topics) Field(key string) string {
	return t.Device() + "/" + key
}

// Control returns the topic commands arrive on
func (t Topics) Control() string {
	return t.Field("control")
}

// Record returns the topic CBOR snapshots are published on
func (t Topics) Record() string {
	return t.Field("record")
}

// Devices returns the shared discovery topic
func (t Topics) Devices() string {
	return t.Base + "/devices"
}

// FieldValue is one published key and its text payload
type FieldValue struct {
	Key   string
	Value string
}

// Project flattens a record into per-field publications, in a fixed order.
// Enums are published as their raw codes; the user inputs only when present.
func Project(r *fluctus.Record) []FieldValue {
	fields := make([]FieldValue, 0, 26)
	add := func(key, value string) {
		fields = append(fields, FieldValue{Key: key, Value: value})
	}
	i := func(v int64) string { return strconv.FormatInt(v, 10) }
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	add("callsign", string(rune(r.Callsign)))
	add("packetType", string(rune(r.PacketType)))
	add("uid", i(int64(r.UID)))
	add("fw", i(int64(r.FW)))
	add("rx", i(int64(r.RX)))
	add("timeMPU", u(uint64(r.TimeMPU)))

	add("status", u(uint64(r.Status.Raw())))
	add("altitude", i(int64(r.Altitude)))
	add("speedVert", u(uint64(r.SpeedVert)))
	add("accel", f(r.Accel))
	add("angle", u(uint64(r.Angle)))
	add("battVoltage", f(r.BattVoltage))
	add("time", f(r.MissionTime))

	add("pyroStates", u(uint64(r.Pyro.Raw())))
	add("logStatus", u(uint64(r.LogStatus)))

	add("gpsLat", f(r.GPSLat))
	add("gpsLng", f(r.GPSLng))
	add("gpsState", u(uint64(r.GPSState)))
	add("warnCode", u(uint64(r.WarnCode)))

	add("message", u(uint64(r.Message.Raw())))
	if r.HasTail() {
		add("userIn1", u(uint64(*r.UserIn1)))
		add("userIn2", u(uint64(*r.UserIn2)))
	}

	add("rssi", i(int64(r.Diagnostics.RSSI)))
	add("snr", i(int64(r.Diagnostics.SNR)))
	return fields
}

// ProjectJSON flattens one JSON object line from a tracker into per-field
// publications, sorted by key. Strings are published unquoted, objects with a
// "raw" member as that member, and everything else as its JSON text. Keys that
// would leave the device topic or collide with the control and record topics
// are rejected.
func ProjectJSON(line []byte) ([]FieldValue, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, errors.NotValidf("json line: %v", err)
	}
	if obj == nil {
		return nil, errors.NotValidf("json line is null")
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k == "" || strings.ContainsAny(k, "/+#") || k == "control" || k == "record" {
			return nil, errors.NotValidf("field key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]FieldValue, 0, len(keys))
	for _, k := range keys {
		v, err := jsonFieldValue(obj[k])
		if err != nil {
			return nil, errors.Annotatef(err, "field %s", k)
		}
		fields = append(fields, FieldValue{Key: k, Value: v})
	}
	return fields, nil
}

func jsonFieldValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil

	case len(raw) > 0 && raw[0] == '{':
		var enum struct {
			Raw json.RawMessage `json:"raw"`
		}
		if err := json.Unmarshal(raw, &enum); err != nil {
			return "", err
		}
		if enum.Raw != nil {
			return jsonFieldValue(enum.Raw)
		}
	}
	return string(raw), nil
}
