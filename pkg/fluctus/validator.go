// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Frame is a syntactically valid binary telemetry line, split into its parts
type Frame struct {
	Callsign    byte
	PacketType  byte
	Payload     []byte
	Diagnostics Diagnostics
}

// IsTelemetry reports whether the line claims to be a binary telemetry packet.
// It does not check that the rest of the line is well formed.
func IsTelemetry(line string) bool {
	line = strings.TrimSpace(line)
	return len(line) >= 2 && (line[1] == PacketTypeBinary || line[1] == PacketTypeBinaryUpper)
}

// ParseLine checks the gross syntax of a line and splits it into a Frame.
//
// Lines that are not binary telemetry (device logs, acknowledgements, blank
// lines) return nil, nil. Lines that claim to be binary telemetry but have a
// broken hex body or diagnostics suffix return ErrMalformedPacket.
func ParseLine(line string) (*Frame, error) {
	line = strings.TrimSpace(line)
	if !IsTelemetry(line) {
		return nil, nil
	}

	body, suffix, ok := strings.Cut(line[2:], string(DiagnosticsSeparator))
	if !ok {
		return nil, malformed("missing diagnostics suffix")
	}

	if len(body)%2 != 0 {
		return nil, malformed("odd-length hex body (%d digits)", len(body))
	}
	payload, err := hex.DecodeString(body)
	if err != nil {
		return nil, malformed("invalid hex body: %v", err)
	}

	diag, err := parseDiagnostics(suffix)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Callsign:    line[0],
		PacketType:  line[1],
		Payload:     payload,
		Diagnostics: diag,
	}, nil
}

// parseDiagnostics parses "Grssi<int>/Gsnr<int>"
func parseDiagnostics(suffix string) (Diagnostics, error) {
	rest, ok := strings.CutPrefix(suffix, RSSIPrefix)
	if !ok {
		return Diagnostics{}, malformed("diagnostics suffix %q lacks %s", suffix, RSSIPrefix)
	}
	rssiStr, snrStr, ok := strings.Cut(rest, SNRPrefix)
	if !ok {
		return Diagnostics{}, malformed("diagnostics suffix %q lacks %s", suffix, SNRPrefix)
	}

	rssi, err := parseSignedInt(rssiStr)
	if err != nil {
		return Diagnostics{}, malformed("invalid rssi %q", rssiStr)
	}
	snr, err := parseSignedInt(snrStr)
	if err != nil {
		return Diagnostics{}, malformed("invalid snr %q", snrStr)
	}

	return Diagnostics{RSSI: rssi, SNR: snr}, nil
}

// parseSignedInt accepts an optional sign followed by decimal digits only
func parseSignedInt(s string) (int, error) {
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" || strings.Trim(digits, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}
