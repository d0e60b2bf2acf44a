// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPacket is returned for binary telemetry lines whose hex body
	// or diagnostics suffix cannot be parsed.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrTruncatedPayload is returned when the payload is neither 38 nor 44 bytes.
	ErrTruncatedPayload = errors.New("truncated payload")

	// ErrEncodeRange is returned when a value does not fit its wire field.
	ErrEncodeRange = errors.New("value out of range")
)

// RangeError reports a record value that cannot be represented on the wire
type RangeError struct {
	Field string
	Value float64
	Min   int64
	Max   int64
}

// Error implements the error interface
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s=%v (valid %d..%d)", ErrEncodeRange, e.Field, e.Value, e.Min, e.Max)
}

// Unwrap makes errors.Is(err, ErrEncodeRange) hold
func (e *RangeError) Unwrap() error {
	return ErrEncodeRange
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, fmt.Sprintf(format, args...))
}
