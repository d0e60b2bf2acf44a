// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"fmt"
	"strings"
	"time"
)

// FormatRecord formats a record into a human-readable string, stamped with
// the time it was received.
func FormatRecord(r *Record, received time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %c%c uid=%d fw=%d rx=%d len=%d\n",
		received.Format("15:04:05.000"), r.Callsign, r.PacketType, r.UID, r.FW, r.RX, payloadLen(r))
	fmt.Fprintf(&b, "  Status: %s (%d), MPU Time: %d ms, Mission Time: %.1f s\n",
		r.Status, r.Status.Raw(), r.TimeMPU, r.MissionTime)
	fmt.Fprintf(&b, "  Altitude: %d m, Vertical Speed: %d m/s, Accel: %.1f m/s², Angle: %d°\n",
		r.Altitude, r.SpeedVert, r.Accel, r.Angle)
	fmt.Fprintf(&b, "  Battery: %.3f V, Log Status: %d, Warn Code: %d\n",
		r.BattVoltage, r.LogStatus, r.WarnCode)
	fmt.Fprintf(&b, "  Pyro: %s (0x%02X)\n", r.Pyro, r.Pyro.Raw())
	fmt.Fprintf(&b, "  GPS: %.6f, %.6f (state %d)\n", r.GPSLat, r.GPSLng, r.GPSState)

	if r.Message.Raw() != 0 {
		fmt.Fprintf(&b, "  Message: %s (%d), Value: %d\n", r.Message.Kind, r.Message.Kind.Raw(), r.Message.Value)
	}
	if r.HasTail() {
		fmt.Fprintf(&b, "  User Inputs: %d, %d\n", *r.UserIn1, *r.UserIn2)
	}

	fmt.Fprintf(&b, "  Link: RSSI %d dBm, SNR %d dB\n", r.Diagnostics.RSSI, r.Diagnostics.SNR)
	return b.String()
}

// FormatAnomalies formats anomalies one per line, or returns "" if there are none
func FormatAnomalies(anomalies []ValidationError) string {
	var b strings.Builder
	for _, a := range anomalies {
		fmt.Fprintf(&b, "  ANOMALY [%s]: %s\n", a.Type, a.Message)
	}
	return b.String()
}

func payloadLen(r *Record) int {
	if r.HasTail() {
		return PayloadSizeWithTail
	}
	return PayloadSize
}
