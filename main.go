// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// fluctus-relay - Fluctus telemetry decoder and MQTT relay
//
// A CLI tool for decoding Fluctus rocket telemetry lines from a ground
// station and relaying them over MQTT.

package main

import (
	"os"

	"github.com/Thermoquad/fluctus-relay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
