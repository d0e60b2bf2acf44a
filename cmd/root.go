// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Replay flags
	replayFile string
	replayRate float64

	// MQTT flags
	configPath string
	envFile    string
	brokerAddr string
	topicBase  string
	deviceName string
)

var rootCmd = &cobra.Command{
	Use:   "fluctus-relay",
	Short: "Fluctus telemetry decoder and MQTT relay",
	Long: `fluctus-relay - A CLI tool for decoding and relaying Fluctus rocket telemetry.

The ground station prints one telemetry line per packet. This tool decodes
those lines, publishes every field over MQTT, and forwards arm, ping and start
commands back to the flight computer.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]
  Replay:    --file flight.log [--rate 50]

For WebSocket authentication, the password is read from the FLUCTUS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

MQTT settings come from --config (HCL), then the environment (MQTT_BROKER,
MQTT_PORT, USERNAME, PASSWORD, also loaded from --env-file), then flags.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Replay flags
	rootCmd.PersistentFlags().StringVarP(&replayFile, "file", "f", "", "Replay telemetry lines from a log file")
	rootCmd.PersistentFlags().Float64Var(&replayRate, "rate", 50, "Replay rate in lines per second")

	// MQTT flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "MQTT config file (HCL)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with MQTT credentials")
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker", "", "MQTT broker host or URL")
	rootCmd.PersistentFlags().StringVar(&topicBase, "topic-base", "", "MQTT topic base")
	rootCmd.PersistentFlags().StringVar(&deviceName, "name", "", "Device name used in MQTT topics")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
