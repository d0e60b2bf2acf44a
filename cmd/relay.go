// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/Thermoquad/fluctus-relay/pkg/relay"
	"github.com/Thermoquad/fluctus-relay/pkg/stream"
	"github.com/spf13/cobra"
)

// Line formats the relay understands
const (
	formatFluctus = "fluctus"
	formatJSON    = "json"
)

var (
	relayWSAddr        string
	relayStatsInterval int
	relayNoWait        bool
	relayFormat        string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Decode telemetry and publish it over MQTT",
	Long: `Read telemetry lines from the ground station, decode them, and publish
every field to its own MQTT topic:

  <topic-base>/<name>/<field>

Control messages on <topic-base>/<name>/control (arm, ping,
start<band><channel><name>) are forwarded to the ground station. A "list"
message on <topic-base>/devices is answered with the device name.

With --file the log is replayed at --rate lines per second each time a start
command arrives on the control topic (or once, immediately, with --no-wait).

With --ws-addr decoded records are also streamed as JSON to WebSocket
clients at ws://<addr>/live.

With --format json the device is a tracker that already prints one JSON object
per line. Every key is published to its own topic; enum objects are published
as their "raw" member. The live view is not available in this mode.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().StringVar(&relayWSAddr, "ws-addr", "", "Serve a live JSON view on this address (e.g. :8080)")
	relayCmd.Flags().IntVar(&relayStatsInterval, "stats-interval", 60, "Statistics log interval in seconds (0 disables)")
	relayCmd.Flags().BoolVar(&relayNoWait, "no-wait", false, "Replay immediately instead of waiting for a start command")
	relayCmd.Flags().StringVar(&relayFormat, "format", formatFluctus, "Device line format: fluctus or json")
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "[relay] ", log.LstdFlags)

	if relayFormat != formatFluctus && relayFormat != formatJSON {
		return fmt.Errorf("unknown --format %q (use %s or %s)", relayFormat, formatFluctus, formatJSON)
	}

	cfg, err := loadRelayConfig()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := relay.Connect(cfg, log.New(os.Stderr, "[mqtt] ", log.LstdFlags))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	r := relay.New(client, cfg, logger)
	if err := r.Subscribe(); err != nil {
		return err
	}

	logger.Printf("Connection: %s", connInfo)
	logger.Printf("Broker: %s as %s", cfg.BrokerURL(), cfg.ClientIDOrDefault())
	logger.Printf("Publishing to %s/<field>, control on %s", r.Topics().Device(), r.Topics().Control())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hub *stream.Hub
	if relayWSAddr != "" && relayFormat == formatFluctus {
		hub = stream.NewHub(logger)
		go hub.Run(ctx)
		srv := serveLiveView(relayWSAddr, hub, logger)
		defer srv.Shutdown(context.Background())
	}

	go forwardCommands(ctx, r.Commands(), conn, logger)

	play := func() error {
		return relayLines(ctx, conn, r, hub, logger)
	}

	// Replays wait for a start on the control topic, every time
	if file, replay := conn.(*FileConnection); replay && !relayNoWait {
		logger.Printf("Start commands on %s trigger a replay", r.Topics().Control())
		return replayOnStart(ctx, file, r.Runs(), play, logger)
	}

	return play()
}

// replayOnStart plays the replay file once per start signal, rewinding after
// each pass, until ctx is done or a pass fails
func replayOnStart(ctx context.Context, file *FileConnection, runs <-chan struct{}, play func() error, logger *log.Logger) error {
	for {
		logger.Printf("Waiting for a start command")
		select {
		case <-runs:
		case <-ctx.Done():
			return nil
		}

		logger.Printf("Start received, replaying %s", file.Name())
		if err := play(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		// Back to the first line for the next start
		if err := file.Rewind(); err != nil {
			return fmt.Errorf("rewind %s: %v", file.Name(), err)
		}
		logger.Printf("Replay finished")
	}
}

// relayLines decodes and publishes lines until the connection ends or ctx is done
func relayLines(ctx context.Context, conn Connection, r *relay.Relay, hub *stream.Hub, logger *log.Logger) error {
	stats := fluctus.NewStatistics()

	var statsTick <-chan time.Time
	if relayStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(relayStatsInterval) * time.Second)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	lines := lineSource(conn, ctx.Done())
	for {
		select {
		case <-ctx.Done():
			logStats(logger, stats, r)
			return nil

		case <-statsTick:
			logStats(logger, stats, r)

		case ev, ok := <-lines:
			if !ok {
				return nil
			}
			if ev.err != nil {
				logStats(logger, stats, r)
				if errors.Is(ev.err, io.EOF) || errors.Is(ev.err, ErrConnectionClosed) {
					logger.Printf("Connection closed")
					return nil
				}
				return fmt.Errorf("read error: %v", ev.err)
			}

			if relayFormat == formatJSON {
				relayJSONLine(ev.line, r, stats, logger)
				continue
			}

			rec, decodeErr := fluctus.Decode(ev.line)
			anomalies := stats.Observe(rec, decodeErr)
			switch {
			case decodeErr != nil:
				logger.Printf("Decode error: %v", decodeErr)
			case rec == nil:
				logger.Printf("Device: %s", ev.line)
			default:
				for _, a := range anomalies {
					logger.Printf("Anomaly uid=%d: %s", rec.UID, a.Message)
				}
				if err := r.Publish(rec); err != nil {
					logger.Printf("Publish error: %v", err)
				}
				if hub != nil {
					hub.Broadcast(rec)
				}
			}
		}
	}
}

// relayJSONLine publishes one tracker JSON line. Lines that are not JSON
// objects are device output and only logged.
func relayJSONLine(line string, r *relay.Relay, stats *fluctus.Statistics, logger *log.Logger) {
	fields, err := relay.ProjectJSON([]byte(line))
	if err != nil {
		stats.Observe(nil, nil)
		logger.Printf("Device: %s", line)
		return
	}
	stats.Update(nil, nil, nil)
	if err := r.PublishFields(fields); err != nil {
		logger.Printf("Publish error: %v", err)
	}
}

// forwardCommands writes control commands to the device in arrival order
func forwardCommands(ctx context.Context, commands <-chan fluctus.Command, conn Connection, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-commands:
			if err := SendCommand(conn, c); err != nil {
				logger.Printf("Failed to send %s: %v", c, err)
				continue
			}
			logger.Printf("Sent %s", c)
		}
	}
}

// serveLiveView starts the live view HTTP server in the background
func serveLiveView(addr string, hub *stream.Hub, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/live", hub)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("Live view on ws://%s/live", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Live view server error: %v", err)
		}
	}()
	return srv
}

func logStats(logger *log.Logger, stats *fluctus.Statistics, r *relay.Relay) {
	stats.CalculateRates()
	published, failed := r.Stats()
	logger.Printf("%d lines, %d packets (%d valid, %d errors, %d anomalous), %.1f pkt/s, %d published, %d publish failures",
		stats.TotalLines, stats.TotalPackets, stats.ValidPackets, stats.Errors(), stats.AnomalousValues,
		stats.PacketRate, published, failed)
}
