// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/Thermoquad/fluctus-relay/pkg/track"
	"github.com/spf13/cobra"
)

var (
	gpxOutput string
	gpxName   string
	gpxStart  string
	gpxUID    int
)

var gpxCmd = &cobra.Command{
	Use:   "gpx <flight.log>",
	Short: "Convert a telemetry log into a GPX track",
	Long: `Decode a recorded telemetry log and write the GPS fixes as a GPX 1.1 track.

Lines without a GPS fix (gps state 0, 0/0 position, or out of range) are
skipped. Point times are --start plus the flight computer's MPU time. When
several rockets share the log, --uid selects one.

Example:
  fluctus-relay gpx flight.log -o flight.gpx --start 2025-03-14T10:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runGPX,
}

func init() {
	rootCmd.AddCommand(gpxCmd)
	gpxCmd.Flags().StringVarP(&gpxOutput, "output", "o", "", "Output file (default stdout)")
	gpxCmd.Flags().StringVar(&gpxName, "track-name", "", "Track name (default log file name)")
	gpxCmd.Flags().StringVar(&gpxStart, "start", "", "RFC 3339 time of MPU time zero (default log file modification time)")
	gpxCmd.Flags().IntVar(&gpxUID, "uid", -1, "Only use records from this uid")
}

func runGPX(cmd *cobra.Command, args []string) error {
	path := args[0]
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	start, err := gpxStartTime(in, gpxStart)
	if err != nil {
		return err
	}
	name := gpxName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	b := track.NewBuilder(name, start)
	skipped, err := buildTrack(in, b, gpxUID)
	if err != nil {
		return err
	}
	if b.Len() == 0 {
		return fmt.Errorf("no GPS fixes in %s", path)
	}

	data, err := b.XML()
	if err != nil {
		return err
	}

	if gpxOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(gpxOutput, data, 0o644); err != nil {
		return err
	}
	log.Printf("Wrote %d points to %s (%d records without fix, %d lines skipped)", b.Len(), gpxOutput, b.Skipped(), skipped)
	return nil
}

// gpxStartTime parses the start flag, falling back to the file's
// modification time
func gpxStartTime(f *os.File, flag string) (time.Time, error) {
	if flag != "" {
		t, err := time.Parse(time.RFC3339, flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --start: %v", err)
		}
		return t, nil
	}
	info, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// buildTrack feeds every decodable record to b. uid < 0 accepts all rockets.
// Returns the number of lines that were not telemetry or failed to decode.
func buildTrack(r io.Reader, b *track.Builder, uid int) (int, error) {
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	for scanner.Scan() {
		rec, err := fluctus.Decode(scanner.Text())
		if err != nil || rec == nil {
			skipped++
			continue
		}
		if uid >= 0 && int(rec.UID) != uid {
			continue
		}
		b.Add(rec)
	}
	return skipped, scanner.Err()
}
