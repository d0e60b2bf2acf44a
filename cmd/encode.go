// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	"github.com/spf13/cobra"
)

// Flight log CSV columns
const (
	csvTimeMs   = 0
	csvStatus   = 2
	csvAltitude = 3
	csvSpeed    = 4
	csvAngle    = 5
	csvAccel    = 8
	csvBattMV   = 12
	csvP1       = 13
	csvP2       = 14
	csvP3       = 15
	csvGPSLat   = 19
	csvGPSLng   = 20
	csvGPSState = 22

	csvMinFields = csvGPSState + 1
	csvHeader    = "time (ms)"
)

// encodeOptions are the values a flight log does not carry
type encodeOptions struct {
	UID  int16
	FW   int16
	RSSI int
	SNR  int
}

// encodeResult counts what encodeCSV did
type encodeResult struct {
	Encoded int
	Skipped int
}

var (
	encodeOutput string
	encodeUID    int
	encodeFW     int
	encodeRSSI   int
	encodeSNR    int
)

var encodeCmd = &cobra.Command{
	Use:   "encode <flight.csv>",
	Short: "Synthesize telemetry lines from a flight log CSV",
	Long: `Convert a recorded flight log into Fluctus telemetry lines, one per row.

The CSV has a "time (ms)" header followed by rows with at least 23 columns:
time, delta time, status, baro altitude, vertical speed, angle, roll rate,
vertical accel, accel, dead reckoning altitude, baro speed, ambient temp,
battery (mV), P1-P3 states, analog inputs, freefall, GPS lat, GPS lng,
GPS altitude, GPS state and satellites.

Values are truncated toward zero to the wire resolution. Every line is decoded
and re-encoded to check it round trips. The output can be replayed with
--file.

Example:
  fluctus-relay encode exampleFluctusData.csv -o flight.log
  fluctus-relay relay --file flight.log`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (default stdout)")
	encodeCmd.Flags().IntVar(&encodeUID, "uid", 62, "Flight computer uid")
	encodeCmd.Flags().IntVar(&encodeFW, "fw", 262, "Firmware version")
	encodeCmd.Flags().IntVar(&encodeRSSI, "rssi", -65, "RSSI written to every line")
	encodeCmd.Flags().IntVar(&encodeSNR, "snr", 6, "SNR written to every line")
}

func runEncode(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if encodeOutput != "" {
		f, err := os.Create(encodeOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if encodeUID < math.MinInt16 || encodeUID > math.MaxInt16 || encodeFW < math.MinInt16 || encodeFW > math.MaxInt16 {
		return fmt.Errorf("uid and fw must fit in 16 bits")
	}
	opts := encodeOptions{
		UID:  int16(encodeUID),
		FW:   int16(encodeFW),
		RSSI: encodeRSSI,
		SNR:  encodeSNR,
	}

	w := bufio.NewWriter(out)
	res, err := encodeCSV(in, w, opts)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	log.Printf("Encoded %d lines, skipped %d rows", res.Encoded, res.Skipped)
	return nil
}

// encodeCSV writes one telemetry line per usable CSV row. Rows that are too
// short, unparseable, or out of range are logged and skipped.
func encodeCSV(r io.Reader, w io.Writer, opts encodeOptions) (encodeResult, error) {
	var res encodeResult

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			log.Printf("csv row %d: %v, skipping", row, err)
			res.Skipped++
			continue
		}
		if len(fields) == 0 || strings.HasPrefix(fields[0], csvHeader) {
			continue
		}

		line, err := encodeRow(fields, opts)
		if err != nil {
			log.Printf("csv row %d: %v, skipping", row, err)
			res.Skipped++
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return res, err
		}
		res.Encoded++
	}
}

// encodeRow converts one CSV row into a telemetry line
func encodeRow(fields []string, opts encodeOptions) (string, error) {
	rec, err := recordFromCSV(fields, opts)
	if err != nil {
		return "", err
	}
	line, err := fluctus.Encode(rec)
	if err != nil {
		return "", err
	}
	if err := checkRoundTrip(line); err != nil {
		return "", err
	}
	return line, nil
}

// recordFromCSV maps one flight log row onto a record
func recordFromCSV(fields []string, opts encodeOptions) (*fluctus.Record, error) {
	if len(fields) < csvMinFields {
		return nil, fmt.Errorf("%d columns, need %d", len(fields), csvMinFields)
	}

	p := csvParser{fields: fields}
	timeMs := p.intAt(csvTimeMs)
	status := p.intAt(csvStatus)
	altitude := p.floatAt(csvAltitude)
	speed := p.floatAt(csvSpeed)
	angle := p.floatAt(csvAngle)
	accel := p.floatAt(csvAccel)
	battMV := p.floatAt(csvBattMV)
	p1, p2, p3 := p.intAt(csvP1), p.intAt(csvP2), p.intAt(csvP3)
	lat := p.floatAt(csvGPSLat)
	lng := p.floatAt(csvGPSLng)
	gpsState := p.intAt(csvGPSState)
	if p.err != nil {
		return nil, p.err
	}

	if timeMs < 0 || timeMs > math.MaxUint32 {
		return nil, fmt.Errorf("time %d ms out of range", timeMs)
	}
	if status < 0 || status > math.MaxUint8 || gpsState < 0 || gpsState > math.MaxUint8 {
		return nil, fmt.Errorf("status or gps state out of range")
	}
	if angle < 0 || angle > math.MaxUint8 {
		return nil, fmt.Errorf("angle %g out of range", angle)
	}

	return &fluctus.Record{
		Callsign:    'F',
		PacketType:  'B',
		UID:         opts.UID,
		FW:          opts.FW,
		TimeMPU:     uint32(timeMs),
		Status:      fluctus.Status(status),
		Altitude:    int32(math.Trunc(altitude)),
		SpeedVert:   clampUint16(speed),
		Accel:       accel,
		Angle:       uint8(angle),
		BattVoltage: battMV / 1000,
		MissionTime: float64(timeMs) / 1000,
		Pyro:        fluctus.NewPyro(fluctus.PyroState(p1), fluctus.PyroState(p2), fluctus.PyroState(p3)),
		GPSLat:      lat,
		GPSLng:      lng,
		GPSState:    uint8(gpsState),
		Diagnostics: fluctus.Diagnostics{RSSI: opts.RSSI, SNR: opts.SNR},
	}, nil
}

// checkRoundTrip verifies a line decodes and re-encodes to itself
func checkRoundTrip(line string) error {
	rec, err := fluctus.Decode(line)
	if err != nil {
		return err
	}
	again, err := fluctus.Encode(rec)
	if err != nil {
		return err
	}
	if again != line {
		return fmt.Errorf("round trip mismatch: %s != %s", again, line)
	}
	return nil
}

// clampUint16 truncates v and clamps it to the unsigned 16-bit range.
// Descent speeds are negative and cannot be represented.
func clampUint16(v float64) uint16 {
	v = math.Trunc(v)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// csvParser parses columns, keeping the first error
type csvParser struct {
	fields []string
	err    error
}

func (p *csvParser) floatAt(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.fields[i]), 64)
	if err != nil {
		p.err = fmt.Errorf("column %d: %v", i, err)
	}
	return v
}

func (p *csvParser) intAt(i int) int64 {
	if p.err != nil {
		return 0
	}
	s := strings.TrimSpace(p.fields[i])
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some loggers write integral columns as floats
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.err = fmt.Errorf("column %d: %v", i, err)
			return 0
		}
		v = int64(f)
	}
	return v
}
