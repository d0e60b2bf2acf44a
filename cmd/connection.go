// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

// maxLineLength bounds a single ground station line
const maxLineLength = 4096

// Connection provides a common interface for reading lines from and writing
// commands to a serial port, WebSocket bridge, or replay file
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket bridge. Each message carries one or
// more ground station lines.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	// Read next message from WebSocket
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return 0, err
		}
		if len(data) == 0 {
			// Skip empty messages and continue loop
			continue
		}

		// Bridges that send one line per message omit the terminator
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}

		// Buffer the message and return what fits
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// FileConnection replays a recorded log. Commands written to it are echoed
// to stdout since there is no device to receive them.
type FileConnection struct {
	file *os.File
	out  io.Writer
}

func (f *FileConnection) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

func (f *FileConnection) Write(p []byte) (int, error) {
	return fmt.Fprintf(f.out, "-> %s\n", strings.TrimSpace(string(p)))
}

func (f *FileConnection) Close() error {
	return f.file.Close()
}

// Name returns the path of the replayed log
func (f *FileConnection) Name() string {
	return f.file.Name()
}

// Rewind moves back to the first line so the log can be replayed again
func (f *FileConnection) Rewind() error {
	_, err := f.file.Seek(0, io.SeekStart)
	return err
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// OpenFileConnection opens a recorded log for replay
func OpenFileConnection(path string) (Connection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %v", err)
	}
	return &FileConnection{file: file, out: os.Stdout}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("FLUCTUS_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a replay file, WebSocket, or serial connection based on flags
func OpenConnection() (Connection, string, error) {
	if replayFile != "" {
		// Replay mode
		conn, err := OpenFileConnection(replayFile)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Replay: %s @ %g lines/s", replayFile, replayRate), nil
	}

	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		// Serial mode
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --file must be specified")
}

// SendCommand writes a command line to the device
func SendCommand(conn Connection, c fluctus.Command) error {
	_, err := io.WriteString(conn, c.Wire())
	return err
}

// lineEvent is one line read from a connection, or the error that ended it
type lineEvent struct {
	line     string
	received time.Time
	err      error
}

// readLines scans conn on its own goroutine until it fails or done closes.
// The returned channel is closed after the final event.
func readLines(conn io.Reader, done <-chan struct{}) <-chan lineEvent {
	events := make(chan lineEvent, 100)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 256), maxLineLength)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case events <- lineEvent{line: line, received: time.Now()}:
			case <-done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		select {
		case events <- lineEvent{err: err}:
		case <-done:
		}
	}()
	return events
}

// pacedLines forwards events at rate lines per second. A rate of zero or
// less forwards without delay.
func pacedLines(events <-chan lineEvent, rate float64, done <-chan struct{}) <-chan lineEvent {
	if rate <= 0 {
		return events
	}
	out := make(chan lineEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		for ev := range events {
			if ev.err == nil {
				select {
				case <-ticker.C:
				case <-done:
					return
				}
				ev.received = time.Now()
			}
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
	}()
	return out
}

// lineSource opens the configured connection and returns its line events,
// paced when replaying a file
func lineSource(conn Connection, done <-chan struct{}) <-chan lineEvent {
	events := readLines(conn, done)
	if _, ok := conn.(*FileConnection); ok {
		return pacedLines(events, replayRate, done)
	}
	return events
}
