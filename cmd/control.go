// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and commanding the flight computer",
	Long: `Monitor Fluctus flight computers via an interactive terminal UI.

This command provides a TUI for watching live telemetry and sending commands
to the flight computer through the ground station.

Features:
  - Rockets seen on the link, by uid
  - Live flight state for the selected rocket
  - Command entry: arm, ping, start<band><channel><name>
  - Ping round trip times (fcpong)
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the rocket list and the command input.

Supports serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// send writes a command to the current connection
func (cm *connectionManager) send(c fluctus.Command) error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}
	return SendCommand(conn, c)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open initial connection (serial, WebSocket, or replay file)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	// Create connection manager
	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	// Create TUI model with connection manager
	m := initialControlModel(cm, connInfo)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	// Start reader goroutine
	go cm.readerLoop()

	// Run TUI
	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.getConn().Close()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(cm.done)
	cm.getConn().Close()
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		// Start reading from current connection
		connLost := cm.readFromConnection()

		if connLost {
			// Notify TUI about connection loss
			cm.p.Send(connectionLostMsg{})

			// Attempt to reconnect
			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection decodes lines from the connection until it fails.
// Returns true if connection was lost, false if shutdown requested.
func (cm *connectionManager) readFromConnection() bool {
	synchronized := false
	linesBeforeSync := 0

	// Buffered channel for batching updates
	batchChan := make(chan controlDataMsg, 100)
	syncChan := make(chan controlSyncMsg, 1)
	readerDone := make(chan struct{})

	// Reader goroutine - decodes lines and sends to batch channel
	go func() {
		defer close(readerDone)
		for ev := range lineSource(cm.getConn(), cm.done) {
			if ev.err != nil {
				// EOF or a closed WebSocket ends this connection
				return
			}

			rec, decodeErr := fluctus.Decode(ev.line)
			// The first line is often cut, ignore errors until a valid record
			if decodeErr != nil && !synchronized {
				linesBeforeSync++
				continue
			}
			if rec != nil && !synchronized {
				synchronized = true
				select {
				case syncChan <- controlSyncMsg{skippedLines: linesBeforeSync}:
				default:
				}
			}

			select {
			case batchChan <- controlDataMsg{line: ev.line, received: ev.received, record: rec, decodeErr: decodeErr}:
			default:
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg

				// Check for sync message
				select {
				case sync := <-syncChan:
					batch.syncMsg = &sync
				default:
				}

				// Drain all available messages from batch channel
			drainLoop:
				for {
					select {
					case msg := <-batchChan:
						batch.messages = append(batch.messages, msg)
					default:
						break drainLoop
					}
				}

				// Send batch if we have anything
				if batch.syncMsg != nil || len(batch.messages) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	// Wait for reader to finish (connection lost or shutdown)
	<-readerDone

	// Check if we're shutting down
	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	// Close old connection
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		// Attempt to reconnect
		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)

			// Notify TUI about reconnection
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
