// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command limits
const (
	MaxChannel    = 25
	MaxNameLength = 7

	startPrefix = "start"
	startAck    = "startok"
	pongReply   = "fcpong"
)

// ErrInvalidCommand is returned for control payloads that are not commands
var ErrInvalidCommand = errors.New("invalid command")

// Command is a control message for the flight computer.
// Wire returns the newline-terminated serial form.
type Command interface {
	Wire() string
	String() string
}

// StartCommand tunes the radio and names the device
type StartCommand struct {
	Band    uint8  // 0 or 1
	Channel uint8  // 0..25
	Name    string // up to 7 ASCII letters
}

// NewStartCommand validates the arguments and builds a StartCommand
func NewStartCommand(band, channel int, name string) (*StartCommand, error) {
	if band != 0 && band != 1 {
		return nil, fmt.Errorf("%w: band must be 0 or 1, got %d", ErrInvalidCommand, band)
	}
	if channel < 0 || channel > MaxChannel {
		return nil, fmt.Errorf("%w: channel must be between 0 and %d, got %d", ErrInvalidCommand, MaxChannel, channel)
	}
	if name == "" || len(name) > MaxNameLength || !isLetters(name) {
		return nil, fmt.Errorf("%w: device name must be 1-%d letters, got %q", ErrInvalidCommand, MaxNameLength, name)
	}
	return &StartCommand{Band: uint8(band), Channel: uint8(channel), Name: name}, nil
}

// Wire returns "start<band><channel:02><name>\n"
func (c *StartCommand) Wire() string {
	return fmt.Sprintf("%s%d%02d%s\n", startPrefix, c.Band, c.Channel, c.Name)
}

func (c *StartCommand) String() string {
	return fmt.Sprintf("START band=%d channel=%d name=%s", c.Band, c.Channel, c.Name)
}

// ArmCommand arms the flight computer
type ArmCommand struct{}

// Wire returns "arm\n"
func (ArmCommand) Wire() string { return "arm\n" }

func (ArmCommand) String() string { return "ARM" }

// PingCommand asks the flight computer to answer with fcpong
type PingCommand struct{}

// Wire returns "ping\n"
func (PingCommand) Wire() string { return "ping\n" }

func (PingCommand) String() string { return "PING" }

// ParseCommand parses a control payload. Surrounding whitespace is ignored;
// arm and ping are case-insensitive.
func ParseCommand(payload string) (Command, error) {
	s := strings.TrimSpace(payload)

	switch strings.ToLower(s) {
	case "arm":
		return ArmCommand{}, nil
	case "ping":
		return PingCommand{}, nil
	}

	rest, ok := strings.CutPrefix(s, startPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, payload)
	}
	if len(rest) < 4 || !isDigits(rest[:3]) {
		return nil, fmt.Errorf("%w: start needs band, channel and name: %q", ErrInvalidCommand, payload)
	}
	band, _ := strconv.Atoi(rest[:1])
	channel, _ := strconv.Atoi(rest[1:3])
	return NewStartCommand(band, channel, rest[3:])
}

// IsStartAck reports whether a device line acknowledges a start command
func IsStartAck(line string) bool {
	return strings.Contains(line, startAck)
}

// IsPong reports whether a device line answers a ping
func IsPong(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), pongReply)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
