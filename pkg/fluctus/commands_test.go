// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fluctus

import (
	"errors"
	"testing"
)

// ============================================================
// Command Builder Tests
// ============================================================

func TestNewStartCommand(t *testing.T) {
	cmd, err := NewStartCommand(1, 5, "Fluctus")
	if err != nil {
		t.Fatalf("NewStartCommand failed: %v", err)
	}
	if cmd.Wire() != "start105Fluctus\n" {
		t.Errorf("Wire() = %q", cmd.Wire())
	}
	if cmd.String() != "START band=1 channel=5 name=Fluctus" {
		t.Errorf("String() = %q", cmd.String())
	}
}

func TestNewStartCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		band    int
		channel int
		device  string
	}{
		{"band 2", 2, 5, "Fluctus"},
		{"negative band", -1, 5, "Fluctus"},
		{"channel 26", 0, 26, "Fluctus"},
		{"negative channel", 0, -1, "Fluctus"},
		{"name too long", 0, 5, "Fluctuss"},
		{"empty name", 0, 5, ""},
		{"digits in name", 0, 5, "Rocket1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStartCommand(tt.band, tt.channel, tt.device); !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("expected ErrInvalidCommand, got %v", err)
			}
		})
	}
}

func TestSimpleCommands_Wire(t *testing.T) {
	if (ArmCommand{}).Wire() != "arm\n" {
		t.Errorf("arm wire = %q", ArmCommand{}.Wire())
	}
	if (PingCommand{}).Wire() != "ping\n" {
		t.Errorf("ping wire = %q", PingCommand{}.Wire())
	}
}

// ============================================================
// ParseCommand Tests
// ============================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		wire    string
	}{
		{"arm", "arm\n"},
		{"ARM", "arm\n"},
		{" ping \n", "ping\n"},
		{"start025Fluctus", "start025Fluctus\n"},
		{"start125abc", "start125abc\n"},
		{"start000X", "start000X\n"},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.payload)
		if err != nil {
			t.Errorf("ParseCommand(%q) failed: %v", tt.payload, err)
			continue
		}
		if cmd.Wire() != tt.wire {
			t.Errorf("ParseCommand(%q).Wire() = %q, expected %q", tt.payload, cmd.Wire(), tt.wire)
		}
	}
}

func TestParseCommand_StartFields(t *testing.T) {
	cmd, err := ParseCommand("start117Rocket")
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	start, ok := cmd.(*StartCommand)
	if !ok {
		t.Fatalf("expected *StartCommand, got %T", cmd)
	}
	if start.Band != 1 || start.Channel != 17 || start.Name != "Rocket" {
		t.Errorf("unexpected start command: %+v", start)
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	for _, payload := range []string{
		"",
		"list",
		"disarm",
		"start",
		"start10",
		"start105",
		"startABCFluctus",
		"start226Fluctus",
		"start126Fluctus",
		"start105Fluctus1",
		"start105TooLongName",
	} {
		if _, err := ParseCommand(payload); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("ParseCommand(%q): expected ErrInvalidCommand, got %v", payload, err)
		}
	}
}

// ============================================================
// Reply Matching Tests
// ============================================================

func TestIsStartAck(t *testing.T) {
	if !IsStartAck("startok") || !IsStartAck("radio startok 5") {
		t.Error("expected startok to be recognized")
	}
	if IsStartAck("start") || IsStartAck("") {
		t.Error("unexpected start acknowledgement")
	}
}

func TestIsPong(t *testing.T) {
	for _, line := range []string{"fcpong", "FCPONG", " FcPong\r\n"} {
		if !IsPong(line) {
			t.Errorf("IsPong(%q) = false", line)
		}
	}
	for _, line := range []string{"pong", "fcpong!", ""} {
		if IsPong(line) {
			t.Errorf("IsPong(%q) = true", line)
		}
	}
}
