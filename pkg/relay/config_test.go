// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(`
broker = "broker.example.org"
port = 8884
username = "ground"
topic_base = "rockets"
name = "apogee"
qos = 1
snapshot = true
keepalive_sec = 30
`))
	require.NoError(t, err)

	assert.Equal(t, "broker.example.org", c.Broker)
	assert.Equal(t, 8884, c.Port)
	assert.Equal(t, "ground", c.Username)
	assert.Equal(t, "rockets", c.TopicBase)
	assert.Equal(t, "apogee", c.Name)
	assert.Equal(t, 1, c.QoS)
	assert.True(t, c.Snapshot)
	assert.Equal(t, 30*time.Second, c.Keepalive())
	assert.Equal(t, DefaultNetworkTimeout, c.NetworkTimeout())
	assert.Equal(t, "wss://broker.example.org:8884/mqtt", c.BrokerURL())
	assert.Equal(t, "apogee_telemetry", c.ClientIDOrDefault())
	assert.NoError(t, c.Validate())
}

func TestReadConfig_Defaults(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopicBase, c.TopicBase)
	assert.Equal(t, DefaultName, c.Name)
	assert.Equal(t, DefaultKeepalive, c.Keepalive())
}

func TestReadConfig_Invalid(t *testing.T) {
	for _, input := range []string{`broker = "x`, `qos = "two"`} {
		_, err := ReadConfig(strings.NewReader(input))
		require.Error(t, err, input)
		assert.Contains(t, err.Error(), "config unmarshal")
	}
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`broker = "tcp://localhost:1883"`), 0o600))

	c, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", c.BrokerURL())

	c, err = ReadConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, c.Name)

	_, err = ReadConfigFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"MQTT_BROKER":      "mqtt.example.org",
		"MQTT_PORT":        "443",
		"USERNAME":         "pad",
		"PASSWORD":         "generic",
		"FLUCTUS_PASSWORD": "specific",
	}
	c := DefaultConfig()
	require.NoError(t, c.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "mqtt.example.org", c.Broker)
	assert.Equal(t, 443, c.Port)
	assert.Equal(t, "pad", c.Username)
	assert.Equal(t, "specific", c.Password)
}

func TestConfig_ApplyEnvBadPort(t *testing.T) {
	c := DefaultConfig()
	err := c.ApplyEnv(func(k string) string {
		if k == "MQTT_PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no broker", func(c *Config) { c.Broker = "" }},
		{"bad qos", func(c *Config) { c.QoS = 3 }},
		{"wildcard base", func(c *Config) { c.TopicBase = "telemetry/#" }},
		{"slash in name", func(c *Config) { c.Name = "a/b" }},
		{"empty name", func(c *Config) { c.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Broker = "localhost"
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
