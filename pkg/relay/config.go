// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

// Defaults
const (
	DefaultTopicBase      = "telemetry"
	DefaultName           = "fluctus"
	DefaultKeepalive      = 60 * time.Second
	DefaultNetworkTimeout = 10 * time.Second
	DefaultWebSocketPath  = "/mqtt"
)

// Config holds the MQTT connection and topic settings
type Config struct {
	Broker            string `hcl:"broker"` // URL, or a bare host combined with Port
	Port              int    `hcl:"port"`
	Username          string `hcl:"username"`
	Password          string `hcl:"password"` // secret
	ClientID          string `hcl:"client_id"`
	TopicBase         string `hcl:"topic_base"`
	Name              string `hcl:"name"`
	QoS               int    `hcl:"qos"`
	Retain            bool   `hcl:"retain"`
	Snapshot          bool   `hcl:"snapshot"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	TLSCAFile         string `hcl:"tls_ca_file"`
	TLSInsecure       bool   `hcl:"tls_insecure"`
	LogDebug          bool   `hcl:"mqtt_log_debug"`
}

// DefaultConfig returns a Config with the topic defaults filled in
func DefaultConfig() *Config {
	return &Config{
		TopicBase: DefaultTopicBase,
		Name:      DefaultName,
	}
}

// ReadConfig parses HCL over the defaults
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := hcl.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "config unmarshal")
	}
	return c, nil
}

// ReadConfigFile reads an HCL config file. An empty path yields the defaults.
func ReadConfigFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config file=%s", path)
	}
	defer f.Close()
	c, err := ReadConfig(f)
	if err != nil {
		return nil, errors.Annotatef(err, "config file=%s", path)
	}
	return c, nil
}

// ApplyEnv overrides settings from environment variables. FLUCTUS_PASSWORD
// takes precedence over PASSWORD.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("MQTT_BROKER"); v != "" {
		c.Broker = v
	}
	if v := getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return errors.NotValidf("MQTT_PORT=%q", v)
		}
		c.Port = port
	}
	if v := getenv("USERNAME"); v != "" {
		c.Username = v
	}
	if v := getenv("PASSWORD"); v != "" {
		c.Password = v
	}
	if v := getenv("FLUCTUS_PASSWORD"); v != "" {
		c.Password = v
	}
	return nil
}

// Validate checks that the config can be used to connect
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.NotValidf("empty broker")
	}
	if c.QoS < 0 || c.QoS > 2 {
		return errors.NotValidf("qos=%d", c.QoS)
	}
	if c.TopicBase == "" || strings.ContainsAny(c.TopicBase, "+#") {
		return errors.NotValidf("topic_base=%q", c.TopicBase)
	}
	if c.Name == "" || strings.ContainsAny(c.Name, "/+#") {
		return errors.NotValidf("name=%q", c.Name)
	}
	return nil
}

// BrokerURL returns the broker address in the form paho expects. A bare host
// is reached over secure WebSocket, like the browser dashboard does.
func (c *Config) BrokerURL() string {
	if strings.Contains(c.Broker, "://") {
		return c.Broker
	}
	host := c.Broker
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", host, c.Port)
	}
	return "wss://" + host + DefaultWebSocketPath
}

// ClientIDOrDefault returns the configured client ID or "<name>_telemetry"
func (c *Config) ClientIDOrDefault() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return c.Name + "_telemetry"
}

// Keepalive returns the MQTT keepalive interval
func (c *Config) Keepalive() time.Duration {
	if c.KeepaliveSec > 0 {
		return time.Duration(c.KeepaliveSec) * time.Second
	}
	return DefaultKeepalive
}

// NetworkTimeout returns the timeout for connect, publish and subscribe
func (c *Config) NetworkTimeout() time.Duration {
	if c.NetworkTimeoutSec > 0 {
		return time.Duration(c.NetworkTimeoutSec) * time.Second
	}
	return DefaultNetworkTimeout
}

// Topics returns the topic set for this device
func (c *Config) Topics() Topics {
	return Topics{Base: c.TopicBase, Name: c.Name}
}
