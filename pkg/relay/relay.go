// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay publishes decoded Fluctus telemetry over MQTT and turns
// control messages into device commands.
package relay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

// discoveryRequest is the payload that asks every device to announce itself
const discoveryRequest = "list"

const commandQueueDepth = 16

// Client is the part of mqtt.Client the relay needs
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Relay publishes records for one device and collects its control commands
type Relay struct {
	client  Client
	topics  Topics
	qos     byte
	retain  bool
	snap    bool
	timeout time.Duration
	log     *log.Logger

	commands chan fluctus.Command
	runs     chan struct{}

	mu        sync.Mutex
	published uint64
	failed    uint64
}

// New creates a relay for the device described by cfg
func New(client Client, cfg *Config, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.New(os.Stderr, "[relay] ", log.LstdFlags)
	}
	return &Relay{
		client:   client,
		topics:   cfg.Topics(),
		qos:      byte(cfg.QoS),
		retain:   cfg.Retain,
		snap:     cfg.Snapshot,
		timeout:  cfg.NetworkTimeout(),
		log:      logger,
		commands: make(chan fluctus.Command, commandQueueDepth),
		runs:     make(chan struct{}, 1),
	}
}

// Topics returns the relay's topic set
func (r *Relay) Topics() Topics {
	return r.topics
}

// Commands delivers parsed control commands in arrival order
func (r *Relay) Commands() <-chan fluctus.Command {
	return r.commands
}

// Runs is signalled when a start command arrives; replay waits on it
func (r *Relay) Runs() <-chan struct{} {
	return r.runs
}

// Subscribe listens on the control and discovery topics
func (r *Relay) Subscribe() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{r.topics.Control(), r.onControl},
		{r.topics.Devices(), r.onDevices},
	}
	for _, s := range subs {
		t := r.client.Subscribe(s.topic, r.qos, s.handler)
		if err := tokenWait(t, "subscribe:"+s.topic, r.timeout); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends every field of the record to its own topic, then the CBOR
// snapshot if enabled. A nil record is ignored.
func (r *Relay) Publish(rec *fluctus.Record) error {
	if rec == nil {
		return nil
	}

	firstErr := r.PublishFields(Project(rec))

	if r.snap {
		data, err := fluctus.MarshalCBOR(rec)
		if err != nil {
			return errors.Annotate(err, "snapshot")
		}
		if err := r.publish(r.topics.Record(), data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishFields sends each value to its field topic. All fields are attempted;
// the first failure is returned.
func (r *Relay) PublishFields(fields []FieldValue) error {
	var firstErr error
	for _, fv := range fields {
		if err := r.publish(r.topics.Field(fv.Key), fv.Value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns the number of successful and failed publications
func (r *Relay) Stats() (published, failed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.failed
}

func (r *Relay) publish(topic string, payload interface{}) error {
	t := r.client.Publish(topic, r.qos, r.retain, payload)
	err := tokenWait(t, "publish:"+topic, r.timeout)

	r.mu.Lock()
	if err != nil {
		r.failed++
	} else {
		r.published++
	}
	r.mu.Unlock()
	return err
}

func (r *Relay) onControl(_ mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	cmd, err := fluctus.ParseCommand(payload)
	msg.Ack()
	if err != nil {
		r.log.Printf("Ignoring control message %q: %v", payload, err)
		return
	}

	select {
	case r.commands <- cmd:
	default:
		r.log.Printf("Command queue full, dropping %s", cmd)
		return
	}

	if _, ok := cmd.(*fluctus.StartCommand); ok {
		select {
		case r.runs <- struct{}{}:
		default:
		}
	}
}

func (r *Relay) onDevices(_ mqtt.Client, msg mqtt.Message) {
	msg.Ack()
	if strings.TrimSpace(string(msg.Payload())) != discoveryRequest {
		return
	}
	// Announce without waiting; this runs on the client's callback goroutine
	r.client.Publish(r.topics.Devices(), r.qos, false, r.topics.Name)
}

// DiscoverDevices asks every device under the topic base to announce itself
// and collects the names that answer until ctx is done.
func DiscoverDevices(ctx context.Context, client Client, topics Topics, qos byte, timeout time.Duration) ([]string, error) {
	var mu sync.Mutex
	seen := make(map[string]struct{})

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		name := strings.TrimSpace(string(msg.Payload()))
		if name == "" || name == discoveryRequest {
			return
		}
		mu.Lock()
		seen[name] = struct{}{}
		mu.Unlock()
	}

	if err := tokenWait(client.Subscribe(topics.Devices(), qos, handler), "subscribe:"+topics.Devices(), timeout); err != nil {
		return nil, err
	}
	if err := tokenWait(client.Publish(topics.Devices(), qos, false, discoveryRequest), "publish discovery", timeout); err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Connect builds a paho client from cfg and connects it
func Connect(cfg *Config, logger *log.Logger) (mqtt.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger != nil {
		mqtt.CRITICAL = logger
		mqtt.ERROR = logger
		mqtt.WARN = logger
		if cfg.LogDebug {
			mqtt.DEBUG = logger
		}
	}

	tlsconf := &tls.Config{InsecureSkipVerify: cfg.TLSInsecure}
	if cfg.TLSCAFile != "" {
		cabytes, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, errors.Annotatef(err, "tls_ca_file=%s", cfg.TLSCAFile)
		}
		tlsconf.RootCAs = x509.NewCertPool()
		if !tlsconf.RootCAs.AppendCertsFromPEM(cabytes) {
			return nil, errors.NotValidf("tls_ca_file=%s", cfg.TLSCAFile)
		}
	}

	timeout := cfg.NetworkTimeout()
	username, password := cfg.Username, cfg.Password
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetClientID(cfg.ClientIDOrDefault()).
		SetConnectTimeout(timeout).
		SetCredentialsProvider(func() (string, string) { return username, password }).
		SetKeepAlive(cfg.Keepalive()).
		SetMaxReconnectInterval(timeout * 3).
		SetOrderMatters(false).
		SetPingTimeout(timeout).
		SetTLSConfig(tlsconf).
		SetWriteTimeout(timeout)

	client := mqtt.NewClient(opts)
	if err := tokenWait(client.Connect(), "connect "+cfg.BrokerURL(), timeout); err != nil {
		return nil, err
	}
	return client, nil
}

func tokenWait(t mqtt.Token, tag string, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return errors.Timeoutf("%s", tag)
	}
	if err := t.Error(); err != nil {
		return errors.Annotate(err, tag)
	}
	return nil
}
