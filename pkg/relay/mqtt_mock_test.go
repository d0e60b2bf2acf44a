// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

type mockPub struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  interface{}
}

type mockSub struct {
	Pattern string
	Qos     byte
	Handler mqtt.MessageHandler
}

// mqttMock records publications and lets tests inject broker messages
type mqttMock struct {
	mu      sync.Mutex
	pubs    []mockPub
	subs    []mockSub
	pubErr  error
	subErr  error
	onPub   func(m *mqttMock, p mockPub)
	timeout bool
}

func newMqttMock() *mqttMock {
	return &mqttMock{}
}

func (m *mqttMock) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p := mockPub{topic, qos, retained, payload}
	m.mu.Lock()
	m.pubs = append(m.pubs, p)
	hook := m.onPub
	m.mu.Unlock()
	if hook != nil {
		hook(m, p)
	}
	if m.timeout {
		return mockToken{errors.Timeoutf("publish")}
	}
	return mockToken{m.pubErr}
}

func (m *mqttMock) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	m.subs = append(m.subs, mockSub{topic, qos, handler})
	m.mu.Unlock()
	return mockToken{m.subErr}
}

// deliver hands a message to the handler subscribed on topic
func (m *mqttMock) deliver(t testing.TB, topic, payload string) *mockMsg {
	t.Helper()
	m.mu.Lock()
	subs := append([]mockSub(nil), m.subs...)
	m.mu.Unlock()
	for _, sub := range subs {
		if sub.Pattern == topic {
			msg := &mockMsg{T: topic, P: []byte(payload)}
			sub.Handler(nil, msg)
			return msg
		}
	}
	t.Fatalf("not subscribed for topic=%s", topic)
	return nil
}

func (m *mqttMock) published() []mockPub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPub(nil), m.pubs...)
}

// mockToken completes immediately; a timeout error makes it report not done
type mockToken struct{ error }

func (tok mockToken) Error() error { return tok.error }
func (tok mockToken) Wait() bool   { return !errors.IsTimeout(tok.error) }
func (tok mockToken) WaitTimeout(time.Duration) bool {
	return !errors.IsTimeout(tok.error)
}
func (tok mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockMsg struct {
	T     string
	P     []byte
	acked bool
}

func (msg *mockMsg) Ack()              { msg.acked = true }
func (msg *mockMsg) Duplicate() bool   { return false }
func (msg *mockMsg) MessageID() uint16 { return 0 }
func (msg *mockMsg) Payload() []byte   { return msg.P }
func (msg *mockMsg) Qos() byte         { return 0 }
func (msg *mockMsg) Retained() bool    { return false }
func (msg *mockMsg) Topic() string     { return msg.T }
