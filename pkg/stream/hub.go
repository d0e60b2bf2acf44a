// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package stream fans decoded records out to browser WebSocket clients as
// JSON text messages.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/fluctus-relay/pkg/fluctus"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 16
	forwardBufferSize = 64
	writeTimeout      = 5 * time.Second
)

// Hub holds the connected clients and forwards every broadcast to each.
// Slow clients lose messages rather than blocking the hub.
type Hub struct {
	forward chan []byte
	join    chan *client
	leave   chan *client
	clients map[*client]bool
	done    chan struct{}

	count   int
	countMu sync.Mutex

	upgrader websocket.Upgrader
	log      *log.Logger
}

type client struct {
	socket *websocket.Conn
	send   chan []byte
}

// NewHub makes a hub ready to Run
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		forward: make(chan []byte, forwardBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]bool),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  socketBufferSize,
			WriteBufferSize: socketBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger,
	}
}

// Run serves joins, leaves and broadcasts until ctx is done. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.setCount(0)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.join:
			h.clients[c] = true
			h.setCount(len(h.clients))
			h.logf("Live view client joined (%d connected)", len(h.clients))
		case c := <-h.leave:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				h.setCount(len(h.clients))
				h.logf("Live view client left (%d connected)", len(h.clients))
			}
		case msg := <-h.forward:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
		}
	}
}

// Broadcast queues a record for every client. It never blocks; if the hub is
// backed up the record is dropped and false is returned.
func (h *Hub) Broadcast(rec *fluctus.Record) bool {
	if rec == nil {
		return false
	}
	data, err := json.Marshal(rec)
	if err != nil {
		h.logf("Live view encode error: %v", err)
		return false
	}
	select {
	case h.forward <- data:
		return true
	default:
		return false
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.countMu.Lock()
	defer h.countMu.Unlock()
	return h.count
}

// ServeHTTP upgrades the request to a WebSocket and streams records to it
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logf("Live view upgrade failed: %v", err)
		return
	}
	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
	}
	select {
	case h.join <- c:
	case <-h.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case h.leave <- c:
		case <-h.done:
		}
	}()
	go c.write()
	c.read()
}

// read discards client input and returns when the socket closes
func (c *client) read() {
	defer c.socket.Close()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) setCount(n int) {
	h.countMu.Lock()
	h.count = n
	h.countMu.Unlock()
}

func (h *Hub) logf(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}
