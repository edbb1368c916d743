// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package progressws serves the Progress Bus over a single WebSocket
// connection per client: clients send subscribe-case-file /
// unsubscribe-case-file control messages and receive document:progress /
// summary:progress events in return. Each subscribed case gets its own
// progressbus.Subscription and its own forwarding goroutine; a client can
// be subscribed to more than one case at a time over the same socket.
package progressws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
)

// clientMessage is a subscribe-case-file / unsubscribe-case-file frame.
type clientMessage struct {
	Type       string `json:"type"`
	CaseFileID string `json:"caseFileId"`
}

// eventPayload is the server -> client frame shape from spec §6.2.
type eventPayload struct {
	Event string    `json:"event"`
	Data  eventData `json:"data"`
}

type eventData struct {
	Kind       model.EventKind `json:"kind"`
	DocumentID string          `json:"documentId,omitempty"`
	CaseFileID string          `json:"caseFileId"`
	Filename   string          `json:"filename,omitempty"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Handler upgrades HTTP connections to WebSocket and relays Progress Bus
// events for whatever cases the client subscribes to.
type Handler struct {
	bus      *progressbus.Bus
	upgrader websocket.Upgrader
}

func New(bus *progressbus.Bus) *Handler {
	return &Handler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler so it can be mounted directly on a
// chi router, e.g. r.Get("/ws/progress", handler.ServeHTTP).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("progressws: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &clientConn{
		conn: conn,
		bus:  h.bus,
		subs: make(map[string]*progressbus.Subscription),
	}
	defer client.closeAll()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe-case-file":
			client.subscribe(ctx, msg.CaseFileID)
		case "unsubscribe-case-file":
			client.unsubscribe(msg.CaseFileID)
		default:
			slog.Warn("progressws: unknown message type", "type", msg.Type)
		}
	}
}

// clientConn tracks one WebSocket connection's live subscriptions and
// serializes writes: gorilla/websocket connections are not safe for
// concurrent writers, and every forwarding goroutine plus the read loop
// itself could otherwise race on conn.WriteJSON.
type clientConn struct {
	conn *websocket.Conn
	bus  *progressbus.Bus

	mu   sync.Mutex
	subs map[string]*progressbus.Subscription

	writeMu sync.Mutex
}

func (c *clientConn) subscribe(ctx context.Context, caseID string) {
	if caseID == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.subs[caseID]; ok {
		c.mu.Unlock()
		return
	}
	sub := c.bus.Subscribe(caseID)
	c.subs[caseID] = sub
	c.mu.Unlock()

	go c.forward(ctx, caseID, sub)
}

func (c *clientConn) unsubscribe(caseID string) {
	c.mu.Lock()
	sub, ok := c.subs[caseID]
	delete(c.subs, caseID)
	c.mu.Unlock()

	if ok {
		sub.Unsubscribe()
	}
}

func (c *clientConn) closeAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (c *clientConn) forward(ctx context.Context, caseID string, sub *progressbus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := c.write(toPayload(caseID, event)); err != nil {
				return
			}
		}
	}
}

func (c *clientConn) write(payload eventPayload) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(payload)
}

func toPayload(caseID string, event model.ProgressEvent) eventPayload {
	eventName := "document:progress"
	if event.Kind == model.EventSummaryGenerating || event.Kind == model.EventSummaryComplete || event.Kind == model.EventSummaryFailed {
		eventName = "summary:progress"
	}
	return eventPayload{
		Event: eventName,
		Data: eventData{
			Kind:       event.Kind,
			DocumentID: event.DocumentID,
			CaseFileID: caseID,
			Filename:   event.Filename,
			Progress:   event.Percent,
			Message:    event.Message,
			Error:      event.Error,
			Timestamp:  event.Timestamp,
		},
	}
}
