// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor pushes a live snapshot of the fusion engine's state
// to connected websocket clients, for the same "watch it happen"
// purpose the calibration websocket and the JSON HTTP API served.
package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/dr-engine/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Snapshot is the JSON payload pushed to every connected client.
type Snapshot struct {
	Position engine.Position     `json:"position"`
	Distance float64             `json:"distance_m"`
	Gyro     engine.SensorStatus `json:"gyro"`
	Odo      engine.SensorStatus `json:"odo"`
	Ready    bool                `json:"ready"`
}

// Hub tracks connected websocket clients and broadcasts snapshots to
// all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns an empty client hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// HandleWS upgrades the request to a websocket and registers the
// connection until it errors out or the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain reads so the client's close frame is observed; the engine
	// host never expects input over this connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Broadcast pushes snap to every currently connected client, dropping
// any client whose write fails.
func (h *Hub) Broadcast(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(snap); err != nil {
			log.Printf("monitor: websocket write error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Run starts an HTTP server exposing the websocket endpoint at /ws
// and periodically broadcasting snapshots built from snapshotFn. It
// blocks until the server fails.
func Run(port int, snapshotFn func() Snapshot, interval time.Duration) error {
	hub := NewHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/api/position", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshotFn()); err != nil {
			log.Printf("monitor: position JSON encode error: %v", err)
		}
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			hub.Broadcast(snapshotFn())
		}
	}()

	addr := fmt.Sprintf(":%d", port)
	log.Printf("monitor: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
