package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// hubEvent is a named SSE event with pre-marshaled data.
type hubEvent struct {
	name string
	data []byte
}

// clientQueueSize gives each client headroom; clients that stop consuming
// are evicted rather than blocking the broadcaster.
const clientQueueSize = 200

const keepaliveInterval = 15 * time.Second

// Hub fans out SSE events to all connected clients. Each client gets its
// own buffered queue; a full queue marks the client stale and it is
// dropped on the spot.
type Hub struct {
	mu      sync.Mutex
	clients map[chan hubEvent]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan hubEvent]struct{})}
}

// Broadcast marshals data and pushes a named event to every client.
func (h *Hub) Broadcast(name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("server: marshal %s event: %v", name, err)
		return
	}
	h.BroadcastRaw(name, payload)
}

// BroadcastRaw pushes a named event with already-encoded data.
func (h *Hub) BroadcastRaw(name string, data []byte) {
	evt := hubEvent{name: name, data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// Stale client, not consuming. Evict immediately.
			log.Printf("server: sse client queue full, evicting (clients: %d)", len(h.clients))
			delete(h.clients, ch)
		}
	}
}

// ClientCount returns the number of connected SSE clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() chan hubEvent {
	ch := make(chan hubEvent, clientQueueSize)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(ch chan hubEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// handleEvents streams hub events to one client until it disconnects.
func (h *Hub) handleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ch := h.register()
		defer h.unregister(ch)

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				// Comment frame so broken pipes surface early.
				fmt.Fprint(c.Writer, ": keepalive\n\n")
				c.Writer.Flush()
			case evt := <-ch:
				fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", evt.name, evt.data)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
