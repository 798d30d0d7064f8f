package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"exocompare/domain/run"
)

// allRuns is the subscription key of clients that did not pick a run.
const allRuns = "*"

// SSEClient represents a connected SSE client
type SSEClient struct {
	RunID   string
	Channel chan run.Event
}

// SSEHub manages Server-Sent Events for pipeline progress. It implements
// ports.EventBroadcaster.
type SSEHub struct {
	clients    map[string]map[chan run.Event]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan run.Event
	done       chan struct{}
	closeOnce  sync.Once
	keepAlive  time.Duration
}

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:    make(map[string]map[chan run.Event]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan run.Event, 100),
		done:       make(chan struct{}),
		keepAlive:  30 * time.Second,
	}

	go hub.run()
	return hub
}

// Close stops the dispatch loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *SSEHub) run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[chan run.Event]bool)
			}
			h.clients[client.RunID][client.Channel] = true
			logger.Debug("client registered for run %s (total clients: %d)",
				client.RunID, len(h.clients[client.RunID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.RunID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				logger.Debug("client unregistered from run %s (remaining clients: %d)",
					client.RunID, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.RunID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for _, key := range []string{string(event.RunID), allRuns} {
				for clientChan := range h.clients[key] {
					select {
					case clientChan <- event:
					default:
						logger.Warn("client channel full for run %s, skipping event", key)
					}
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast queues an event for every client of its run and every
// all-runs client. A full queue drops the event.
func (h *SSEHub) Broadcast(event run.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("broadcast channel full, dropping event: %s", event.Kind)
	}
}

// HandleSSE streams events; ?run_id= narrows the stream to one run.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		runID = allRuns
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan run.Event, 10)
	select {
	case h.register <- SSEClient{RunID: runID, Channel: clientChan}:
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- SSEClient{RunID: runID, Channel: clientChan}:
		default:
		}
	}()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(string(event.Kind), string(payload))
			terminal := event.Kind == run.EventRunFinished || event.Kind == run.EventRunFailed
			return runID == allRuns || !terminal

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().UTC().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false

		case <-h.done:
			return false
		}
	})
}

// ClientCount returns the number of clients subscribed under a run id ("*" for all-runs clients)
func (h *SSEHub) ClientCount(runID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}
