package fleet

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// sseBaseBackoff is the initial wait before reattempting the stream.
	sseBaseBackoff = 2 * time.Second
	// sseMaxBackoff caps the exponential reconnection backoff.
	sseMaxBackoff = 2 * time.Minute
)

// SSESource implements Source over a text/event-stream endpoint. It keeps
// reconnecting with exponential backoff for as long as its context lives;
// connection-state transitions are reported on the states channel so the
// Controller can manage its polling fallback.
type SSESource struct {
	url    string
	client *http.Client
}

// NewSSESource creates an SSESource for the given event-stream URL. A nil
// client falls back to a default with no overall timeout (the stream is
// long-lived).
func NewSSESource(url string, client *http.Client) *SSESource {
	if client == nil {
		client = &http.Client{}
	}
	return &SSESource{url: url, client: client}
}

// Run starts the stream loop. Both returned channels are closed when ctx
// is cancelled.
func (s *SSESource) Run(ctx context.Context) (<-chan Event, <-chan ConnState, error) {
	if s.url == "" {
		return nil, nil, fmt.Errorf("fleet: sse: url is required")
	}

	events := make(chan Event, 64)
	states := make(chan ConnState, 8)

	go func() {
		defer close(events)
		defer close(states)

		backoff := sseBaseBackoff
		for {
			sendState(ctx, states, StateConnecting)
			connected, err := s.stream(ctx, events, states)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Printf("fleet: sse: stream ended: %v", err)
			}
			if connected {
				backoff = sseBaseBackoff
			}
			sendState(ctx, states, StateDisconnected)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > sseMaxBackoff {
				backoff = sseMaxBackoff
			}
		}
	}()
	return events, states, nil
}

// stream opens one event-stream connection and pumps events until it
// breaks. It reports whether the connection was established.
func (s *SSESource) stream(ctx context.Context, events chan<- Event, states chan<- ConnState) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	sendState(ctx, states, StateConnected)

	var (
		name string
		data bytes.Buffer
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" || data.Len() > 0 {
				ev := Event{Name: name, Data: append([]byte(nil), data.Bytes()...)}
				select {
				case events <- ev:
				case <-ctx.Done():
					return true, ctx.Err()
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Keepalive comment.
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return true, scanner.Err()
}

// sendState delivers a state transition unless the context is done.
func sendState(ctx context.Context, states chan<- ConnState, st ConnState) {
	select {
	case states <- st:
	case <-ctx.Done():
	}
}
