package fleet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSESource_RequiresURL(t *testing.T) {
	src := NewSSESource("", nil)
	if _, _, err := src.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestSSESource_StreamsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: session-created\ndata: {\"key\":\"a\"}\n\n")
		fmt.Fprint(w, "event: sessions-refresh\ndata: {\"sessions\":[]}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := NewSSESource(srv.URL, nil)
	events, states, err := src.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	sawConnected := false
	var got []Event
	for len(got) < 2 {
		select {
		case st := <-states:
			if st == StateConnected {
				sawConnected = true
			}
		case ev := <-events:
			got = append(got, ev)
		case <-ctx.Done():
			t.Fatalf("timed out: %d events, connected=%v", len(got), sawConnected)
		}
	}

	if !sawConnected {
		t.Error("never observed connected state")
	}
	if got[0].Name != EventSessionCreated || string(got[0].Data) != `{"key":"a"}` {
		t.Errorf("event[0] = %s %s", got[0].Name, got[0].Data)
	}
	if got[1].Name != EventSessionsRefresh {
		t.Errorf("event[1] = %s, want %s", got[1].Name, EventSessionsRefresh)
	}
}

func TestSSESource_DisconnectOnServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: heartbeat\ndata: {}\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := NewSSESource(srv.URL, nil)
	events, states, err := src.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	sawDisconnected := false
	for !sawDisconnected {
		select {
		case st := <-states:
			if st == StateDisconnected {
				sawDisconnected = true
			}
		case <-events:
		case <-ctx.Done():
			t.Fatal("timed out waiting for disconnect")
		}
	}
}
