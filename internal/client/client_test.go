package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestClient_Sessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions":[{"key":"a","kind":"agent","updatedAt":100,"totalTokens":5}]}`))
	}))
	defer srv.Close()

	c, err := New(Opts{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sessions, err := c.Sessions(context.Background())
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Key != "a" || sessions[0].TotalTokens != 5 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestClient_BackendErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"room id already exists"}`))
	}))
	defer srv.Close()

	c, _ := New(Opts{BaseURL: srv.URL})
	err := c.DeleteRoom(context.Background(), "dup")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "room id already exists") {
		t.Errorf("error = %v, want backend message", err)
	}
}

func TestClient_AssignSessionBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/session-room-assignments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["session_key"] != "agent:web:1" || body["room_id"] != "lab" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"session_key":"agent:web:1","room_id":"lab","assigned_at":1}`))
	}))
	defer srv.Close()

	c, _ := New(Opts{BaseURL: srv.URL})
	if err := c.AssignSession(context.Background(), "agent:web:1", "lab"); err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func TestClient_PathEscaping(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c, _ := New(Opts{BaseURL: srv.URL})
	if err := c.UnassignSession(context.Background(), "agent:web/1"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/api/session-room-assignments/") || strings.Count(gotPath, "/") != 3 {
		t.Errorf("path = %q, want escaped session key", gotPath)
	}
}
