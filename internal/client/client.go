// Package client is the HTTP client for the Atrium backend API. It
// implements the fetch surface the fleet synchronizer and the rooms store
// consume.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/models"
)

// Client talks to one Atrium backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client // defaults to a client with a 30s timeout
}

// New creates a Client for the given base URL.
func New(opts Opts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("client: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// EventsURL returns the SSE endpoint for an SSESource.
func (c *Client) EventsURL() string {
	return c.baseURL + "/api/events"
}

// do executes one JSON request and decodes the response into out (when
// non-nil). Non-2xx responses become errors carrying the backend's
// error message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("client: %s %s: %s", method, path, apiError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// apiError extracts the backend's error message, falling back to the
// HTTP status.
func apiError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return resp.Status
}

// Sessions fetches the full session snapshot.
func (c *Client) Sessions(ctx context.Context) ([]fleet.Session, error) {
	var payload struct {
		Sessions []fleet.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Sessions, nil
}

// Rooms fetches all rooms in sort order.
func (c *Client) Rooms(ctx context.Context) ([]models.Room, error) {
	var payload struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Rooms, nil
}

// Assignments fetches all explicit session pins.
func (c *Client) Assignments(ctx context.Context) ([]models.SessionRoomAssignment, error) {
	var payload struct {
		Assignments []models.SessionRoomAssignment `json:"assignments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/session-room-assignments", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Assignments, nil
}

// Rules fetches all routing rules, priority-ordered.
func (c *Client) Rules(ctx context.Context) ([]models.RoomAssignmentRule, error) {
	var payload struct {
		Rules []models.RoomAssignmentRule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/room-assignment-rules", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Rules, nil
}

// CreateRoom creates a room.
func (c *Client) CreateRoom(ctx context.Context, room models.Room) error {
	return c.do(ctx, http.MethodPost, "/api/rooms", room, nil)
}

// UpdateRoom applies a partial room update.
func (c *Client) UpdateRoom(ctx context.Context, id string, upd models.RoomUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/rooms/"+url.PathEscape(id), upd, nil)
}

// DeleteRoom deletes a room.
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(id), nil, nil)
}

// ReorderRooms persists a new display order; sort_order follows list index.
func (c *Client) ReorderRooms(ctx context.Context, order []string) error {
	body := map[string][]string{"room_order": order}
	return c.do(ctx, http.MethodPut, "/api/rooms/reorder", body, nil)
}

// SetRoomHQ marks a room as headquarters.
func (c *Client) SetRoomHQ(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/rooms/"+url.PathEscape(id)+"/hq", nil, nil)
}

// CreateRule creates a routing rule.
func (c *Client) CreateRule(ctx context.Context, rule models.RoomAssignmentRule) error {
	return c.do(ctx, http.MethodPost, "/api/room-assignment-rules", rule, nil)
}

// UpdateRule applies a partial rule update.
func (c *Client) UpdateRule(ctx context.Context, id string, upd models.RuleUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/room-assignment-rules/"+url.PathEscape(id), upd, nil)
}

// DeleteRule deletes a routing rule.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/room-assignment-rules/"+url.PathEscape(id), nil, nil)
}

// AssignSession pins a session to a room (upsert).
func (c *Client) AssignSession(ctx context.Context, sessionKey, roomID string) error {
	body := map[string]string{"session_key": sessionKey, "room_id": roomID}
	return c.do(ctx, http.MethodPost, "/api/session-room-assignments", body, nil)
}

// UnassignSession removes a session pin.
func (c *Client) UnassignSession(ctx context.Context, sessionKey string) error {
	return c.do(ctx, http.MethodDelete, "/api/session-room-assignments/"+url.PathEscape(sessionKey), nil, nil)
}
