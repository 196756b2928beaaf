package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/models"
	"github.com/atriumhq/atrium/internal/rooms"
)

// staticAPI serves fixed collections; mutations are not exercised here.
type staticAPI struct {
	rooms       []models.Room
	assignments []models.SessionRoomAssignment
	rules       []models.RoomAssignmentRule
}

func (a *staticAPI) Rooms(ctx context.Context) ([]models.Room, error) { return a.rooms, nil }
func (a *staticAPI) Assignments(ctx context.Context) ([]models.SessionRoomAssignment, error) {
	return a.assignments, nil
}
func (a *staticAPI) Rules(ctx context.Context) ([]models.RoomAssignmentRule, error) {
	return a.rules, nil
}
func (a *staticAPI) CreateRoom(ctx context.Context, room models.Room) error { return nil }
func (a *staticAPI) UpdateRoom(ctx context.Context, id string, upd models.RoomUpdate) error {
	return nil
}
func (a *staticAPI) DeleteRoom(ctx context.Context, id string) error        { return nil }
func (a *staticAPI) ReorderRooms(ctx context.Context, order []string) error { return nil }
func (a *staticAPI) SetRoomHQ(ctx context.Context, id string) error         { return nil }
func (a *staticAPI) CreateRule(ctx context.Context, rule models.RoomAssignmentRule) error {
	return nil
}
func (a *staticAPI) UpdateRule(ctx context.Context, id string, upd models.RuleUpdate) error {
	return nil
}
func (a *staticAPI) DeleteRule(ctx context.Context, id string) error { return nil }
func (a *staticAPI) AssignSession(ctx context.Context, sessionKey, roomID string) error {
	return nil
}
func (a *staticAPI) UnassignSession(ctx context.Context, sessionKey string) error { return nil }

func newDigestFixture(t *testing.T) (*fleet.Store, *Digester, *recordingSink) {
	t.Helper()

	api := &staticAPI{
		rooms: []models.Room{
			{ID: "room-ops", Name: "Ops"},
		},
		assignments: []models.SessionRoomAssignment{
			{SessionKey: "agent:web:1", RoomID: "room-ops"},
		},
	}
	roomsStore, err := rooms.NewStore(api)
	if err != nil {
		t.Fatal(err)
	}
	if err := roomsStore.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh rooms: %v", err)
	}

	fleetStore := fleet.NewStore()
	fleetStore.ApplySnapshot([]fleet.Session{
		{Key: "agent:web:1", UpdatedAt: 100, TotalTokens: 10},
		{Key: "agent:api:2", UpdatedAt: 200, TotalTokens: 20},
	})

	sink := &recordingSink{}
	d, err := NewDigester(DigesterOpts{
		Fleet:    fleetStore,
		Rooms:    roomsStore,
		Sink:     sink,
		Schedule: "* * * * *",
	})
	if err != nil {
		t.Fatal(err)
	}
	return fleetStore, d, sink
}

func TestNewDigester_Validation(t *testing.T) {
	fleetStore := fleet.NewStore()
	roomsStore, err := rooms.NewStore(&staticAPI{})
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}

	if _, err := NewDigester(DigesterOpts{Rooms: roomsStore, Sink: sink, Schedule: "* * * * *"}); err == nil {
		t.Error("expected error for missing fleet store")
	}
	if _, err := NewDigester(DigesterOpts{Fleet: fleetStore, Sink: sink, Schedule: "* * * * *"}); err == nil {
		t.Error("expected error for missing rooms store")
	}
	if _, err := NewDigester(DigesterOpts{Fleet: fleetStore, Rooms: roomsStore, Schedule: "* * * * *"}); err == nil {
		t.Error("expected error for missing sink")
	}
	if _, err := NewDigester(DigesterOpts{Fleet: fleetStore, Rooms: roomsStore, Sink: sink, Schedule: "bogus"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestDigester_FireSendsSummary(t *testing.T) {
	_, d, sink := newDigestFixture(t)

	if !d.Fire(context.Background()) {
		t.Fatal("first fire must send")
	}
	if len(sink.events) != 1 {
		t.Fatalf("event count = %d, want 1", len(sink.events))
	}
	evt := sink.events[0]
	if evt.Kind != KindDigest {
		t.Errorf("kind = %q, want %q", evt.Kind, KindDigest)
	}
	if !strings.Contains(evt.Title, "2 session(s)") {
		t.Errorf("title = %q, want session count", evt.Title)
	}
	if !strings.Contains(evt.Body, "Ops: 1") {
		t.Errorf("body = %q, want per-room line", evt.Body)
	}
	if !strings.Contains(evt.Body, "unplaced: 1") {
		t.Errorf("body = %q, want unplaced bucket", evt.Body)
	}
}

func TestDigester_SuppressedWhenUnchanged(t *testing.T) {
	_, d, sink := newDigestFixture(t)

	if !d.Fire(context.Background()) {
		t.Fatal("first fire must send")
	}
	if d.Fire(context.Background()) {
		t.Error("second fire with unchanged fleet must be suppressed")
	}
	if len(sink.events) != 1 {
		t.Errorf("event count = %d, want 1", len(sink.events))
	}
}

func TestDigester_ResendsAfterFleetChange(t *testing.T) {
	fleetStore, d, sink := newDigestFixture(t)

	d.Fire(context.Background())
	fleetStore.ApplySnapshot([]fleet.Session{
		{Key: "agent:web:1", UpdatedAt: 500, TotalTokens: 50},
	})
	if !d.Fire(context.Background()) {
		t.Fatal("fire after fleet change must send")
	}
	if len(sink.events) != 2 {
		t.Errorf("event count = %d, want 2", len(sink.events))
	}
}

func TestDigester_EmptyFleetBody(t *testing.T) {
	api := &staticAPI{}
	roomsStore, err := rooms.NewStore(api)
	if err != nil {
		t.Fatal(err)
	}
	fleetStore := fleet.NewStore()
	fleetStore.ApplySnapshot(nil)

	sink := &recordingSink{}
	d, err := NewDigester(DigesterOpts{Fleet: fleetStore, Rooms: roomsStore, Sink: sink, Schedule: "* * * * *"})
	if err != nil {
		t.Fatal(err)
	}
	d.Fire(context.Background())
	if len(sink.events) != 1 {
		t.Fatalf("event count = %d, want 1", len(sink.events))
	}
	if sink.events[0].Body != "No active sessions." {
		t.Errorf("body = %q, want empty-fleet message", sink.events[0].Body)
	}
}
