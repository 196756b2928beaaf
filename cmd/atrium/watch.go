package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/atriumhq/atrium/internal/client"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/notify"
	"github.com/atriumhq/atrium/internal/rooms"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		plain      bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the agent fleet in real-time",
		Long:  "Connects to an Atrium backend and displays live sessions grouped by room. Redraws in place on a terminal; prints one snapshot per change otherwise. Use --plain to force line output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath, plain)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atrium.yaml", "path to Atrium config file")
	cmd.Flags().BoolVar(&plain, "plain", false, "line output instead of in-place redraw")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string, plain bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, err := client.New(client.Opts{BaseURL: cfg.Backend.URL})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	roomsStore, err := rooms.NewStore(backend)
	if err != nil {
		return err
	}
	if err := roomsStore.Refresh(ctx); err != nil {
		fmt.Fprintf(out, "rooms refresh: %v\n", err)
	}
	resolver := rooms.NewResolver(roomsStore)

	sinks := buildSinks(cfg)

	fleetStore := fleet.NewStore()
	ctrl, err := fleet.NewController(fleet.ControllerOpts{
		Source:          fleet.NewSSESource(backend.EventsURL(), nil),
		Fetcher:         backend,
		Store:           fleetStore,
		PollInterval:    cfg.Poll.Interval(),
		MaxPollInterval: cfg.Poll.MaxInterval(),
		OnEvent: func(ev fleet.Event) {
			handleWatchEvent(ctx, ev, roomsStore, sinks)
		},
	})
	if err != nil {
		return err
	}
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Printf("watch: transport stopped: %v", err)
		}
	}()

	if cfg.Digest.Schedule != "" && len(sinks) > 0 {
		digester, err := notify.NewDigester(notify.DigesterOpts{
			Fleet:    fleetStore,
			Rooms:    roomsStore,
			Sink:     sinks,
			Schedule: cfg.Digest.Schedule,
		})
		if err != nil {
			return err
		}
		go digester.Run(ctx)
	}

	interactive := !plain && term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Fprintf(out, "Watching %s... (Ctrl+C to stop)\n", cfg.Backend.URL)

	fleetCh, cancelFleet := fleetStore.Subscribe()
	defer cancelFleet()
	roomsCh, cancelRooms := roomsStore.Subscribe()
	defer cancelRooms()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fleetCh:
		case <-roomsCh:
		}
		renderFleet(out, fleetStore.Read(), roomsStore, resolver, interactive)
	}
}

// buildSinks assembles the configured notification fanout. A sink whose
// config is incomplete is skipped; config validation has already rejected
// token-without-channel, so errors here only come from empty sections.
func buildSinks(cfg *config.Config) notify.Fanout {
	var sinks notify.Fanout
	if s, err := notify.NewSlack(notify.SlackOpts{
		Token:   cfg.Notify.Slack.Token,
		Channel: cfg.Notify.Slack.Channel,
	}); err == nil {
		sinks = append(sinks, s)
	}
	if d, err := notify.NewDiscord(notify.DiscordOpts{
		Token:   cfg.Notify.Discord.Token,
		Channel: cfg.Notify.Discord.Channel,
	}); err == nil {
		sinks = append(sinks, d)
	}
	if c, err := notify.NewCommand(cfg.Notify.Command); err == nil {
		sinks = append(sinks, c)
	}
	return sinks
}

// handleWatchEvent reacts to push events beyond the store updates the
// controller already applied: room topology changes refetch the rooms
// cache, and session lifecycle events fan out to notification sinks.
func handleWatchEvent(ctx context.Context, ev fleet.Event, roomsStore *rooms.Store, sinks notify.Fanout) {
	switch ev.Name {
	case fleet.EventRoomsRefresh:
		go roomsStore.Refresh(ctx)
	case fleet.EventSessionCreated:
		if len(sinks) == 0 {
			return
		}
		var rec fleet.Session
		if err := json.Unmarshal(ev.Data, &rec); err != nil {
			return
		}
		go sinks.Notify(ctx, notify.Event{
			Kind:       notify.KindSessionCreated,
			Title:      "Session started",
			Body:       fmt.Sprintf("%s is now active", sessionName(rec)),
			SessionKey: rec.Key,
		})
	case fleet.EventSessionRemoved:
		if len(sinks) == 0 {
			return
		}
		var payload struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return
		}
		go sinks.Notify(ctx, notify.Event{
			Kind:       notify.KindSessionRemoved,
			Title:      "Session ended",
			Body:       fmt.Sprintf("%s is gone", payload.Key),
			SessionKey: payload.Key,
		})
	}
}

// renderFleet prints the current fleet grouped by room. Interactive mode
// clears the screen and redraws; plain mode appends one snapshot.
func renderFleet(out io.Writer, read fleet.ReadModel, roomsStore *rooms.Store, resolver *rooms.Resolver, interactive bool) {
	if interactive {
		// Clear screen.
		fmt.Fprint(out, "\033[2J\033[H")
	}

	method := read.Method
	if method == "" {
		method = "live"
	}
	status := "disconnected"
	if read.Connected {
		status = "connected/" + method
	} else if read.Reconnecting {
		status = "reconnecting/" + method
	}
	fmt.Fprintf(out, "Atrium: %d session(s) [%s]\n", len(read.Sessions), status)
	if read.Err != "" {
		fmt.Fprintf(out, "  error: %s\n", read.Err)
	}

	byRoom := make(map[string][]fleet.Session)
	var unplaced []fleet.Session
	for _, s := range read.Sessions {
		roomID, ok := resolver.Resolve(s.Key, rooms.SessionAttrs{
			Label:   s.Label,
			Model:   s.Model,
			Channel: s.Channel,
			Kind:    s.Kind,
		})
		if !ok {
			unplaced = append(unplaced, s)
			continue
		}
		byRoom[roomID] = append(byRoom[roomID], s)
	}

	for _, room := range roomsStore.Rooms() {
		members := byRoom[room.ID]
		if len(members) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s %s\n", room.Icon, room.Name)
		printSessions(out, members)
	}
	if len(unplaced) > 0 {
		fmt.Fprintln(out, "(unplaced)")
		printSessions(out, unplaced)
	}
	fmt.Fprintln(out)
}

func printSessions(out io.Writer, sessions []fleet.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Key < sessions[j].Key
	})
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-10s %-30s %s tokens\n",
			s.Kind, sessionName(s), formatTokenCount(int64(s.TotalTokens)))
	}
}

func sessionName(s fleet.Session) string {
	if s.Label != "" {
		return s.Label
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Key
}
