// Package server implements the Atrium backend: rooms, routing rules and
// session assignments over REST, the aggregated session list, and an SSE
// stream that pushes change events to connected dashboards.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the backend server.
type StartOpts struct {
	DB    *gorm.DB
	Fleet *fleet.Store // session collection; may be nil for rooms-only mode
	Hub   *Hub         // created when nil
	Port  int
	Out   io.Writer
}

// Start launches the backend HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts.DB, opts.Fleet, opts.Hub)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Atrium backend running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter builds the gin router with all API routes registered.
func newRouter(db *gorm.DB, fleetStore *fleet.Store, hub *Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")

	api.GET("/sessions", handleListSessions(fleetStore))
	api.GET("/events", hub.handleEvents())

	rooms := api.Group("/rooms")
	rooms.GET("", handleListRooms(db))
	rooms.POST("", handleCreateRoom(db, hub))
	rooms.PUT("/reorder", handleReorderRooms(db, hub))
	rooms.GET("/:id", handleGetRoom(db))
	rooms.PUT("/:id", handleUpdateRoom(db, hub))
	rooms.DELETE("/:id", handleDeleteRoom(db, hub))
	rooms.PUT("/:id/hq", handleSetHQ(db, hub))

	rules := api.Group("/room-assignment-rules")
	rules.GET("", handleListRules(db))
	rules.POST("", handleCreateRule(db, hub))
	rules.GET("/:id", handleGetRule(db))
	rules.PUT("/:id", handleUpdateRule(db, hub))
	rules.DELETE("/:id", handleDeleteRule(db, hub))

	assignments := api.Group("/session-room-assignments")
	assignments.GET("", handleListAssignments(db))
	assignments.POST("", handleUpsertAssignment(db, hub))
	assignments.DELETE("/:session_key", handleDeleteAssignment(db, hub))

	return router
}

// roomsRefresh is the SSE event name pushed after every successful
// room, rule or assignment mutation.
const roomsRefresh = "rooms-refresh"

// jsonError writes the error payload clients expect.
func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
