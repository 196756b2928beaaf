package server

import (
	"net/http"

	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/gin-gonic/gin"
)

// handleListSessions serves the aggregated session collection. Without a
// configured gateway the server has no fleet store and the list is empty.
func handleListSessions(store *fleet.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := []fleet.Session{}
		if store != nil {
			sessions = store.Read().Sessions
		}
		if sessions == nil {
			sessions = []fleet.Session{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}
