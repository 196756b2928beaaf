package server

import (
	"net/http"
	"time"

	"github.com/atriumhq/atrium/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const msgAssignmentNotFound = "Assignment not found"

func handleListAssignments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var assignments []models.SessionRoomAssignment
		if err := db.Order("assigned_at DESC").Find(&assignments).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"assignments": assignments})
	}
}

// assignRequest pins a session to a room.
type assignRequest struct {
	SessionKey string `json:"session_key"`
	RoomID     string `json:"room_id"`
}

func handleUpsertAssignment(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		if req.SessionKey == "" {
			jsonError(c, http.StatusBadRequest, "session_key is required")
			return
		}

		var count int64
		if err := db.Model(&models.Room{}).Where("id = ?", req.RoomID).Count(&count).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if count == 0 {
			jsonError(c, http.StatusBadRequest, msgRoomNotFound)
			return
		}

		assignment := models.SessionRoomAssignment{
			SessionKey: req.SessionKey,
			RoomID:     req.RoomID,
			AssignedAt: time.Now().UnixMilli(),
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"room_id", "assigned_at"}),
		}).Create(&assignment).Error
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{
			"action":      "assignment_changed",
			"session_key": req.SessionKey,
			"room_id":     req.RoomID,
		})
		c.JSON(http.StatusOK, assignment)
	}
}

func handleDeleteAssignment(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("session_key")

		var count int64
		if err := db.Model(&models.SessionRoomAssignment{}).Where("session_key = ?", key).Count(&count).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if count == 0 {
			jsonError(c, http.StatusNotFound, msgAssignmentNotFound)
			return
		}

		if err := db.Delete(&models.SessionRoomAssignment{SessionKey: key}).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{
			"action":      "assignment_removed",
			"session_key": key,
		})
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": key})
	}
}
