package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/atriumhq/atrium/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const msgRoomNotFound = "Room not found"

func handleListRooms(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rooms []models.Room
		if err := db.Order("sort_order ASC").Find(&rooms).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	}
}

func handleGetRoom(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var room models.Room
		err := db.First(&room, "id = ?", c.Param("id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRoomNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

func handleCreateRoom(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var room models.Room
		if err := c.ShouldBindJSON(&room); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		if room.ID == "" || room.Name == "" {
			jsonError(c, http.StatusBadRequest, "id and name are required")
			return
		}

		var count int64
		if err := db.Model(&models.Room{}).Where("id = ?", room.ID).Count(&count).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if count > 0 {
			jsonError(c, http.StatusBadRequest, "Room ID already exists")
			return
		}

		room.IsHQ = false // HQ is granted via the hq endpoint only
		if room.SpeedMultiplier == 0 {
			room.SpeedMultiplier = 1.0
		}
		if err := db.Create(&room).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{"action": "created", "room_id": room.ID})
		c.JSON(http.StatusOK, room)
	}
}

func handleUpdateRoom(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var upd models.RoomUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		var room models.Room
		err := db.First(&room, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRoomNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		changes := roomChanges(upd)
		if len(changes) > 0 {
			changes["updated_at"] = time.Now().UnixMilli()
			if err := db.Model(&room).Updates(changes).Error; err != nil {
				jsonError(c, http.StatusInternalServerError, err.Error())
				return
			}
		}

		if err := db.First(&room, "id = ?", id).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		hub.Broadcast(roomsRefresh, gin.H{"action": "updated", "room_id": id})
		c.JSON(http.StatusOK, room)
	}
}

// roomChanges collects the set fields of a partial update.
func roomChanges(upd models.RoomUpdate) map[string]any {
	changes := map[string]any{}
	if upd.Name != nil {
		changes["name"] = *upd.Name
	}
	if upd.Icon != nil {
		changes["icon"] = *upd.Icon
	}
	if upd.Color != nil {
		changes["color"] = *upd.Color
	}
	if upd.SortOrder != nil {
		changes["sort_order"] = *upd.SortOrder
	}
	if upd.DefaultModel != nil {
		changes["default_model"] = *upd.DefaultModel
	}
	if upd.SpeedMultiplier != nil {
		changes["speed_multiplier"] = *upd.SpeedMultiplier
	}
	if upd.FloorStyle != nil {
		changes["floor_style"] = *upd.FloorStyle
	}
	if upd.WallStyle != nil {
		changes["wall_style"] = *upd.WallStyle
	}
	return changes
}

func handleDeleteRoom(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var room models.Room
		err := db.First(&room, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRoomNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if room.IsHQ {
			jsonError(c, http.StatusForbidden, "Cannot delete Headquarters room. HQ is a protected system room.")
			return
		}

		// Cascade: assignments and rules pointing at this room go with it.
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("room_id = ?", id).Delete(&models.SessionRoomAssignment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", id).Delete(&models.RoomAssignmentRule{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Room{ID: id}).Error
		})
		if txErr != nil {
			jsonError(c, http.StatusInternalServerError, txErr.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{"action": "deleted", "room_id": id})
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": id})
	}
}

func handleSetHQ(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var room models.Room
		err := db.First(&room, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRoomNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		now := time.Now().UnixMilli()
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Room{}).Where("is_hq = ?", true).
				Updates(map[string]any{"is_hq": false, "updated_at": now}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Room{}).Where("id = ?", id).
				Updates(map[string]any{"is_hq": true, "updated_at": now}).Error
		})
		if txErr != nil {
			jsonError(c, http.StatusInternalServerError, txErr.Error())
			return
		}

		if err := db.First(&room, "id = ?", id).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		hub.Broadcast(roomsRefresh, gin.H{"action": "hq_changed", "room_id": id})
		c.JSON(http.StatusOK, room)
	}
}

// reorderRequest carries the full room ordering; sort order follows list index.
type reorderRequest struct {
	RoomOrder []string `json:"room_order"`
}

func handleReorderRooms(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		now := time.Now().UnixMilli()
		txErr := db.Transaction(func(tx *gorm.DB) error {
			for i, id := range req.RoomOrder {
				if err := tx.Model(&models.Room{}).Where("id = ?", id).
					Updates(map[string]any{"sort_order": i, "updated_at": now}).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			jsonError(c, http.StatusInternalServerError, txErr.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{"action": "reordered"})
		c.JSON(http.StatusOK, gin.H{"success": true, "order": req.RoomOrder})
	}
}
