package server

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/atriumhq/atrium/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const msgRuleNotFound = "Rule not found"

// validateRule checks the rule type vocabulary and, for label patterns,
// test-compiles the regex so a bad pattern is rejected at write time.
func validateRule(ruleType, ruleValue string) error {
	if !models.ValidRuleType(ruleType) {
		return fmt.Errorf("Invalid rule_type '%s'", ruleType)
	}
	if ruleType == models.RuleLabelPattern {
		if _, err := regexp.Compile(ruleValue); err != nil {
			return fmt.Errorf("Invalid regex pattern '%s': %v", ruleValue, err)
		}
	}
	return nil
}

func handleListRules(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rules []models.RoomAssignmentRule
		if err := db.Order("priority DESC, created_at ASC").Find(&rules).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"rules": rules})
	}
}

func handleGetRule(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rule models.RoomAssignmentRule
		err := db.First(&rule, "id = ?", c.Param("id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRuleNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func handleCreateRule(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rule models.RoomAssignmentRule
		if err := c.ShouldBindJSON(&rule); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := validateRule(rule.RuleType, rule.RuleValue); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		var count int64
		if err := db.Model(&models.Room{}).Where("id = ?", rule.RoomID).Count(&count).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if count == 0 {
			jsonError(c, http.StatusBadRequest, msgRoomNotFound)
			return
		}

		rule.ID = uuid.NewString()
		if err := db.Create(&rule).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{"action": "rule_created", "rule_id": rule.ID})
		c.JSON(http.StatusOK, rule)
	}
}

func handleUpdateRule(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var upd models.RuleUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		var rule models.RoomAssignmentRule
		err := db.First(&rule, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			jsonError(c, http.StatusNotFound, msgRuleNotFound)
			return
		}
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		// Validate against the rule's effective type and value after the update.
		ruleType := rule.RuleType
		if upd.RuleType != nil {
			ruleType = *upd.RuleType
		}
		ruleValue := rule.RuleValue
		if upd.RuleValue != nil {
			ruleValue = *upd.RuleValue
		}
		if err := validateRule(ruleType, ruleValue); err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		changes := map[string]any{}
		if upd.RoomID != nil {
			changes["room_id"] = *upd.RoomID
		}
		if upd.RuleType != nil {
			changes["rule_type"] = *upd.RuleType
		}
		if upd.RuleValue != nil {
			changes["rule_value"] = *upd.RuleValue
		}
		if upd.Priority != nil {
			changes["priority"] = *upd.Priority
		}
		if len(changes) > 0 {
			if err := db.Model(&rule).Updates(changes).Error; err != nil {
				jsonError(c, http.StatusInternalServerError, err.Error())
				return
			}
		}

		if err := db.First(&rule, "id = ?", id).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		hub.Broadcast(roomsRefresh, gin.H{"action": "rule_updated", "rule_id": id})
		c.JSON(http.StatusOK, rule)
	}
}

func handleDeleteRule(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var count int64
		if err := db.Model(&models.RoomAssignmentRule{}).Where("id = ?", id).Count(&count).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if count == 0 {
			jsonError(c, http.StatusNotFound, msgRuleNotFound)
			return
		}

		if err := db.Delete(&models.RoomAssignmentRule{ID: id}).Error; err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Broadcast(roomsRefresh, gin.H{"action": "rule_deleted", "rule_id": id})
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": id})
	}
}
