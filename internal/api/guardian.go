package api

import (
	"net/http" // HTTP status codes

	"commutepay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// GuardianRequestBody represents a guardian link request
type GuardianRequestBody struct {
	CommuterPhone string `json:"commuter_phone" binding:"required"` // Phone of the commuter to watch
	Relationship  string `json:"relationship" binding:"required"`   // e.g. parent
}

// RequestGuardianLinkHandler lets a guardian request a link to a commuter
// by phone number. The commuter approves or rejects it.
func RequestGuardianLinkHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req GuardianRequestBody // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var commuter domain.User // Look up the commuter by phone
		if err := db.Where("phone = ?", req.CommuterPhone).First(&commuter).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Commuter not found"})
			return
		}
		if commuter.ID == userID.(uint) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot link to yourself"})
			return
		}
		// One pending or approved link per (guardian, commuter) pair
		var existing domain.GuardianLink
		err := db.Where("guardian_id = ? AND commuter_id = ? AND status IN ?",
			userID, commuter.ID, []string{domain.GuardianPending, domain.GuardianApproved}).
			First(&existing).Error
		if err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Link already requested"})
			return
		}
		link := domain.GuardianLink{
			GuardianID:   userID.(uint),          // Requesting guardian
			CommuterID:   commuter.ID,            // Watched commuter
			Relationship: req.Relationship,       // Declared relationship
			Status:       domain.GuardianPending, // Awaiting commuter approval
		}
		if err := db.Create(&link).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create request"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"request": link})
	}
}

// MyGuardianDataHandler returns links where the caller is the guardian and
// incoming requests where the caller is the commuter.
func MyGuardianDataHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var watching []domain.GuardianLink // Links where caller is the guardian
		if err := db.Where("guardian_id = ?", userID).Find(&watching).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load guardian data"})
			return
		}
		var requests []domain.GuardianLink // Requests addressed to the caller
		if err := db.Where("commuter_id = ?", userID).Find(&requests).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load guardian data"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"watching": watching, "requests": requests})
	}
}

// reviewGuardianRequest moves a pending link addressed to the caller into
// the given terminal status.
func reviewGuardianRequest(db *gorm.DB, c *gin.Context, status string) {
	userID, exists := c.Get("userID") // Get userID from context
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var link domain.GuardianLink // The link under review
	// Only the commuter named in the request may decide it
	if err := db.Where("id = ? AND commuter_id = ?", c.Param("id"), userID).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if link.Status != domain.GuardianPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request already decided"})
		return
	}
	if err := db.Model(&link).Update("status", status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ApproveGuardianRequestHandler approves a pending link
func ApproveGuardianRequestHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewGuardianRequest(db, c, domain.GuardianApproved)
	}
}

// RejectGuardianRequestHandler rejects a pending link
func RejectGuardianRequestHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewGuardianRequest(db, c, domain.GuardianRejected)
	}
}
