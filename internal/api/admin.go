package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"commutepay/internal/domain"     // Importing domain models
	"commutepay/internal/settlement" // Settlement ledger

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// MarkPaidRequest represents a settlement payout confirmation
type MarkPaidRequest struct {
	Notes string `json:"notes"` // Optional payout notes
}

// VerificationRequest represents an admin verification decision
type VerificationRequest struct {
	Status        string `json:"status" binding:"required"` // unverified, pending, verified or rejected
	PassengerType string `json:"passenger_type"`            // Tier granted on approval
}

// ListUnpaidSettlementsHandler returns unpaid settlements with their live
// total, optionally filtered to one operator.
func ListUnpaidSettlementsHandler(ledger *settlement.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var operatorID uint // Zero means all operators
		if s := c.Query("operator_id"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operator_id"})
				return
			}
			operatorID = uint(v)
		}
		items, total, err := ledger.ListUnpaid(operatorID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settlements"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":    true,  // Matches the client contract
			"total": total, // Live sum of the unpaid rows below
			"items": items, // Unpaid settlements, newest first
		})
	}
}

// MarkSettlementPaidHandler transitions a settlement to paid. Idempotent:
// a double-tap on an already-paid settlement still returns ok.
func MarkSettlementPaidHandler(ledger *settlement.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settlement id"})
			return
		}
		var req MarkPaidRequest // Bind JSON request to struct, body optional
		_ = c.ShouldBindJSON(&req)
		if err := ledger.MarkPaid(uint(id), req.Notes); err != nil {
			if errors.Is(err, settlement.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Settlement not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark paid"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// OperatorSettlementsHandler returns the authenticated operator's own
// settlements with the unpaid portion totalled (earnings view).
func OperatorSettlementsHandler(ledger *settlement.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		items, unpaid, err := ledger.ListByOperator(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settlements"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":        items,  // All settlements, newest first
			"total_unpaid": unpaid, // Live sum of the unpaid ones
		})
	}
}

// SetVerificationHandler records the verification decision made in the
// identity subsystem. The fare policy reads the new status on the next
// quote; nothing else in the engine is touched.
func SetVerificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerificationRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		switch req.Status {
		case domain.VerificationUnverified, domain.VerificationPending,
			domain.VerificationVerified, domain.VerificationRejected:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		var user domain.User // The commuter being decided
		if err := db.First(&user, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Commuter not found"})
			return
		}
		updates := map[string]any{"verification_status": req.Status}
		// An approval may also grant the requested tier
		if req.Status == domain.VerificationVerified && req.PassengerType != "" {
			switch req.PassengerType {
			case domain.TierCasual, domain.TierStudent, domain.TierSenior:
				updates["passenger_type"] = req.PassengerType
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid passenger type"})
				return
			}
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update verification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
