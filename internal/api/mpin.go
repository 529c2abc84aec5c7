package api

import (
	"net/http" // HTTP status codes
	"regexp"   // MPIN format check

	"commutepay/internal/domain" // Importing domain models
	"commutepay/internal/wallet" // Wallet service

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // MPIN hashing
	"gorm.io/gorm"               // GORM ORM library
)

// SetMPINRequest represents an MPIN setup request
type SetMPINRequest struct {
	MPIN        string `json:"mpin" binding:"required"`         // Six digits
	ConfirmMPIN string `json:"confirm_mpin" binding:"required"` // Must match MPIN
}

// VerifyMPINRequest represents an MPIN verification request
type VerifyMPINRequest struct {
	MPIN string `json:"mpin" binding:"required"` // Six digits
}

var mpinFormat = regexp.MustCompile(`^\d{6}$`)

// SetMPINHandler finishes commuter onboarding: hashes and stores the MPIN,
// activates the account and creates the wallet.
func SetMPINHandler(db *gorm.DB, wallets *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req SetMPINRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate MPIN format and confirmation
		if !mpinFormat.MatchString(req.MPIN) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "MPIN must be exactly 6 digits"})
			return
		}
		if req.MPIN != req.ConfirmMPIN {
			c.JSON(http.StatusBadRequest, gin.H{"error": "MPIN does not match"})
			return
		}
		// Hash the MPIN
		hash, err := bcrypt.GenerateFromPassword([]byte(req.MPIN), 12)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash MPIN"})
			return
		}
		// Store the hash and activate the account
		if err := db.Model(&domain.User{}).Where("id = ?", userID).
			Updates(map[string]any{"pin_hash": string(hash), "active": true}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set MPIN"})
			return
		}
		// Onboarding complete: the wallet exists from here on
		if _, err := wallets.Create(userID.(uint)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create wallet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "MPIN set. Account activated."})
	}
}

// VerifyMPINHandler checks a submitted MPIN against the stored hash
func VerifyMPINHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req VerifyMPINRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !mpinFormat.MatchString(req.MPIN) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid MPIN format"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil || user.PINHash == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "MPIN not set"})
			return
		}
		// Compare provided MPIN with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(req.MPIN)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect MPIN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
