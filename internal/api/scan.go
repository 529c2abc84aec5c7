package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"commutepay/internal/domain" // Importing domain models
	"commutepay/internal/scan"   // Scan transaction processor
	"commutepay/internal/wallet" // Wallet lock errors

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// ScanHandler processes one scan attempt from an operator device. Business
// declines return 200 with status "declined"; infra failures return 503 so
// the device retries instead of showing a decline.
func ScanHandler(p *scan.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scan.Request // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// Let the processor record the malformed attempt for audit
			req = scan.Request{}
		}
		result, err := p.Process(c.Request.Context(), req)
		if err != nil {
			// Infra failure: nothing was written, the device should retry
			if errors.Is(err, wallet.ErrWalletHalted) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Wallet unavailable, contact support"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scan could not be processed, please retry"})
			return
		}
		c.JSON(http.StatusOK, result) // Terminal result, approved or declined
	}
}

// ScanHistoryHandler returns the authenticated commuter's scan attempts,
// declines included, filterable by status.
func ScanHistoryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		query := db.Model(&domain.ScanTransaction{}).Where("commuter_id = ?", userID)
		// Optional status filter: approved or declined
		if status := c.Query("status"); status == domain.ScanApproved || status == domain.ScanDeclined {
			query = query.Where("status = ?", status)
		}
		var total int64 // Total matching attempts
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count scans"})
			return
		}
		var scans []domain.ScanTransaction // Slice to hold attempts
		if err := query.Order("created_at desc").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&scans).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scans"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"scans":     scans,    // Scan attempts, newest first
			"page":      page,     // Current page
			"page_size": pageSize, // Page size
			"total":     total,    // Total matching attempts
		})
	}
}
