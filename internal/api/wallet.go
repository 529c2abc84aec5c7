package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time durations

	"commutepay/internal/domain" // Importing domain models
	"commutepay/internal/utils"  // Utility functions
	"commutepay/internal/wallet" // Wallet service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// TopUpRequest represents a top-up request
type TopUpRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"` // Top-up amount
}

// GetWalletHandler returns wallet info for the authenticated commuter
func GetWalletHandler(svc *wallet.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                                   // Context for Redis operations
		cacheKey := "wallet:user:" + strconv.Itoa(int(userID.(uint))) // Cache key for wallet
		var w domain.Wallet                                           // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &w)          // Try to get from cache
		if err == nil && found {
			// Return cached wallet
			c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": true})
			return
		}
		// If not in cache, fetch from DB
		wp, err := svc.Get(userID.(uint))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found, complete onboarding first"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, wp, 60*time.Second) // Cache the wallet for 60 seconds
		c.JSON(http.StatusOK, gin.H{"wallet": wp, "cached": false})
	}
}

// TopUpHandler credits the commuter's wallet and appends the ledger entry
func TopUpHandler(svc *wallet.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req TopUpRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		w, err := svc.TopUp(userID.(uint), req.Amount)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found, complete onboarding first"})
				return
			}
			if errors.Is(err, wallet.ErrWalletHalted) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Wallet unavailable, contact support"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Top up failed"})
			return
		}
		// Invalidate the wallet cache after the write
		ctx := context.Background()
		_ = utils.DeleteCache(ctx, rdb, "wallet:user:"+strconv.Itoa(int(userID.(uint))))
		c.JSON(http.StatusOK, gin.H{"message": "Top up successful", "wallet": w})
	}
}

// TransactionHistoryHandler returns the commuter's ledger entries
func TransactionHistoryHandler(svc *wallet.Service) gin.HandlerFunc {
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
		entries, total, err := svc.Entries(userID.(uint), page, pageSize)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": entries,  // Ledger entries, newest first
			"page":         page,     // Current page
			"page_size":    pageSize, // Page size
			"total":        total,    // Total entries
		})
	}
}
