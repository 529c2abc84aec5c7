package api

import (
	"net/http" // HTTP status codes

	"commutepay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// CreateVehicleRequest represents a vehicle registration request
type CreateVehicleRequest struct {
	OperatorID uint   `json:"operator_id" binding:"required"` // Operator the vehicle belongs to
	PlateNo    string `json:"plate_no" binding:"required"`    // Plate number, unique
	RouteName  string `json:"route_name" binding:"required"`  // Route the vehicle serves
	RouteClass string `json:"route_class"`                    // Fare rule key, defaults to standard
}

// CreateVehicleHandler registers a vehicle (admin only). The scan engine
// reads the registry but never writes it.
func CreateVehicleHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateVehicleRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// The operator must exist and hold the operator role
		var operator domain.User
		if err := db.First(&operator, req.OperatorID).Error; err != nil || operator.Role != domain.RoleOperator {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown operator"})
			return
		}
		if req.RouteClass == "" {
			req.RouteClass = "standard" // Default fare class
		}
		v := domain.Vehicle{
			OperatorID: req.OperatorID, // Owning operator
			PlateNo:    req.PlateNo,    // Plate number
			RouteName:  req.RouteName,  // Route name
			RouteClass: req.RouteClass, // Fare rule key
		}
		if err := db.Create(&v).Error; err != nil {
			// Duplicate plate numbers land here
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plate number already registered"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"vehicle": v})
	}
}

// ListVehiclesHandler returns the authenticated operator's vehicles
func ListVehiclesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var vehicles []domain.Vehicle // Slice to hold vehicles
		if err := db.Where("operator_id = ?", userID).Find(&vehicles).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": vehicles})
	}
}
