package api

import (
	"commutepay/internal/credential" // Credential store
	"commutepay/internal/domain"     // Importing domain models
	"commutepay/internal/middleware" // Auth middleware
	"commutepay/internal/scan"       // Scan transaction processor
	"commutepay/internal/settlement" // Settlement ledger
	"commutepay/internal/wallet"     // Wallet service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps bundles everything the route handlers need
type Deps struct {
	DB          *gorm.DB           // Database handle
	Redis       *redis.Client      // Redis client for read caches
	Credentials *credential.Store  // Credential store
	Wallets     *wallet.Service    // Wallet service
	Processor   *scan.Processor    // Scan transaction processor
	Settlements *settlement.Ledger // Settlement ledger
	JWTSecret   string             // Secret shared with the identity provider
}

// RegisterRoutes mounts the full API surface on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	auth := middleware.JWTAuthMiddleware(d.JWTSecret) // All routes require a valid token

	// Commuter routes
	commuter := r.Group("/")
	commuter.Use(auth)
	commuter.GET("/credential", GetCredentialHandler(d.Credentials))           // Fetch QR credential
	commuter.POST("/credential/rotate", RotateCredentialHandler(d.Credentials)) // Rotate QR credential
	commuter.GET("/wallet", GetWalletHandler(d.Wallets, d.Redis))              // Wallet balance
	commuter.POST("/wallet/topup", TopUpHandler(d.Wallets, d.Redis))           // Top up
	commuter.GET("/wallet/transactions", TransactionHistoryHandler(d.Wallets)) // Ledger history
	commuter.GET("/scans", ScanHistoryHandler(d.DB))                           // Scan history incl. declines
	commuter.POST("/mpin/set", SetMPINHandler(d.DB, d.Wallets))                // Finish onboarding
	commuter.POST("/mpin/verify", VerifyMPINHandler(d.DB))                     // App unlock
	commuter.POST("/guardian/request", RequestGuardianLinkHandler(d.DB))       // Guardian link request
	commuter.GET("/guardian/my", MyGuardianDataHandler(d.DB))                  // My links and requests
	commuter.POST("/guardian/requests/:id/approve", ApproveGuardianRequestHandler(d.DB))
	commuter.POST("/guardian/requests/:id/reject", RejectGuardianRequestHandler(d.DB))

	// Operator routes
	operator := r.Group("/")
	operator.Use(auth, middleware.RequireRoleMiddleware(d.DB, domain.RoleOperator))
	operator.POST("/scan", ScanHandler(d.Processor))                        // Process a scan
	operator.GET("/vehicles", ListVehiclesHandler(d.DB))                    // My vehicles
	operator.GET("/operator/settlements", OperatorSettlementsHandler(d.Settlements)) // Earnings

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequireRoleMiddleware(d.DB, domain.RoleAdmin))
	admin.GET("/settlements/unpaid", ListUnpaidSettlementsHandler(d.Settlements))  // Unpaid payouts
	admin.POST("/settlements/:id/mark-paid", MarkSettlementPaidHandler(d.Settlements)) // Confirm payout
	admin.POST("/vehicles", CreateVehicleHandler(d.DB))                            // Register vehicle
	admin.POST("/commuters/:id/verification", SetVerificationHandler(d.DB))        // Verification decision
}
