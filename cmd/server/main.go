package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging
	"time"    // Debounce window duration

	"commutepay/internal/api"        // Custom package for API handlers
	"commutepay/internal/config"     // Custom package for configuration
	"commutepay/internal/credential" // Credential store
	"commutepay/internal/fare"       // Fare policy
	"commutepay/internal/scan"       // Scan transaction processor
	"commutepay/internal/settlement" // Settlement ledger
	"commutepay/internal/utils"      // Cache adapter
	"commutepay/internal/wallet"     // Wallet service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the engine
	locks := wallet.NewLockTable()                  // One charge per wallet at a time
	wallets := wallet.NewService(db, locks)         // Wallet ledger
	credentials := credential.NewStore(db)          // Rotating QR credentials
	fares := fare.NewPolicy(db)                     // Tier x route-class fare rules
	settlements := settlement.NewLedger(db)         // Operator payouts
	cache := &utils.RedisCache{Client: redisClient} // Debounce + wallet cache
	processor := scan.NewProcessor(db, credentials, fares, wallets, cache,
		time.Duration(cfg.DebounceWindowMS)*time.Millisecond)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Mount the API surface
	api.RegisterRoutes(r, api.Deps{
		DB:          db,
		Redis:       redisClient,
		Credentials: credentials,
		Wallets:     wallets,
		Processor:   processor,
		Settlements: settlements,
		JWTSecret:   cfg.JWTSecret,
	})

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
