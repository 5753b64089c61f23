package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"attendance-backend/attendance"
	"attendance-backend/auth"
	"attendance-backend/config"
	"attendance-backend/contracts"
	"attendance-backend/handlers"
	"attendance-backend/store"
)

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	case config.DriverMemory:
		logger.Warning("Using in-memory store; state is lost on restart")
		return store.NewMemory(), nil
	default:
		return store.OpenPostgres(context.Background(), cfg.DatabaseURL)
	}
}

// connectToEthereum builds the on-chain payer. It returns nil when payouts are not configured.
func connectToEthereum(cfg config.Config) (*contracts.VaultPayer, *ethclient.Client, error) {
	if !cfg.ChainPayouts() {
		return nil, nil, nil
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Ethereum client: %w", err)
	}

	vault, err := contracts.NewVaultPayer(client, cfg.RewardToken, cfg.PayoutKey, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	logger.Infof("Successfully connected to Ethereum node! Treasury %s", vault.Treasury().Hex())
	return vault, client, nil
}

func main() {
	defer logger.Init("attendance-backend", true, false, io.Discard).Close()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if !cfg.EnvFile {
		logger.Warning(".env file not found, using environment variables")
	}
	if !cfg.LogVerbose {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("Unable to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	vault, ethClient, err := connectToEthereum(cfg)
	if err != nil {
		logger.Fatalf("Unable to connect to Ethereum node: %v", err)
	}

	var payer attendance.Payer = contracts.LogPayer{}
	var treasury handlers.Treasury
	if vault != nil {
		defer ethClient.Close()
		payer = vault
		treasury = vault
	} else {
		logger.Warning("Chain payouts not configured; rewards are only logged")
	}

	basis, _ := attendance.ParseRewardBasis(cfg.RewardBasis)
	opts := []attendance.Option{
		attendance.WithRewardBasis(basis),
		attendance.WithPayoutLease(cfg.PayoutLease),
	}
	if cfg.BootstrapAdmin != "" {
		admin, err := auth.NormalizeAddress(cfg.BootstrapAdmin)
		if err != nil {
			logger.Fatalf("Invalid bootstrap admin: %v", err)
		}
		opts = append(opts, attendance.WithBootstrapAdmin(admin))
	}
	manager := attendance.NewManager(st, payer, opts...)

	// Create handlers
	eventHandler := handlers.NewEventHandler(manager, treasury, cfg.PayoutTimeout)
	checkinHandler := handlers.NewCheckinHandler(manager)
	signatures := handlers.NewSignatures(cfg.SigningDomain(), cfg.AuthMaxSkew)

	// Setup Gin
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", handlers.HeaderAddress, handlers.HeaderTimestamp, handlers.HeaderSignature}
	router.Use(cors.New(corsConfig))

	// API routes
	api := router.Group("/api/v1")
	handlers.Register(api, eventHandler, checkinHandler, signatures)

	api.GET("/test-db", func(c *gin.Context) {
		if err := st.View(c.Request.Context(), func(store.Tx) error { return nil }); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Store connection failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "Store connection OK", "driver": cfg.StoreDriver})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	logger.Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
