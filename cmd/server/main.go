package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"

	"github.com/bidwatch/bidwatch/internal/auth"
	"github.com/bidwatch/bidwatch/internal/bids"
	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/database"
	"github.com/bidwatch/bidwatch/internal/engine"
	"github.com/bidwatch/bidwatch/internal/ledger"
	"github.com/bidwatch/bidwatch/internal/market"
	"github.com/bidwatch/bidwatch/internal/rules"
	"github.com/bidwatch/bidwatch/pkg/middleware"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// config is read from the environment, optionally seeded from a local .env.
type config struct {
	port       string
	rpcURL     string
	privateKey string
	marketURL  string
	catalogURL string
	dbPath     string
	apiKey     string
	apiSecret  string
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Err(err).Msg("failed loading .env")
	}

	cfg := config{
		port:       os.Getenv("PORT"),
		rpcURL:     os.Getenv("RPC_URL"),
		privateKey: os.Getenv("WALLET_PRIVATE"),
		marketURL:  os.Getenv("MARKET_URL"),
		catalogURL: os.Getenv("CATALOG_URL"),
		dbPath:     os.Getenv("DATABASE_PATH"),
		apiKey:     os.Getenv("API_KEY"),
		apiSecret:  os.Getenv("API_SECRET"),
	}
	if cfg.port == "" {
		cfg.port = "1212"
	}
	if cfg.rpcURL == "" {
		cfg.rpcURL = "https://bsc-dataseed.binance.org/"
	}
	return cfg
}

// main wires the bid engine and runs the control surface with graceful
// shutdown support.
func main() {
	cfg := loadConfig()

	// Initialize database
	db, err := database.NewDatabase(cfg.dbPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Ledger client owns the wallet key and the nonce sequencer
	ledgerClient, err := ledger.NewClient(cfg.rpcURL, cfg.privateKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize ledger client")
	}
	zlog.Info().Str("wallet", ledgerClient.Wallet().Hex()).Msg("ledger client ready")

	marketClient, err := market.NewClient(cfg.marketURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize marketplace client")
	}

	// Stores hydrate persisted state so restarts stay idempotent
	catalogStore := catalog.NewStore(db)
	ruleStore := rules.NewStore(db, catalogStore)
	bidStore := bids.NewStore(db)

	executor := bids.NewExecutor(bidStore, ledgerClient)
	poller := engine.NewPoller(marketClient, ruleStore, catalogStore, bidStore, executor)

	var refresher *catalog.Refresher
	if cfg.catalogURL != "" {
		refresher = catalog.NewRefresher(catalogStore, catalog.NewHTTPFetcher(cfg.catalogURL))
	} else {
		zlog.Warn().Msg("CATALOG_URL not set; quality filters limited to persisted catalog")
	}

	controller := engine.NewController(poller, refresher)

	// Initialize router and handlers
	router := gin.Default()

	authService := auth.NewService(jwtSecret())
	authHandlers := auth.NewGinHandlers(authService)
	protected := cfg.apiKey != "" && cfg.apiSecret != ""
	if protected {
		authService.RegisterAPICredentials(cfg.apiKey, cfg.apiSecret)
	} else {
		zlog.Warn().Msg("API_KEY/API_SECRET not set; control surface is unauthenticated")
	}

	ruleHandlers := rules.NewGinHandlers(ruleStore)
	engineHandlers := engine.NewGinHandlers(controller, poller, ruleStore, bidStore, executor, catalogStore)

	router.Use(middleware.RateLimit())
	setupRoutes(router, protected, authService, authHandlers, ruleHandlers, engineHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	controller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight bids are detached from the poller's lifecycle; give them a
	// chance to land before the process exits.
	done := make(chan struct{})
	go func() {
		executor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Minute):
		zlog.Warn().Msg("timed out waiting for in-flight bids")
	}

	zlog.Info().Msg("Server exiting")
}

func jwtSecret() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "bidwatch-secret-key"
}

// setupRoutes configures the control surface:
// - GET / renders the full state view
// - POST /filter and /filter/:id edit the rule set
// - POST /start and /stop gate the poller
// Mutating routes require a bearer token when API credentials are configured.
func setupRoutes(
	router *gin.Engine,
	protected bool,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	ruleHandlers *rules.GinHandlers,
	engineHandlers *engine.GinHandlers,
) {
	router.GET("/", engineHandlers.IndexHandler())
	router.POST("/auth/token", authHandlers.GenerateTokenHandler())

	control := router.Group("")
	if protected {
		control.Use(middleware.JWTAuth(authService))
	}
	{
		control.POST("/filter", ruleHandlers.AddHandler())
		control.POST("/filter/:id", ruleHandlers.DeleteHandler())
		control.POST("/start", engineHandlers.StartHandler())
		control.POST("/stop", engineHandlers.StopHandler())
	}
}
