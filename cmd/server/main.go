package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"domus/internal/config"
	"domus/internal/handlers"
	"domus/internal/jobs"
	"domus/internal/logging"
	"domus/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Domus Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Decay rates: built-in defaults, optional YAML override with hot reload
	decayRates := config.NewDecayRates()
	if cfg.DecayRatesPath != "" {
		if err := decayRates.LoadFile(cfg.DecayRatesPath); err != nil {
			log.Printf("⚠️ Failed to load decay rates from %s: %v (using defaults)", cfg.DecayRatesPath, err)
		} else {
			log.Printf("✅ Decay rates loaded from %s", cfg.DecayRatesPath)
		}
		go decayRates.Watch(cfg.DecayRatesPath)
	}

	// Initialize Redis (optional - enables shared throttle state and the
	// cross-instance event bridge)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		var err error
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable: %v (falling back to in-memory stores)", err)
			redisService = nil
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - using in-memory throttle store")
	}
	if redisService != nil {
		defer redisService.Close()
	}

	// Core services
	var throttleStore services.ThrottleStore
	if redisService != nil {
		throttleStore = services.NewRedisThrottleStore(redisService.Client())
	} else {
		throttleStore = services.NewMemoryThrottleStore()
	}
	debounce := services.NewDebounceManager(throttleStore, cfg.SnapshotDebounce, cfg.ExpiryThrottle)

	bus := services.NewEventBus(cfg.DedupCacheCapacity, cfg.DedupCacheTrimTo)
	bus.Start()
	defer bus.Stop()

	comparator := services.NewFrameComparator(cfg.PresenceThreshold)
	decayService := services.NewConfidenceDecayServiceWithThresholds(
		decayRates, cfg.StaleThreshold, cfg.VerificationThreshold, cfg.MinimumConfidence)
	inventoryService := services.NewInventoryService(comparator, decayService, debounce, bus, cfg.BufferCapacity)

	connManager := services.NewConnectionManager()
	services.InitMetrics(connManager)

	inbox := services.NewInboxService()
	inAppChannel := services.NewInAppChannel(inbox)
	pushChannel := services.NewPushChannel(cfg.NotificationLogPath)
	assistantChannel := services.NewAssistantChannel(cfg.NotificationLogPath)
	notificationRouter := services.NewNotificationRouter(debounce, bus, inAppChannel, pushChannel, assistantChannel)

	intentRouter := services.NewIntentRouter(notificationRouter, debounce)
	intentRouter.Register(bus)

	eventStats := services.NewEventStats()
	services.RegisterAnalyticsHandlers(bus, eventStats, connManager)

	// Cross-instance event mirror (requires Redis)
	var eventBridge *services.EventBridge
	if redisService != nil {
		hostname, _ := os.Hostname()
		eventBridge = services.NewEventBridge(redisService, connManager, hostname)
		eventBridge.Register(bus)
		if err := eventBridge.Start(); err != nil {
			log.Printf("⚠️ Event bridge failed to start: %v", err)
			eventBridge = nil
		}
	}

	// Proactive monitor: scheduled decay and expiry sweeps
	monitor, err := jobs.NewProactiveMonitor(inventoryService, cfg.MonitorCron)
	if err != nil {
		log.Fatalf("❌ Failed to create proactive monitor: %v", err)
	}
	if err := monitor.Start(); err != nil {
		log.Fatalf("❌ Failed to start proactive monitor: %v", err)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Domus v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    5 * 1024 * 1024, // snapshots are item lists, not images
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("domus")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	// Global API rate limiter, keyed by client IP. Health checks and
	// metrics stay outside /api and are not limited.
	app.Use("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] API limit reached for %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please slow down.",
			})
		},
	}))
	log.Println("🛡️  [RATE-LIMIT] Global API rate limiter enabled")

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(connManager, redisService)
	snapshotHandler := handlers.NewSnapshotHandler(inventoryService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, eventStats)
	notificationHandler := handlers.NewNotificationHandler(inbox)
	iotHandler := handlers.NewIoTHandler(inventoryService)
	wsHandler := handlers.NewWebSocketHandler(connManager)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/snapshots", snapshotHandler.Handle)
	api.Post("/iot/disconnect", iotHandler.Disconnect)
	api.Get("/events/stats", inventoryHandler.Stats)

	household := api.Group("/households/:householdId")
	household.Get("/inventory", inventoryHandler.Get)
	household.Get("/inventory/stale", inventoryHandler.GetStale)
	household.Get("/notifications", notificationHandler.List)
	household.Post("/notifications/read-all", notificationHandler.MarkAllRead)
	household.Post("/notifications/:id/read", notificationHandler.MarkRead)

	// WebSocket event stream
	app.Use("/ws/:householdId", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsConfig := websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}
	app.Get("/ws/:householdId", websocket.New(wsHandler.Handle, wsConfig))

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🍳 Snapshot ingest: http://localhost:%s/api/snapshots", cfg.Port)
	log.Printf("🔔 Event stream: ws://localhost:%s/ws/:householdId", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := monitor.Stop(); err != nil {
			log.Printf("⚠️ Error stopping monitor: %v", err)
		}

		if eventBridge != nil {
			eventBridge.Stop()
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
