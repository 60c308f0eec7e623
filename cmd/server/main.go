package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	cartapp "github.com/jerseyarena/storefront/internal/application/cart"
	checkoutapp "github.com/jerseyarena/storefront/internal/application/checkout"
	reconcileapp "github.com/jerseyarena/storefront/internal/application/reconcile"
	sessionapp "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/infrastructure/config"
	"github.com/jerseyarena/storefront/internal/infrastructure/logger"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
	"github.com/jerseyarena/storefront/internal/infrastructure/telemetry"
	"github.com/jerseyarena/storefront/internal/interfaces/http/handler"
	"github.com/jerseyarena/storefront/internal/interfaces/http/middleware"
	"github.com/jerseyarena/storefront/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize the per-shopper session store
	var store sessionstore.Store
	switch cfg.Session.Store {
	case "redis":
		factory := sessionstore.NewFactory(sessionstore.RedisConfig{
			Host:       cfg.Redis.Host,
			Port:       cfg.Redis.Port,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			SessionTTL: cfg.Session.TTL,
		}, sessionstore.WithLogger(log), sessionstore.WithInMemoryFallback(cfg.App.Env != "production"))
		store, err = factory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create session store", zap.Error(err))
		}
	default:
		log.Warn("Using in-memory session store; state does not survive restarts")
		store = sessionstore.NewMemoryStore()
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing session store", zap.Error(err))
		}
	}()

	// Initialize the store backend client
	api, err := storeapi.NewClient(&storeapi.Config{
		BaseURL:   cfg.StoreAPI.BaseURL,
		Timeout:   cfg.StoreAPI.Timeout,
		UserAgent: cfg.StoreAPI.UserAgent,
	}, storeapi.WithClientLogger(log))
	if err != nil {
		log.Fatal("Failed to create store API client", zap.Error(err))
	}

	// Initialize application services
	sessions := sessionapp.NewService(api, store, log)
	carts := cartapp.NewService(api, store, sessions, log)
	sessions.Subscribe(carts.AuthSubscriber())
	checkouts := checkoutapp.NewService(api, store, sessions, carts, log)
	reconciler := reconcileapp.NewService(api, store, sessions, carts, log,
		reconcileapp.WithSuccessPath(cfg.Checkout.SuccessPath))

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(sessions)
	cartHandler := handler.NewCartHandler(carts, sessions)
	checkoutHandler := handler.NewCheckoutHandler(checkouts)
	paymentReturnHandler := handler.NewPaymentReturnHandler(reconciler)
	orderHandler := handler.NewOrderHandler(api, sessions)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Env, store)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, in order: request id, tracing, session cookie,
	// panic recovery, request logging, CORS, body limit.
	engine.Use(middleware.RequestID())
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.Session(middleware.SessionConfig{
		CookieName:   cfg.Session.CookieName,
		CookieDomain: cfg.Session.CookieDomain,
		CookiePath:   cfg.Session.CookiePath,
		CookieSecure: cfg.Session.CookieSecure,
		SameSite:     cfg.Session.SameSite,
		TTL:          int(cfg.Session.TTL.Seconds()),
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Probes live outside API versioning
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	// API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(authHandler).
		Register(cartHandler).
		Register(checkoutHandler).
		Register(paymentReturnHandler).
		Register(orderHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
