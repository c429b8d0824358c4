package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/adilcse/okneppo-sub001/internal/config"
	"github.com/adilcse/okneppo-sub001/internal/handler"
	"github.com/adilcse/okneppo-sub001/internal/middleware"
	"github.com/adilcse/okneppo-sub001/internal/repository"
	"github.com/adilcse/okneppo-sub001/internal/service"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Starting webhook reconciliation service")

	// Open ledger database
	db, err := repository.NewStore(cfg.Database.Path)
	if err != nil {
		appLogger.Error("Failed to open database", "error", err)
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	// Initialize services
	broadcaster := service.NewBroadcaster(cfg.Broadcast.HeartbeatInterval, appLogger)
	defer broadcaster.Close()

	whatsappService := service.NewWhatsAppService(&cfg.WhatsApp, messageRepo, appLogger)
	paymentReconciler := service.NewPaymentReconciler(paymentRepo, registrationRepo, whatsappService, appLogger)
	messageReconciler := service.NewMessageReconciler(messageRepo, broadcaster, appLogger)

	// Initialize handlers
	paymentHandler := handler.NewPaymentWebhookHandler(paymentReconciler, cfg, appLogger)
	whatsappHandler := handler.NewWhatsAppWebhookHandler(messageReconciler, cfg, appLogger)
	eventsHandler := handler.NewEventsHandler(broadcaster, appLogger)
	healthHandler := handler.NewHealthHandler(db, broadcaster, appLogger)

	// Initialize middleware
	recovery := middleware.NewRecoveryMiddleware(appLogger)

	// Setup HTTP routes
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler.CheckHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/webhook/razorpay", paymentHandler.HandleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/webhook/whatsapp", whatsappHandler.HandleVerification).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/webhook/whatsapp", whatsappHandler.HandleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/events", eventsHandler.HandleStream).Methods(http.MethodGet)
	router.Use(recovery.Wrap)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the live event stream holds its connection
		// open until the viewer disconnects.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("Webhook reconciliation service started",
		"address", addr,
		"whatsapp_signature_verification", cfg.WhatsApp.VerifySignature,
		"heartbeat_interval", cfg.Broadcast.HeartbeatInterval.String(),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server stopped gracefully")
}
