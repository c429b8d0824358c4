package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/service"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db          *sql.DB
	broadcaster *service.Broadcaster
	logger      *logger.Logger
	startTime   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, broadcaster *service.Broadcaster, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		broadcaster: broadcaster,
		logger:      log,
		startTime:   time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "unreachable"
		h.logger.Error("Health check database ping failed", "error", err)
	}

	response := map[string]interface{}{
		"status":       "healthy",
		"database":     dbStatus,
		"live_viewers": h.broadcaster.Len(),
		"uptime":       time.Since(h.startTime).String(),
		"timestamp":    time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
