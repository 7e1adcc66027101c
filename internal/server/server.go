package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/supplylist/internal/backup"
	"github.com/dukerupert/supplylist/internal/config"
	"github.com/dukerupert/supplylist/internal/handler"
	"github.com/dukerupert/supplylist/internal/metrics"
	"github.com/dukerupert/supplylist/internal/middleware"
	"github.com/dukerupert/supplylist/internal/store"
	"github.com/dukerupert/supplylist/internal/supply"
	ws "github.com/dukerupert/supplylist/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	ctrl        *supply.Controller
	supplyH     *handler.SupplyHandler
	metrics     *metrics.Recorder
	uploader    *backup.Uploader
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New wires the supply list controller to the database, the websocket hub and
// the metrics registry. opts are passed through to the controller.
func New(db *sql.DB, cfg *config.Config, logger *slog.Logger, opts ...supply.Option) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	rec := metrics.NewRecorder()

	repo := supply.NewRepository(store.NewSlotStore(db), logger.With("component", "repository"))
	opts = append([]supply.Option{supply.WithNotifier(hub), supply.WithRecorder(rec)}, opts...)
	ctrl := supply.NewController(repo, logger.With("component", "supply"), opts...)

	uploader := backup.NewUploader(cfg.Backup, store.NewBackupStore(db), func(s backup.Status) {
		hub.BackupStatus(string(s.State))
	}, logger.With("component", "backup"))

	limiter := middleware.NewRateLimiter(cfg.BackupRateLimit, time.Minute)
	limiter.TrustProxy(cfg.TrustProxy)

	return &Server{
		db:          db,
		hub:         hub,
		ctrl:        ctrl,
		supplyH:     handler.NewSupplyHandler(ctrl, uploader, logger.With("component", "handler")),
		metrics:     rec,
		uploader:    uploader,
		rateLimiter: limiter,
		logger:      logger,
	}
}

// Controller returns the supply list controller.
func (s *Server) Controller() *supply.Controller {
	return s.ctrl
}

// RateLimiter returns the backup rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Queries
	mux.HandleFunc("GET /api/shopping-list", s.supplyH.ShoppingList)
	mux.HandleFunc("GET /api/items", s.supplyH.ListItems)
	mux.HandleFunc("GET /api/categories", s.supplyH.ListCategories)
	mux.HandleFunc("GET /api/summary", s.supplyH.Summary)
	mux.HandleFunc("GET /api/suggest-category", s.supplyH.SuggestCategory)

	// Items
	mux.HandleFunc("POST /api/items", s.supplyH.CreateItem)
	mux.HandleFunc("PUT /api/items/{id}", s.supplyH.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.supplyH.DeleteItem)
	mux.HandleFunc("POST /api/items/{id}/toggle-list", s.supplyH.ToggleOnList)
	mux.HandleFunc("POST /api/items/{id}/toggle-checked", s.supplyH.ToggleChecked)
	mux.HandleFunc("POST /api/items/{id}/remove-from-list", s.supplyH.RemoveFromList)
	mux.HandleFunc("POST /api/shopping-list/clear", s.supplyH.ClearList)

	// Categories
	mux.HandleFunc("POST /api/categories", s.supplyH.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.supplyH.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.supplyH.DeleteCategory)

	// Data management
	mux.HandleFunc("GET /api/export", s.supplyH.Export)
	mux.HandleFunc("POST /api/import", s.supplyH.Import)
	mux.HandleFunc("POST /api/reset", s.supplyH.Reset)

	// Off-device backup
	mux.HandleFunc("GET /api/backup/status", s.supplyH.BackupStatus)
	mux.HandleFunc("GET /api/backup/history", s.supplyH.BackupHistory)
	mux.Handle("POST /api/backup", s.rateLimiter.Limit(http.HandlerFunc(s.supplyH.Backup)))
	mux.Handle("POST /api/backup/restore", s.rateLimiter.Limit(http.HandlerFunc(s.supplyH.RestoreBackup)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
