package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "taskboard/docs"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/logging"
	"taskboard/internal/middleware"
	"taskboard/internal/pdf"
	"taskboard/internal/repositories"
	"taskboard/internal/routes"
	"taskboard/internal/services"
)

// Run starts the task API and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// === Repos ===
	taskRepo, closeDB, err := openTaskRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	// === Services ===
	taskService := services.NewTaskService(taskRepo)
	pdfGen := pdf.NewSummaryGenerator(cfg.Report.FontPath)

	// === Gin ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	router := NewRouter(log, taskService, pdfGen, reg, cfg.Metrics.Namespace)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("[app][listen]", zap.String("addr", srv.Addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("[app][stopped]")
	return nil
}

// NewRouter builds the gin engine with middleware and routes. reg may be nil
// to disable /metrics.
func NewRouter(log *zap.Logger, taskService services.TaskService, pdfGen pdf.Generator, reg *prometheus.Registry, namespace string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.AccessLog(log))
	router.Use(middleware.CORS())

	var metricsHandler http.Handler
	if reg != nil {
		router.Use(middleware.NewMetrics(reg, namespace).Handler())
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	taskHandler := handlers.NewTaskHandler(taskService, pdfGen, log)
	return routes.SetupRoutes(router, taskHandler, metricsHandler)
}

func openTaskRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repositories.TaskRepository, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("[app][db] using in-memory task store; data is lost on exit")
		return repositories.NewMemoryTaskRepository(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error("[app][db] close", zap.Error(err))
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := repositories.EnsureSchema(ctx, db); err != nil {
		closeDB()
		return nil, nil, err
	}
	return repositories.NewTaskRepository(db), closeDB, nil
}
