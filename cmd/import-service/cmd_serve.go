package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"racecrew/import-service/internal/catalog"
	"racecrew/import-service/internal/config"
	"racecrew/import-service/internal/db"
	"racecrew/import-service/internal/events"
	"racecrew/import-service/internal/grpcserver"
	"racecrew/import-service/internal/importer"
	"racecrew/import-service/internal/logging"
	"racecrew/import-service/internal/metrics"
	"racecrew/import-service/internal/model"
	"racecrew/import-service/internal/review"
	"racecrew/import-service/internal/scheduler"
	"racecrew/import-service/internal/taskstore"
)

const serviceName = "import-service"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review HTTP server and the staging gRPC server",
	RunE:  runServe,
}

// stores bundles the two task stores and, for the memory backend, the
// sweepers that evict their expired entries.
type stores struct {
	schedules   taskstore.Store[[]model.CandidateRecord]
	discoveries taskstore.Store[[]model.DiscoveredRegatta]
	sweepers    map[string]scheduler.Sweeper
}

func newStores(cfg *config.Config, rdb redis.UniversalClient) stores {
	if cfg.TaskStore == config.StoreMemory {
		clock := clockwork.NewRealClock()
		s := taskstore.NewMemory[[]model.CandidateRecord](clock, cfg.TaskTTL, cfg.TaskMaxEntries)
		d := taskstore.NewMemory[[]model.DiscoveredRegatta](clock, cfg.TaskTTL, cfg.TaskMaxEntries)
		return stores{
			schedules:   s,
			discoveries: d,
			sweepers:    map[string]scheduler.Sweeper{taskstore.KindSchedule: s, taskstore.KindDocuments: d},
		}
	}
	return stores{
		schedules:   taskstore.NewRedis[[]model.CandidateRecord](rdb, taskstore.PrefixSchedule, cfg.TaskTTL),
		discoveries: taskstore.NewRedis[[]model.DiscoveredRegatta](rdb, taskstore.PrefixDocuments, cfg.TaskTTL),
	}
}

// newRouter mounts the health, metrics and review routes.
func newRouter(h *review.Handler, m *metrics.Metrics, log *logrus.Entry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", m.Handler())
	r.Mount(review.BasePath, h.Routes())
	return r
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, serviceName)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("catalog migrations applied")
	}
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	var (
		rdb *redis.Client
		pub events.Publisher = events.Nop{}
	)
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		pub = events.NewRedis(rdb)
		log.Info("redis connected")
	}

	// ── Wiring ───────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st := newStores(cfg, rdb)
	svc := importer.NewService(catalog.NewPostgres(pool), pub, m, logging.Component(logger, "importer"))
	handler := review.NewHandler(st.schedules, st.discoveries, svc, nil, m, logging.Component(logger, "review"))

	if len(st.sweepers) > 0 {
		sched := scheduler.New(cfg.SweepSchedule, st.sweepers, logging.Component(logger, "scheduler"))
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(handler, m, logging.Component(logger, "http")),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	grpcserver.Register(grpcSrv, grpcserver.NewServer(st.schedules, st.discoveries, m, logging.Component(logger, "grpc")))
	hs := health.NewServer()
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, hs)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	// ── Run ──────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Infof("%s %s HTTP listening", serviceName, version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("port", cfg.GRPCPort).Info("gRPC listening")
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": version,
	})
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
