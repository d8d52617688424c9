// Command server runs the certflow HTTP API: certification case workflow,
// appointment scheduling, stage rehabilitation, and license issuance.
//
// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	appointmentHandler "certflow/internal/appointment/handler"
	appointmentService "certflow/internal/appointment/service"
	appointmentStore "certflow/internal/appointment/store"
	"certflow/internal/credential"
	licenseHandler "certflow/internal/license/handler"
	licenseService "certflow/internal/license/service"
	licenseStore "certflow/internal/license/store"
	"certflow/internal/platform/caselock"
	"certflow/internal/platform/config"
	"certflow/internal/platform/httpserver"
	"certflow/internal/platform/logger"
	"certflow/internal/platform/metrics"
	"certflow/internal/platform/middleware"
	"certflow/internal/platform/postgres"
	platformredis "certflow/internal/platform/redis"
	rehabHandler "certflow/internal/rehab/handler"
	rehabMetrics "certflow/internal/rehab/metrics"
	rehabService "certflow/internal/rehab/service"
	rehabStore "certflow/internal/rehab/store"
	workflowHandler "certflow/internal/workflow/handler"
	workflowMetrics "certflow/internal/workflow/metrics"
	workflowService "certflow/internal/workflow/service"
	workflowStore "certflow/internal/workflow/store"
	"certflow/pkg/platform/httputil"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	cases        workflowService.CaseStore
	appointments appointmentService.Store
	records      rehabService.Store
	licenses     licenseService.Store
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	// Storage: PostgreSQL when configured, in-memory otherwise.
	st := stores{
		cases:        workflowStore.NewMemory(),
		appointments: appointmentStore.NewMemory(),
		records:      rehabStore.NewMemory(),
		licenses:     licenseStore.NewMemory(),
	}
	var rehabOpts []rehabService.Option
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		st = stores{
			cases:        workflowStore.NewPostgres(db),
			appointments: appointmentStore.NewPostgres(db),
			records:      rehabStore.NewPostgres(db),
			licenses:     licenseStore.NewPostgres(db),
		}
		rehabOpts = append(rehabOpts, rehabService.WithTxBeginner(db))
		log.Info("using postgres stores")
	}

	// Locking: Redis for multi-instance deployments, in-process otherwise.
	var locker caselock.Locker = caselock.NewMemoryLocker()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = caselock.NewRedisLocker(redisClient.Client)
		log.Info("using redis case locking")
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}

	// Services.
	appointments, err := appointmentService.New(st.appointments, locker,
		appointmentService.WithLogger(log))
	if err != nil {
		return err
	}

	engine, err := workflowService.New(st.cases, appointments, locker,
		workflowService.WithLogger(log),
		workflowService.WithMetrics(workflowMetrics.New()))
	if err != nil {
		return err
	}

	rehab, err := rehabService.New(engine, st.records, verifier,
		append(rehabOpts,
			rehabService.WithLogger(log),
			rehabService.WithMetrics(rehabMetrics.New()))...)
	if err != nil {
		return err
	}

	licenses, err := licenseService.New(engine, st.licenses,
		licenseService.WithLogger(log))
	if err != nil {
		return err
	}

	router := newRouter(log, engine, appointments, rehab, licenses)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting certflow server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func newVerifier(cfg config.Config, log *slog.Logger) (credential.Verifier, error) {
	if cfg.SupervisorCredentialHash != "" {
		return credential.NewBcryptVerifier(cfg.SupervisorCredentialHash)
	}
	log.Warn("using plaintext supervisor credential; set CERTFLOW_SUPERVISOR_CREDENTIAL_HASH in production")
	return credential.NewStaticVerifier(cfg.SupervisorCredential), nil
}

func newRouter(
	log *slog.Logger,
	engine *workflowService.Service,
	appointments *appointmentService.Service,
	rehab *rehabService.Service,
	licenses *licenseService.Service,
) chi.Router {
	r := chi.NewRouter()

	httpMetrics := metrics.New()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	r.Use(httpMetrics.Middleware(func(req *http.Request) string {
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				return pattern
			}
		}
		return "unmatched"
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		workflowHandler.New(engine, log).Register(r)
		appointmentHandler.New(appointments, log).Register(r)
		rehabHandler.New(rehab, log).Register(r)
		licenseHandler.New(licenses, log).Register(r)
	})

	return r
}
