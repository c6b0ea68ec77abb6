package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/openmic-live/openmic/domains/live/be/broadcast"
	livehandler "github.com/openmic-live/openmic/domains/live/be/handler"
	participanthandler "github.com/openmic-live/openmic/domains/participants/be/handler"
	participantrepo "github.com/openmic-live/openmic/domains/participants/be/repo"
	participantsvc "github.com/openmic-live/openmic/domains/participants/be/service"
	partyhandler "github.com/openmic-live/openmic/domains/parties/be/handler"
	partyrepo "github.com/openmic-live/openmic/domains/parties/be/repo"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	queuehandler "github.com/openmic-live/openmic/domains/queue/be/handler"
	queuerepo "github.com/openmic-live/openmic/domains/queue/be/repo"
	queuesvc "github.com/openmic-live/openmic/domains/queue/be/service"
	platformauth "github.com/openmic-live/openmic/platform/go/auth"
	"github.com/openmic-live/openmic/platform/go/gcp"
	platformhttp "github.com/openmic-live/openmic/platform/go/httpapi"
	"github.com/openmic-live/openmic/platform/go/logging"
	platformmw "github.com/openmic-live/openmic/platform/go/middleware"
	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

type config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// EnvKey namespaces all documents for this deployment (one venue or stage
	// per tenant space).
	EnvKey string `env:"ENV_KEY,required"`
	// AuthProvider selects token verification: "firebase" in real deployments,
	// "dev" accepts unsigned tokens for local work.
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"firebase"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{Component: "api-server", Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config, logger *zap.Logger) error {
	ctx := context.Background()

	space, err := tenant.Resolve(cfg.EnvKey)
	if err != nil {
		return err
	}

	app, fbAuth, err := gcp.InitFirebaseAuth(ctx)
	if err != nil {
		return err
	}
	fsClient, err := gcp.InitFirestore(ctx, app)
	if err != nil {
		return err
	}
	defer func() { _ = fsClient.Close() }()

	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "dev":
		logger.Warn("accepting unsigned tokens, never use outside local development")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	}

	store := persistence.NewFirestoreStore(fsClient)
	resolver := permission.NewResolver(permission.NewFirestoreGrantStore(fsClient), logger)

	parties := partysvc.New(partyrepo.NewStoreRepository(store))
	participants := participantsvc.New(participantrepo.NewStoreRepository(store), parties)
	queue := queuesvc.New(queuerepo.NewStoreRepository(store), parties, participants)

	views := broadcast.NewViewBuilder(parties, participants, queue)
	hub := broadcast.NewHub(store, views, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(platformmw.DefaultCORS())
	r.Use(logging.RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		platformhttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		// One cheap read proves the document store is reachable.
		opCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if _, err := fsClient.Collections(opCtx).Next(); err != nil && !errors.Is(err, iterator.Done) {
			platformhttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "storage unreachable"})
			return
		}
		platformhttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(platformauth.JWT(verify, platformauth.DefaultCredentialExtractor))
		api.Use(tenant.Middleware(space))
		api.Use(platformmw.Session(resolver))

		// REST endpoints get a per-request deadline; the live stream must not,
		// a websocket stays open as long as the observer does.
		api.Group(func(rest chi.Router) {
			rest.Use(chimiddleware.Timeout(cfg.RequestTimeout))
			partyhandler.New(parties, views, logger).Register(rest)
			participanthandler.New(participants, logger).Register(rest)
			queuehandler.New(queue, logger).Register(rest)
		})
		livehandler.New(hub, parties, logger).Register(api)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening",
			zap.Int("port", cfg.Port),
			zap.String("tenant", space.ID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
