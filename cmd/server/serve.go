package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/growthdesk/internal/api"
	"github.com/ashureev/growthdesk/internal/chatlog"
	"github.com/ashureev/growthdesk/internal/config"
	"github.com/ashureev/growthdesk/internal/events"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/healthrpc"
	"github.com/ashureev/growthdesk/internal/identity"
	"github.com/ashureev/growthdesk/internal/metrics"
	"github.com/ashureev/growthdesk/internal/middleware"
	"github.com/ashureev/growthdesk/internal/profile"
	"github.com/ashureev/growthdesk/internal/session"
	"github.com/ashureev/growthdesk/internal/store"
	"github.com/ashureev/growthdesk/internal/stream"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Run the HTTP server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

//nolint:gocyclo // Startup wiring is sequential to keep dependency setup explicit.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"backend", cfg.Generation.Backend)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected")

	conn, backendCheck, err := newConnector(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	instrumented := m.Instrument(conn)

	convLog, err := chatlog.New(chatlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = events.Connect(cfg.NATSURL, logger)
		if err != nil {
			slog.Warn("Failed to connect to NATS, event publishing disabled", "error", err)
		} else {
			defer func() {
				if drainErr := nc.Drain(); drainErr != nil {
					slog.Warn("Failed to drain NATS connection", "error", drainErr)
				}
			}()
			slog.Info("Publishing workflow events", "url", cfg.NATSURL)
		}
	}

	hub := stream.NewHub(logger)
	mgr := session.NewManager(session.Config{
		Connector: instrumented,
		Profile: func(userID string) profile.Source {
			return profile.StoreSource{Repo: repo, UserID: userID}
		},
		Hooks: session.Hooks{
			OnCreate: func(inst *session.Instance) {
				inst.Workflow.Subscribe(hub)
				inst.Workflow.Subscribe(m)
				inst.Chat.Subscribe(m)
				inst.Workflow.Subscribe(chatlog.WorkflowObserver{Log: convLog, UserID: inst.UserID, SessionID: inst.SessionID})
				inst.Chat.Subscribe(chatlog.ChatObserver{Log: convLog, UserID: inst.UserID, SessionID: inst.SessionID})
				if nc != nil {
					pub := events.NewPublisher(nc, inst.UserID, inst.SessionID, logger)
					inst.Workflow.Subscribe(pub)
					inst.Chat.Subscribe(pub)
				}
			},
			OnClose: func(inst *session.Instance) {
				hub.CloseInstance(inst.ID)
			},
		},
		Logger: logger,
	})
	m.RegisterGauge("sessions_active", "Number of live session instances.", func() float64 {
		return float64(mgr.Len())
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Close()

	handler := api.NewHandler(repo, mgr, limiter, api.Info{
		Backend:      cfg.Generation.Backend,
		ServeBackend: cfg.Generation.ServeBackend,
		Events:       nc != nil,
		GRPC:         cfg.GRPCAddr != "",
	})
	healthHandler := api.NewHealthHandler(repo, backendCheck)
	wsHandler := stream.NewHandler(hub, mgr, cfg.FrontendURL, cfg.IsDevelopment())

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())
	if cfg.Generation.ServeBackend {
		api.NewBackend(instrumented, cfg.Generation.GeminiAPIKey != "", logger).RegisterRoutes(r)
		slog.Info("Serving generation backend endpoints")
	}

	// Identity-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		handler.RegisterRoutes(r)
		r.Get("/ws/workflow", wsHandler.ServeHTTP)
	})

	// WebSocket connections are long-lived, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	var (
		grpcSrv *healthrpc.Server
		grpcLis net.Listener
	)
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
		}
		var checker healthrpc.Checker
		if backendCheck != nil {
			checker = backendCheck
		}
		grpcSrv = healthrpc.NewServer(healthrpc.ServerConfig{Checker: checker, Logger: logger})
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeperDone := session.StartSweeper(gctx, mgr, session.SweeperConfig{
		IdleTTL: cfg.Session.IdleTTL,
		Users:   repo,
		UserTTL: cfg.Session.UserTTL,
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			return grpcSrv.Serve(gctx, grpcLis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	<-sweeperDone
	if err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

// newConnector builds the configured generation connector. The returned
// checker probes the remote backend and is nil when there is none.
func newConnector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Connector, api.BackendChecker, error) {
	switch cfg.Generation.Backend {
	case config.BackendGemini:
		client, err := generation.NewGeminiClient(ctx, generation.GeminiConfig{
			APIKey:     cfg.Generation.GeminiAPIKey,
			TextModel:  cfg.Generation.TextModel,
			ImageModel: cfg.Generation.ImageModel,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize Gemini connector: %w", err)
		}
		slog.Info("Generation connector ready", "backend", config.BackendGemini, "text_model", cfg.Generation.TextModel)
		return client, nil, nil
	default:
		client, err := generation.NewHTTPClient(generation.HTTPClientConfig{
			BaseURL: cfg.Generation.URL,
			Timeout: cfg.Generation.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize HTTP connector: %w", err)
		}
		slog.Info("Generation connector ready", "backend", config.BackendHTTP, "url", cfg.Generation.URL)
		return client, client, nil
	}
}
