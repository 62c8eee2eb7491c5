// Package app wires the Counsel server runtime: config, logging, stores, HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"counsel/cmd/identity"
	authapi "counsel/cmd/internal/auth/api"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/chat"
	chatapi "counsel/cmd/internal/chat/api"
	"counsel/cmd/internal/connections"
	connapi "counsel/cmd/internal/connections/api"
	"counsel/cmd/internal/proposals"
	proposalapi "counsel/cmd/internal/proposals/api"
	"counsel/cmd/internal/realtime"
	"counsel/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the Counsel server runtime: it owns the stores, HTTP wiring and the realtime engine.
type App struct {
	cfg Config
	log *slog.Logger

	stores  *stores
	metrics *prometheus.Registry

	engine *realtime.Engine
	ws     *realtime.WSGateway

	auth      *authapi.Handler
	chat      *chatapi.Handler
	conns     *connapi.Handler
	proposals *proposalapi.Handler
}

// New constructs a fully wired App. Component settings beyond cfg
// (session, auth cookies, websocket, password hashing) are read from COUNSEL_* env.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	wsCfg, err := realtime.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, wsCfg); err != nil {
		return nil, err
	}
	if !wsCfg.RequireAuth {
		log.Warn("ws.auth.disabled", "hint", "client-supplied user ids are trusted")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := build(cfg, log, st, sessCfg, authCfg, wsCfg, pwCfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func build(
	cfg Config,
	log *slog.Logger,
	st *stores,
	sessCfg session.Config,
	authCfg authapi.Config,
	wsCfg realtime.Config,
	pwCfg password.Config,
) (*App, error) {
	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		return nil, err
	}
	resolver := session.NewResolver(tokens, sessCfg.CookieName)

	messages := chat.NewMessages(st.messages, st.users, log.With("component", "chat"))
	connSvc := connections.NewService(st.connections, st.users)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := realtime.EngineDeps{
		Messages: messages,
		Metrics:  realtime.NewMetrics(reg),
	}
	if cfg.ChatRequireConnection {
		deps.Policy = connSvc
	}
	wsLog := log.With("component", "realtime")
	engine, err := realtime.NewEngine(wsLog, deps)
	if err != nil {
		return nil, err
	}
	ws, err := realtime.NewWSGateway(wsLog, wsCfg, engine, resolver)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(authCfg, log)
	if err != nil {
		return nil, err
	}
	auth, err := authapi.NewHandler(log.With("component", "auth"), authCfg, authapi.Deps{
		Users:      st.users,
		Recovery:   st.recovery,
		Tokens:     tokens,
		Resolver:   resolver,
		Passwords:  pwCfg,
		CookieName: sessCfg.CookieName,
	}, authapi.WithEmailSender(mailer))
	if err != nil {
		return nil, err
	}
	proposalSvc := proposals.NewService(st.proposals, st.users)

	return &App{
		cfg:       cfg,
		log:       log,
		stores:    st,
		metrics:   reg,
		engine:    engine,
		ws:        ws,
		auth:      auth,
		chat:      chatapi.NewHandler(log.With("component", "chat_api"), messages, resolver),
		conns:     connapi.NewHandler(log.With("component", "connections_api"), connSvc, resolver),
		proposals: proposalapi.NewHandler(log.With("component", "proposals_api"), proposalSvc, resolver),
	}, nil
}

// newMailer returns the SMTP relay sender, or a no-op sender when no relay is set.
func newMailer(cfg authapi.Config, log *slog.Logger) (authapi.EmailSender, error) {
	if cfg.SMTPAddr == "" {
		log.Warn("mail.disabled", "hint", "set COUNSEL_SMTP_ADDR to deliver signup codes and reset links")
		return authapi.NoopEmailSender{}, nil
	}
	s, err := authapi.NewSMTPSender(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("mail.enabled.smtp", "addr", cfg.SMTPAddr)
	return s, nil
}

// Handler returns the full HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return WithRequestLogging(WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)), a.log)
}

// Close releases store resources.
func (a *App) Close() error { return a.stores.Close() }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"store_backend", a.stores.backend,
		"db_enabled", a.stores.pool != nil,
		"chat_require_connection", a.cfg.ChatRequireConnection,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; their
	// sessions end when the process exits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		_ = a.Close()
		return err
	}

	if err := a.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// stores owns every persistence resource. The pool is shared by all Postgres
// stores and closed last.
type stores struct {
	backend     string
	pool        *pgxpool.Pool
	users       identity.Store
	recovery    identity.Recovery
	messages    chat.Store
	connections connections.Store
	proposals   proposals.Store
}

// openStores picks the directory stores (Postgres when a DSN is set, memory
// otherwise) and the message store for cfg.Backend().
func openStores(ctx context.Context, cfg Config, log *slog.Logger) (*stores, error) {
	st := &stores{backend: cfg.Backend()}

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_directory")
		users := identity.NewMemoryStore()
		st.users, st.recovery = users, users
		st.connections = connections.NewMemoryStore()
		st.proposals = proposals.NewMemoryStore()
	} else {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st.pool = pool

		users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		conns, err := connections.NewPostgresStore(pool, connections.WithSchema(cfg.DBSchema))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		props, err := proposals.NewPostgresStore(pool, proposals.WithSchema(cfg.DBSchema))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.users, st.recovery = users, users
		st.connections, st.proposals = conns, props
		log.Info("db.enabled.postgres_directory", "schema", cfg.DBSchema, "auto_migrate", cfg.DBAutoMigrate)
	}

	switch st.backend {
	case BackendPostgres:
		if st.pool == nil {
			return nil, errors.New("app: postgres message store requires COUNSEL_DATABASE_URL")
		}
		msgs, err := chat.NewPostgresStore(st.pool, chat.WithSchema(cfg.DBSchema))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.messages = msgs

	case BackendBadger:
		msgs, err := chat.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("app: open badger at %q: %w", cfg.BadgerPath, err)
		}
		st.messages = msgs

	default:
		st.messages = chat.NewMemoryStore()
	}

	log.Info("store.messages", "backend", st.backend)
	return st, nil
}

// Close closes the message store, then the shared pool.
func (s *stores) Close() error {
	var err error
	if s.messages != nil {
		err = s.messages.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// ready reports whether the stores can serve traffic.
func (s *stores) ready(ctx context.Context, requireDB bool) error {
	if s.pool == nil {
		if requireDB {
			return errors.New("db not configured")
		}
		return nil
	}
	return PingDB(ctx, s.pool, 2*time.Second)
}
