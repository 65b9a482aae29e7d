package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/ragserve/config"
	"github.com/mohammad-safakhou/ragserve/internal/auth"
	"github.com/mohammad-safakhou/ragserve/internal/search"
)

// Options are the collaborators New wires into routes.
type Options struct {
	Gate     *auth.Gate
	Tokens   *auth.JWTManager
	Accounts *auth.Accounts
	Gateway  *search.Gateway
	Registry *prometheus.Registry
	// HideMetrics drops the /metrics route; collectors still run.
	HideMetrics bool
}

// Server is the HTTP API.
type Server struct {
	Echo      *echo.Echo
	Gate      *auth.Gate
	Gateway   *search.Gateway
	Scheduler *search.Scheduler
	closers   []func() error
}

// New builds the echo app. Login, auth-status, docs and metrics are always
// reachable; every other route goes through the gate.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s rid=%s: %v", code, req.Method, req.URL.Path, c.RealIP(),
			c.Response().Header().Get(echo.HeaderXRequestID), err)
		if !c.Response().Committed {
			if req.Method == http.MethodHead {
				_ = c.NoContent(code)
				return
			}
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, auth.HeaderAPIKey},
	}))

	reg := opts.Registry
	if reg == nil {
		reg = newRegistry()
	}
	gm := newGateMetrics(reg)
	if !opts.HideMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	registerDocs(e)

	ah := &AuthHandler{Accounts: opts.Accounts, Tokens: opts.Tokens}
	ah.Register(e)

	s := &Server{Echo: e, Gate: opts.Gate, Gateway: opts.Gateway}
	gated := e.Group("", opts.Gate.Middleware(gm.observe))
	gated.GET("/health", s.health)
	sh := &SearchHandler{Gateway: opts.Gateway}
	sh.Register(gated.Group("/search"))
	return s
}

// Build wires every dependency from cfg.
func Build(ctx context.Context, cfg *config.Config) (*Server, error) {
	accounts, err := auth.ParseAccounts(cfg.Auth.Accounts)
	if err != nil {
		return nil, fmt.Errorf("auth.accounts: %w", err)
	}
	if accounts.Configured() {
		log.Printf("login enabled for accounts: %s", strings.Join(accounts.Usernames(), ", "))
	} else if cfg.Server.APIKey == "" {
		log.Printf("warning: no accounts and no api key configured; every route is open")
	}
	tokens, err := auth.NewJWTManager(cfg.Auth.TokenSecret, cfg.Auth.TokenExpire, cfg.Auth.GuestTokenExpire)
	if err != nil {
		return nil, err
	}
	gate := auth.NewGate(auth.GateConfig{
		WhitelistPaths:     cfg.Server.WhitelistPaths,
		APIKey:             cfg.Server.APIKey,
		AccountsConfigured: accounts.Configured(),
		Validator:          tokens,
	})
	reg := newRegistry()
	gw, closers, err := BuildGateway(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	s := New(Options{Gate: gate, Tokens: tokens, Accounts: accounts, Gateway: gw, Registry: reg, HideMetrics: !cfg.Telemetry.Enabled})
	s.closers = closers
	if spec := cfg.Search.ReindexCron; spec != "" {
		if !gw.Enabled() {
			log.Printf("search.reindex_cron set but no search engine configured; scheduler disabled")
		} else {
			sched, err := search.NewScheduler(gw, spec)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.Scheduler = sched
		}
	}
	return s, nil
}

// BuildGateway selects the engine: a remote OpenSearch host when set, else
// an embedded bleve directory, else none. reg may be nil.
func BuildGateway(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*search.Gateway, []func() error, error) {
	gw := &search.Gateway{
		Index:      cfg.Search.Index,
		WorkingDir: cfg.Storage.WorkingDir,
		Workspace:  cfg.Storage.Workspace,
	}
	if reg != nil {
		gw.Metrics = search.NewMetrics(reg)
	}
	var closers []func() error
	switch {
	case cfg.Search.Host == "" && cfg.Search.BleveDir != "":
		b := search.NewBleve(cfg.Search.BleveDir)
		gw.Engine = b
		closers = append(closers, b.Close)
	default:
		client, err := search.BuildClient(search.ClientConfig{
			Host:        cfg.Search.Host,
			User:        cfg.Search.User,
			Password:    cfg.Search.Password,
			VerifyCerts: cfg.Search.VerifyCerts,
		})
		if err != nil {
			return nil, nil, err
		}
		if client != nil {
			gw.Engine = client
		}
	}
	if cfg.Search.Cache.Enabled {
		rc := cfg.Storage.Redis
		rdb := redis.NewClient(&redis.Options{
			Addr:        rc.Addr(),
			Password:    rc.Password,
			DB:          rc.DB,
			DialTimeout: rc.Timeout,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			closeAll(closers)
			return nil, nil, fmt.Errorf("redis connection failed (%s): %w", rc.Addr(), err)
		}
		gw.Cache = search.NewCache(rdb, cfg.Search.Cache.TTL, gw.Metrics)
		closers = append(closers, rdb.Close)
	}
	return gw, closers, nil
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.Close()
	if s.Gateway.Enabled() {
		if st, err := s.Gateway.Stats(ctx); err != nil {
			log.Printf("search index %s unavailable: %v", s.Gateway.Index, err)
		} else {
			log.Printf("search index %s holds %d chunks", s.Gateway.Index, st.Count)
		}
	}
	if s.Scheduler != nil {
		s.Scheduler.Start(ctx)
		defer s.Scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- s.Echo.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Echo.Shutdown(shutdownCtx)
	}
}

// Close releases engine and cache connections.
func (s *Server) Close() {
	closeAll(s.closers)
	s.closers = nil
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

// health
//
//	@Summary	Health check
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (s *Server) health(c echo.Context) error {
	resp := HealthResponse{
		Status:           "healthy",
		AuthMode:         authModeDisabled,
		APIKeyConfigured: s.Gate.APIKeyConfigured(),
	}
	if s.Gate.AccountsConfigured() {
		resp.AuthMode = authModeEnabled
	}
	for _, r := range s.Gate.Whitelist() {
		p := r.Pattern
		if r.Prefix {
			p += "/*"
		}
		resp.Whitelist = append(resp.Whitelist, p)
	}
	if s.Gateway.Enabled() {
		resp.Search.Enabled = true
		resp.Search.Index = s.Gateway.Index
		st, err := s.Gateway.Stats(c.Request().Context())
		if err != nil {
			resp.Search.Error = err.Error()
		} else {
			resp.Search.Count = st.Count
		}
	}
	return c.JSON(http.StatusOK, resp)
}
