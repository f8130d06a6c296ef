package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/apitest"
	"github.com/mmynk/paytrack/internal/config"
	"github.com/mmynk/paytrack/internal/metrics"
	"github.com/mmynk/paytrack/internal/service"
	"github.com/mmynk/paytrack/internal/session"
	"github.com/mmynk/paytrack/internal/storage/sqlite"
	"github.com/mmynk/paytrack/internal/web"
	"github.com/mmynk/paytrack/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Console failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PAYTRACK_ENV_FILE"))
	if err != nil {
		return err
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	baseURL := cfg.APIBaseURL
	if cfg.FakeAPI {
		baseURL, err = startFakeAPI(ctx, cfg)
		if err != nil {
			return err
		}
	}

	var sess *session.Manager
	client := apiclient.New(baseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithMetrics(m),
		apiclient.WithToken(func(ctx context.Context) string { return sess.Token(ctx) }),
	)
	sess = session.NewManager(client, store, session.WithObserver(m))

	console := service.New(client,
		service.WithDeliveryLog(store),
		service.WithMetrics(m),
		service.WithLocation(cfg.Location),
	)

	webOpts := []web.Option{
		web.WithMetrics(m),
		web.WithLocation(cfg.Location),
		web.WithSecureCookies(cfg.SecureCookies),
	}
	if cfg.CSRFKey != "" {
		webOpts = append(webOpts, web.WithCSRFKey([]byte(cfg.CSRFKey)))
	}
	srv, err := web.New(console, sess, webOpts...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", srv.Handler())

	// Wrap with h2c for HTTP/2 without TLS
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Console starting", "address", cfg.HTTPAddr, "api", client.BaseURL())
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startFakeAPI serves the in-memory API on a loopback port and returns its base URL.
func startFakeAPI(ctx context.Context, cfg *config.Config) (string, error) {
	api, err := apitest.New(cfg.FakeAdminUser, cfg.FakeAdminPassword)
	if err != nil {
		return "", fmt.Errorf("failed to create fake API: %w", err)
	}
	api.SeedDemo()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to listen for fake API: %w", err)
	}

	server := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Fake API failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	baseURL := "http://" + ln.Addr().String() + "/api"
	slog.Warn("Using in-memory fake API", "url", baseURL, "admin", cfg.FakeAdminUser)
	return baseURL, nil
}
