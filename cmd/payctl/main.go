package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/config"
	"github.com/mmynk/paytrack/internal/service"
	"github.com/mmynk/paytrack/internal/session"
	"github.com/mmynk/paytrack/internal/storage/sqlite"
	"github.com/mmynk/paytrack/pkg/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("PAYTRACK_ENV_FILE"))
	errAndDie(err)
	if cfg.FakeAPI {
		errAndDie(fmt.Errorf("payctl needs a real API, unset %s_API_FAKE", config.EnvPrefix))
	}

	// The CLI only reports problems unless asked for more.
	level := logging.ParseLevel(cfg.LogLevel)
	if os.Getenv(config.EnvPrefix+"_LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	slog.SetDefault(logging.New(os.Stderr, level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := sqlite.New(cfg.DBPath)
	errAndDie(err)
	defer store.Close()

	var sess *session.Manager
	client := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithToken(func(ctx context.Context) string { return sess.Token(ctx) }),
	)
	sess = session.NewManager(client, store)

	cli := commandLine{
		console: service.New(client, service.WithDeliveryLog(store), service.WithLocation(cfg.Location)),
		sess:    sess,
		loc:     cfg.Location,
		out:     os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		store.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
