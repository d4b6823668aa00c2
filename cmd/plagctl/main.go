package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/plagctl/internal/adapters/cli"
	"github.com/kirillkom/plagctl/internal/adapters/tui"
	"github.com/kirillkom/plagctl/internal/bootstrap"
	"github.com/kirillkom/plagctl/internal/config"
	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
	"github.com/kirillkom/plagctl/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("plagctl", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	if cfg.DiscoverOnStart && needsBackend(args) {
		app.DiscoveryUC.DiscoverOnStart(ctx, 0)
	}

	code := cli.New(cli.Services{
		Auth:          app.AuthUC,
		Documents:     app.DocumentsUC,
		Queue:         app.QueueUC,
		Check:         app.Check,
		Results:       app.ResultsUC,
		Compare:       app.CompareUC,
		Notifications: app.NotificationsUC,
		Account:       app.AccountUC,
		Discovery:     app.DiscoveryUC,
	}, cli.Options{
		LiveView: liveView,
		Logger:   logger,
	}).Execute(ctx, args)

	app.Close()
	os.Exit(code)
}

func liveView(ctx context.Context, runner ports.CheckRunner, scope domain.ResultType, in io.Reader, out io.Writer) (domain.CheckSnapshot, error) {
	return tui.Run(ctx, runner, scope, in, out)
}

// needsBackend skips startup discovery for commands that only touch local state.
func needsBackend(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "discover", "logout", "help", "-h", "--help":
		return false
	case "queue":
		return len(args) > 1 && args[1] == "add"
	case "results":
		return false
	default:
		return true
	}
}
