package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/plagctl/internal/config"
	"github.com/kirillkom/plagctl/internal/core/ports"
	"github.com/kirillkom/plagctl/internal/core/usecase"
	"github.com/kirillkom/plagctl/internal/infrastructure/backend"
	"github.com/kirillkom/plagctl/internal/infrastructure/clientstore"
	"github.com/kirillkom/plagctl/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/plagctl/internal/infrastructure/extractor/pdfinfo"
	"github.com/kirillkom/plagctl/internal/infrastructure/feed"
	"github.com/kirillkom/plagctl/internal/infrastructure/resilience"
	"github.com/kirillkom/plagctl/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/plagctl/internal/infrastructure/storage/memory"
	"github.com/kirillkom/plagctl/internal/infrastructure/storage/sqlite"
	"github.com/kirillkom/plagctl/internal/observability/metrics"
)

const serviceName = "plagctl"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.ClientMetrics

	Store   *clientstore.Store
	Backend *backend.Client

	AuthUC          *usecase.AuthUseCase
	DocumentsUC     *usecase.DocumentsUseCase
	QueueUC         *usecase.QueueUseCase
	Check           *usecase.CheckOrchestrator
	ResultsUC       *usecase.ResultsUseCase
	CompareUC       *usecase.CompareUseCase
	NotificationsUC *usecase.NotificationsUseCase
	AccountUC       *usecase.AccountUseCase
	DiscoveryUC     *usecase.DiscoveryUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	kv, closeKV, err := openKeyValueStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	store := clientstore.New(kv, logger)

	clientMetrics := metrics.NewClientMetrics(serviceName)
	if cfg.MetricsAddr != "" {
		clientMetrics.Serve(ctx, cfg.MetricsAddr, logger)
	}

	executor := resilience.NewExecutor(cfg.Resilience()).WithLogger(logger)
	executor.OnStateChange(clientMetrics.RecordBreakerState)

	api, err := backend.New(store, backend.Options{
		ExplicitURL: cfg.APIURL,
		DefaultURL:  cfg.DefaultAPIURL,
		Timeout:     cfg.HTTPTimeout(),
		RateLimit:   cfg.RateLimitRPS,
		RateBurst:   cfg.RateLimitBurst,
		Transport:   clientMetrics.InstrumentTransport(nil),
		Executor:    executor,
		Policies:    backend.DefaultPolicies(),
		Logger:      logger,
	})
	if err != nil {
		closeKV()
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	feeds := feed.NewFactory(api, feed.Options{
		Path:    cfg.FeedPath,
		Markers: cfg.Markers(),
		Logger:  logger,
	})

	authUC := usecase.NewAuthUseCase(api, store, logger)
	documentsUC := usecase.NewDocumentsUseCase(api, store, pdfinfo.NewInspector(cfg.MaxUploadBytes()), authUC, logger)
	check := usecase.NewCheckOrchestrator(store, api, feeds, usecase.CheckOptions{
		GracePeriod: cfg.FeedGracePeriod(),
		Metrics:     clientMetrics,
		Session:     authUC,
		Logger:      logger,
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: clientMetrics,
		Store:   store,
		Backend: api,

		AuthUC:          authUC,
		DocumentsUC:     documentsUC,
		QueueUC:         usecase.NewQueueUseCase(store, documentsUC),
		Check:           check,
		ResultsUC:       usecase.NewResultsUseCase(store, xlsx.NewExporter()),
		CompareUC:       usecase.NewCompareUseCase(api, authUC),
		NotificationsUC: usecase.NewNotificationsUseCase(api, authUC),
		AccountUC:       usecase.NewAccountUseCase(api, store, authUC, logger),
		DiscoveryUC:     usecase.NewDiscoveryUseCase(api, logger),

		closeFn: func() {
			check.Close()
			closeKV()
		},
	}, nil
}

func openKeyValueStore(cfg config.Config, logger *slog.Logger) (ports.KeyValueStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.ResolvedStorePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		fs, err := localfs.New(cfg.ResolvedStorePath(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return fs, func() {}, nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
