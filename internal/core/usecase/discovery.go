package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type DiscoveryUseCase struct {
	discoverer ports.EndpointDiscoverer
	logger     *slog.Logger
}

func NewDiscoveryUseCase(discoverer ports.EndpointDiscoverer, logger *slog.Logger) *DiscoveryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryUseCase{discoverer: discoverer, logger: logger}
}

func (uc *DiscoveryUseCase) Endpoint() domain.APIEndpoint {
	return uc.discoverer.ResolveEndpoint()
}

// Discover runs one discovery round trip and returns the endpoint in effect
// afterwards together with the newly discovered URL, if any.
func (uc *DiscoveryUseCase) Discover(ctx context.Context) (domain.APIEndpoint, string, error) {
	url, err := uc.discoverer.DiscoverAndCacheURL(ctx)
	return uc.discoverer.ResolveEndpoint(), url, err
}

// DiscoverOnStart is the best-effort discovery done before a command runs.
// Failures are logged and never block the command.
func (uc *DiscoveryUseCase) DiscoverOnStart(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := uc.discoverer.DiscoverAndCacheURL(ctx); err != nil {
		uc.logger.Debug("startup_discovery_skipped", "error", err)
	}
}
