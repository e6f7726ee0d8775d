package screener

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
)

// Provider is a screener backend keyed by name.
type Provider interface {
	Name() string
	Screen(ctx context.Context, cfg *domain.ScreenerConfig) (*domain.ScreenerResult, error)
}

// Outcome is the result of a refresh attempt. A degraded outcome carries no
// result and the reason the refresh was skipped or failed; it is never an
// error, so the caller's research run proceeds either way.
type Outcome struct {
	Result   *domain.ScreenerResult
	Degraded bool
	Reason   string
}

// Candidates returns the screened symbols, or nil when degraded.
func (o Outcome) Candidates() []string {
	if o.Result == nil {
		return nil
	}
	return o.Result.Symbols
}

// Service dispatches screener refreshes to registered providers.
type Service struct {
	providers map[string]Provider
	bus       *events.Bus
	log       zerolog.Logger
}

// NewService creates an empty screener service.
func NewService(bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		providers: make(map[string]Provider),
		bus:       bus,
		log:       log.With().Str("component", "screener").Logger(),
	}
}

// Register adds a provider. Duplicate names are rejected.
func (s *Service) Register(provider Provider) error {
	name := provider.Name()
	if _, exists := s.providers[name]; exists {
		return fmt.Errorf("screener provider %q already registered", name)
	}
	s.providers[name] = provider
	return nil
}

// Refresh runs the strategy's screener config, degrading on any failure.
func (s *Service) Refresh(ctx context.Context, strategy *domain.Strategy) Outcome {
	cfg := strategy.Screener
	if cfg == nil || !cfg.Enabled {
		return Outcome{Degraded: true, Reason: "screener not configured"}
	}

	provider, ok := s.providers[cfg.Provider]
	if !ok {
		s.log.Warn().
			Str("strategy_id", strategy.ID.String()).
			Str("provider", cfg.Provider).
			Msg("Unknown screener provider, proceeding without refresh")
		return Outcome{Degraded: true, Reason: fmt.Sprintf("unknown screener provider %q", cfg.Provider)}
	}

	result, err := provider.Screen(ctx, cfg)
	if err != nil {
		s.log.Warn().Err(err).
			Str("strategy_id", strategy.ID.String()).
			Str("provider", cfg.Provider).
			Msg("Screener refresh failed, proceeding without refresh")
		return Outcome{Degraded: true, Reason: err.Error()}
	}

	s.bus.Emit(events.ScreenerRefreshed, "screener", map[string]any{
		"strategy_id": strategy.ID.String(),
		"provider":    cfg.Provider,
		"symbols":     len(result.Symbols),
	})
	return Outcome{Result: result}
}
