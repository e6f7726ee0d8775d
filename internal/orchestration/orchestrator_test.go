package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/providers"
	"github.com/aristath/folios/internal/providers/local"
	"github.com/aristath/folios/internal/screener"
	"github.com/aristath/folios/internal/storage"
)

type stubScreenerProvider struct {
	symbols []string
}

func (stubScreenerProvider) Name() string { return "stub" }

func (p stubScreenerProvider) Screen(_ context.Context, _ *domain.ScreenerConfig) (*domain.ScreenerResult, error) {
	return &domain.ScreenerResult{
		Provider:  "stub",
		Symbols:   p.symbols,
		FetchedAt: domain.UTCNow(),
	}, nil
}

func newTestRegistry(t *testing.T) *providers.Registry {
	t.Helper()
	registry := providers.NewRegistry()

	openai, err := providers.NewPlugin(providers.PluginSpec{
		ID:            domain.ProviderOpenAI,
		DisplayName:   "OpenAI",
		SupportsBatch: true,
		Serializer:    &local.JSONSerializer{ProviderID: domain.ProviderOpenAI},
		BatchExecutor: &local.BatchExecutor{ProviderID: domain.ProviderOpenAI},
		Parser:        providers.NewUnifiedResultParser(domain.ProviderOpenAI),
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(openai, false))

	gemini, err := providers.NewPlugin(providers.PluginSpec{
		ID:          domain.ProviderGemini,
		DisplayName: "Gemini CLI",
		SupportsCLI: true,
		CliExecutor: &local.CommandCliExecutor{ProviderID: domain.ProviderGemini, BaseCommand: []string{"true"}},
		Parser:      providers.NewUnifiedResultParser(domain.ProviderGemini),
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(gemini, false))

	return registry
}

func newTestOrchestrator(t *testing.T, store *storage.Store) (*Orchestrator, string) {
	t.Helper()
	artifactDir := t.TempDir()
	bus := events.NewBus(zerolog.Nop())
	orch := NewOrchestrator(store, newTestRegistry(t), nil, bus, artifactDir, zerolog.Nop())
	return orch, artifactDir
}

func TestOrchestrator_EnqueueRequest(t *testing.T) {
	store := newTestStore(t)
	orch, artifactDir := newTestOrchestrator(t, store)
	ctx := context.Background()
	strategy := saveActiveStrategy(t, store)

	t.Run("creates request, first task and audit entry", func(t *testing.T) {
		request, task, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: domain.ProviderOpenAI,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatePending, request.State)
		assert.Equal(t, domain.ModeBatch, request.Mode)
		assert.Equal(t, domain.RequestResearch, request.RequestType)
		assert.Equal(t, domain.PriorityNormal, request.Priority)

		prompt := request.Metadata[MetaStrategyPrompt]
		assert.True(t, strings.HasPrefix(prompt, strategy.Prompt))
		assert.Equal(t, strategy.Name, request.Metadata[MetaStrategyName])
		assert.Equal(t, OutputSchemaInvestmentAnalysis, request.Metadata[MetaOutputSchema])
		assert.Contains(t, request.Metadata[MetaScreener], "degraded")

		assert.Equal(t, 1, task.Sequence)
		assert.Equal(t, domain.StatePending, task.State)
		assert.Equal(t, domain.DefaultMaxAttempts, task.MaxAttempts)
		assert.Equal(t, filepath.Join(artifactDir, request.ID.String(), task.ID.String()), task.ArtifactPath)

		info, err := os.Stat(task.ArtifactPath)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		stored, err := store.Requests.Get(ctx, request.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, stored.State)

		entries, err := store.Log.ListByRequest(ctx, request.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "enqueued", entries[0].Attributes["event"])
	})

	t.Run("cli provider appends the structured schema", func(t *testing.T) {
		request, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: domain.ProviderGemini,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ModeCLI, request.Mode)
		assert.Contains(t, request.Metadata[MetaStrategyPrompt], "CLI execution requirements")
	})

	t.Run("caller metadata merged over the base entries", func(t *testing.T) {
		request, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: domain.ProviderOpenAI,
			Metadata: map[string]string{
				"trigger":        "weekly_research",
				MetaStrategyName: "overridden name",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "weekly_research", request.Metadata["trigger"])
		assert.Equal(t, "overridden name", request.Metadata[MetaStrategyName])
		assert.NotEmpty(t, request.Metadata[MetaStrategyPrompt])

		stored, err := store.Requests.Get(ctx, request.ID)
		require.NoError(t, err)
		assert.Equal(t, "weekly_research", stored.Metadata["trigger"])
	})

	t.Run("hybrid resolves to the provider default", func(t *testing.T) {
		request, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: domain.ProviderOpenAI,
			Mode:       domain.ModeHybrid,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ModeBatch, request.Mode)
	})

	t.Run("unsupported mode rejected", func(t *testing.T) {
		_, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: domain.ProviderOpenAI,
			Mode:       domain.ModeCLI,
		})
		var modeErr *providers.UnsupportedModeError
		require.ErrorAs(t, err, &modeErr)
	})

	t.Run("inactive strategy rejected", func(t *testing.T) {
		inactive := saveActiveStrategy(t, store)
		inactive.Status = domain.StrategyInactive
		require.NoError(t, store.Strategies.Save(ctx, inactive))

		_, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: inactive.ID,
			ProviderID: domain.ProviderOpenAI,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only active strategies")
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		_, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: strategy.ID,
			ProviderID: "nonexistent",
		})
		require.Error(t, err)
	})
}

func TestOrchestrator_EnqueueRequest_ScreenerRefresh(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus(zerolog.Nop())
	svc := screener.NewService(bus, zerolog.Nop())
	require.NoError(t, svc.Register(stubScreenerProvider{symbols: []string{"NVDA", "AMD"}}))
	orch := NewOrchestrator(store, newTestRegistry(t), svc, bus, t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	strategy := saveActiveStrategy(t, store)
	strategy.Screener = &domain.ScreenerConfig{Enabled: true, Provider: "stub", Limit: 10}
	require.NoError(t, store.Strategies.Save(ctx, strategy))

	request, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
		StrategyID: strategy.ID,
		ProviderID: domain.ProviderOpenAI,
	})
	require.NoError(t, err)
	assert.Equal(t, "refreshed: 2 candidates", request.Metadata[MetaScreener])
	assert.Contains(t, request.Metadata[MetaStrategyPrompt], "- NVDA")

	// The refreshed universe commits with the request, not just the prompt.
	stored, err := store.Strategies.Get(ctx, strategy.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AMD"}, stored.Tickers)

	t.Run("degraded refresh leaves the universe alone", func(t *testing.T) {
		untouched := saveActiveStrategy(t, store)
		untouched.Screener = &domain.ScreenerConfig{Enabled: true, Provider: "missing"}
		require.NoError(t, store.Strategies.Save(ctx, untouched))

		request, _, err := orch.EnqueueRequest(ctx, EnqueueParams{
			StrategyID: untouched.ID,
			ProviderID: domain.ProviderOpenAI,
		})
		require.NoError(t, err)
		assert.Contains(t, request.Metadata[MetaScreener], "degraded")

		stored, err := store.Strategies.Get(ctx, untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL"}, stored.Tickers)
	})
}
