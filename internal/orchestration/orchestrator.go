// Package orchestration coordinates research requests end to end: enqueue,
// lifecycle transitions, weekly scheduling and task execution.
package orchestration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/providers"
	"github.com/aristath/folios/internal/screener"
	"github.com/aristath/folios/internal/storage"
)

// Metadata keys stamped on every enqueued request.
const (
	MetaStrategyPrompt = "strategy_prompt"
	MetaStrategyName   = "strategy_name"
	MetaProvider       = "provider"
	MetaRequestType    = "request_type"
	MetaOutputSchema   = "output_schema"
	MetaScreener       = "screener_status"
)

// OutputSchemaInvestmentAnalysis identifies the structured result schema
// research prompts ask providers to follow.
const OutputSchemaInvestmentAnalysis = "investment_analysis_v1"

// EnqueueParams describes one research request to enqueue. Metadata entries
// are merged over the generated base metadata, so callers can annotate or
// override.
type EnqueueParams struct {
	StrategyID   uuid.UUID
	ProviderID   domain.ProviderID
	Mode         domain.ExecutionMode
	RequestType  domain.RequestType
	Priority     domain.RequestPriority
	ScheduledFor *time.Time
	Metadata     map[string]string
}

// Orchestrator builds and persists research requests. Enqueue is atomic:
// either the request, its first task and the audit entry all commit, or
// nothing does.
type Orchestrator struct {
	store       *storage.Store
	registry    *providers.Registry
	screener    *screener.Service
	bus         *events.Bus
	artifactDir string
	log         zerolog.Logger
}

// NewOrchestrator creates a new orchestrator. artifactDir is the root under
// which per-task artifact directories are created.
func NewOrchestrator(store *storage.Store, registry *providers.Registry, scr *screener.Service, bus *events.Bus, artifactDir string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		registry:    registry,
		screener:    scr,
		bus:         bus,
		artifactDir: artifactDir,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// EnqueueRequest validates the provider/mode pair, optionally refreshes the
// strategy's screener universe, builds the provider-ready prompt and writes
// the request with its first task in one transaction. A successful screener
// refresh replaces the strategy's tickers and the updated strategy commits
// in that same transaction. The returned request is PENDING.
func (o *Orchestrator) EnqueueRequest(ctx context.Context, params EnqueueParams) (*domain.Request, *domain.ExecutionTask, error) {
	strategy, err := o.store.Strategies.Get(ctx, params.StrategyID)
	if err != nil {
		return nil, nil, err
	}
	if strategy.Status != domain.StrategyActive {
		return nil, nil, fmt.Errorf("strategy %s is %s, only active strategies can be enqueued", strategy.ID, strategy.Status)
	}

	plugin, err := o.registry.Get(params.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	mode := params.Mode
	if mode == "" || mode == domain.ModeHybrid {
		mode = plugin.DefaultMode()
	}
	if err := plugin.EnsureMode(mode); err != nil {
		return nil, nil, err
	}

	outcome := o.refreshScreener(ctx, strategy)
	refreshed := outcome.Result != nil && len(outcome.Result.Symbols) > 0
	if refreshed {
		strategy.Tickers = outcome.Result.Symbols
	}
	prompt := BuildResearchPrompt(strategy, mode, "", outcome.Candidates())

	requestType := params.RequestType
	if requestType == "" {
		requestType = domain.RequestResearch
	}
	priority := params.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	metadata := map[string]string{
		MetaStrategyPrompt: prompt,
		MetaStrategyName:   strategy.Name,
		MetaProvider:       string(params.ProviderID),
		MetaRequestType:    string(requestType),
		MetaOutputSchema:   OutputSchemaInvestmentAnalysis,
	}
	for key, value := range params.Metadata {
		metadata[key] = value
	}
	if outcome.Degraded {
		metadata[MetaScreener] = "degraded: " + outcome.Reason
	} else if outcome.Result != nil {
		metadata[MetaScreener] = fmt.Sprintf("refreshed: %d candidates", len(outcome.Result.Symbols))
	}

	now := domain.UTCNow()
	request := &domain.Request{
		ID:           uuid.New(),
		StrategyID:   strategy.ID,
		ProviderID:   params.ProviderID,
		Mode:         mode,
		RequestType:  requestType,
		Priority:     priority,
		State:        domain.StatePending,
		Metadata:     metadata,
		ScheduledFor: domain.EnsureUTCPtr(params.ScheduledFor),
		CreatedAt:    now,
	}
	task := &domain.ExecutionTask{
		ID:           uuid.New(),
		RequestID:    request.ID,
		Sequence:     1,
		Mode:         mode,
		State:        domain.StatePending,
		ScheduledFor: request.ScheduledFor,
		Attempt:      1,
		MaxAttempts:  domain.DefaultMaxAttempts,
		Metadata:     map[string]string{},
		CreatedAt:    now,
	}
	task.ArtifactPath = filepath.Join(o.artifactDir, request.ID.String(), task.ID.String())

	err = o.store.WithTx(ctx, func(tx *storage.TxStore) error {
		if refreshed {
			if err := tx.Strategies.Save(ctx, strategy); err != nil {
				return err
			}
		}
		if err := tx.Requests.Create(ctx, request); err != nil {
			return err
		}
		if err := tx.Tasks.Create(ctx, task); err != nil {
			return err
		}
		id := task.ID
		return tx.Log.Append(ctx, &domain.RequestLogEntry{
			RequestID:     request.ID,
			TaskID:        &id,
			PreviousState: domain.StatePending,
			NextState:     domain.StatePending,
			Attributes:    map[string]string{"event": "enqueued"},
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("enqueue request: %w", err)
	}

	if err := os.MkdirAll(task.ArtifactPath, 0o755); err != nil {
		o.log.Warn().Err(err).Str("path", task.ArtifactPath).Msg("Failed to create artifact directory")
	}

	o.log.Info().
		Str("request_id", request.ID.String()).
		Str("strategy", strategy.Name).
		Str("provider", string(params.ProviderID)).
		Str("mode", string(mode)).
		Msg("Request enqueued")
	o.bus.Emit(events.RequestEnqueued, "orchestrator", map[string]any{
		"request_id":  request.ID.String(),
		"strategy_id": strategy.ID.String(),
		"provider":    string(params.ProviderID),
		"mode":        string(mode),
	})
	return request, task, nil
}

// refreshScreener runs the strategy's screener when configured. Failures
// degrade the outcome and never block the enqueue.
func (o *Orchestrator) refreshScreener(ctx context.Context, strategy *domain.Strategy) screener.Outcome {
	if o.screener == nil {
		return screener.Outcome{Degraded: true, Reason: "screener service not configured"}
	}
	return o.screener.Refresh(ctx, strategy)
}
