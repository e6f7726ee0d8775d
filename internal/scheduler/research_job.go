package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/orchestration"
	"github.com/aristath/folios/internal/scheduling"
	"github.com/aristath/folios/internal/storage"
)

// WeeklyResearchJob runs the day's research: every active strategy assigned
// to today's weekday gets a request enqueued and driven to completion.
// Closed market days are skipped entirely.
type WeeklyResearchJob struct {
	store       *storage.Store
	coordinator *orchestration.StrategyCoordinator
	orch        *orchestration.Orchestrator
	driver      *orchestration.TaskDriver
	calendar    *scheduling.HolidayCalendar
	provider    domain.ProviderID
	mode        domain.ExecutionMode
	timeout     time.Duration
	log         zerolog.Logger
}

// NewWeeklyResearchJob creates the weekly research job. provider and mode
// select the plugin used for scheduled runs.
func NewWeeklyResearchJob(store *storage.Store, coordinator *orchestration.StrategyCoordinator, orch *orchestration.Orchestrator, driver *orchestration.TaskDriver, calendar *scheduling.HolidayCalendar, provider domain.ProviderID, mode domain.ExecutionMode, log zerolog.Logger) *WeeklyResearchJob {
	return &WeeklyResearchJob{
		store:       store,
		coordinator: coordinator,
		orch:        orch,
		driver:      driver,
		calendar:    calendar,
		provider:    provider,
		mode:        mode,
		timeout:     4 * time.Hour,
		log:         log.With().Str("job", "weekly_research").Logger(),
	}
}

// Name implements Job.
func (j *WeeklyResearchJob) Name() string { return "weekly_research" }

// Run implements Job.
func (j *WeeklyResearchJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	now := domain.UTCNow()
	if !j.calendar.IsOpenDay(now) {
		j.log.Info().Time("date", now).Msg("Market closed, skipping research run")
		return nil
	}

	weekday := int(now.Weekday())
	if weekday < 1 || weekday > 5 {
		return nil
	}

	strategies, err := j.store.Strategies.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active strategies: %w", err)
	}

	ran := 0
	var firstErr error
	for _, strategy := range strategies {
		schedule, err := j.coordinator.EnsureSchedule(ctx, strategy)
		if err != nil {
			j.log.Error().Err(err).Str("strategy", strategy.Name).Msg("Failed to ensure schedule")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if schedule.Weekday != weekday {
			continue
		}

		if err := j.runStrategy(ctx, strategy, schedule); err != nil {
			j.log.Error().Err(err).Str("strategy", strategy.Name).Msg("Research run failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ran++
	}

	j.log.Info().Int("strategies", ran).Int("weekday", weekday).Msg("Research run complete")
	return firstErr
}

func (j *WeeklyResearchJob) runStrategy(ctx context.Context, strategy *domain.Strategy, schedule *domain.StrategySchedule) error {
	_, task, err := j.orch.EnqueueRequest(ctx, orchestration.EnqueueParams{
		StrategyID: strategy.ID,
		ProviderID: j.provider,
		Mode:       j.mode,
	})
	if err != nil {
		return err
	}
	if err := j.driver.Drive(ctx, task.ID); err != nil {
		return err
	}
	return j.coordinator.MarkResearched(ctx, schedule, domain.UTCNow())
}
