package orchestration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/scheduling"
	"github.com/aristath/folios/internal/storage"
)

// StrategyCoordinator assigns each strategy a weekly research weekday and
// computes upcoming execution windows against the market calendar.
type StrategyCoordinator struct {
	store    *storage.Store
	balancer *scheduling.WeekdayLoadBalancer
	calendar *scheduling.HolidayCalendar
	bus      *events.Bus
	log      zerolog.Logger
}

// NewStrategyCoordinator creates a new coordinator.
func NewStrategyCoordinator(store *storage.Store, balancer *scheduling.WeekdayLoadBalancer, calendar *scheduling.HolidayCalendar, bus *events.Bus, log zerolog.Logger) *StrategyCoordinator {
	return &StrategyCoordinator{
		store:    store,
		balancer: balancer,
		calendar: calendar,
		bus:      bus,
		log:      log.With().Str("component", "coordinator").Logger(),
	}
}

// EnsureSchedule returns the strategy's weekly schedule, creating one when
// missing. Precedence: an existing schedule row wins; then the strategy's
// configured research day; otherwise the load balancer picks the least
// loaded weekday.
func (c *StrategyCoordinator) EnsureSchedule(ctx context.Context, strategy *domain.Strategy) (*domain.StrategySchedule, error) {
	existing, err := c.store.Schedules.Get(ctx, strategy.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	weekday := strategy.ResearchDay
	if weekday < 1 || weekday > 5 {
		weekday, err = c.chooseDay(ctx, strategy)
		if err != nil {
			return nil, err
		}
	}

	nextAt := c.NextResearchTime(domain.UTCNow(), weekday)
	schedule := &domain.StrategySchedule{
		StrategyID:     strategy.ID,
		Weekday:        weekday,
		NextResearchAt: &nextAt,
	}
	if err := c.store.Schedules.Upsert(ctx, schedule); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("strategy_id", strategy.ID.String()).
		Int("weekday", weekday).
		Time("next_research_at", nextAt).
		Msg("Schedule assigned")
	c.bus.Emit(events.ScheduleAssigned, "coordinator", map[string]any{
		"strategy_id": strategy.ID.String(),
		"weekday":     weekday,
	})
	return schedule, nil
}

// chooseDay runs the balancer over the current assignments and weights.
func (c *StrategyCoordinator) chooseDay(ctx context.Context, strategy *domain.Strategy) (int, error) {
	rows, err := c.store.Schedules.List(ctx)
	if err != nil {
		return 0, err
	}
	schedules := make([]domain.StrategySchedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, *row)
	}
	strategies, err := c.store.Strategies.List(ctx)
	if err != nil {
		return 0, err
	}
	weights := make(map[uuid.UUID]float64, len(strategies))
	for _, s := range strategies {
		weights[s.ID] = s.Weight()
	}
	return c.balancer.ChooseDay(schedules, weights, strategy.Weight())
}

// NextResearchTime returns the next market-open instant falling on the given
// weekday (1-5, Monday-Friday), strictly after from, skipping holidays.
func (c *StrategyCoordinator) NextResearchTime(from time.Time, weekday int) time.Time {
	from = domain.EnsureUTC(from)
	target := time.Weekday(weekday) // 1-5 maps to Monday-Friday
	day := from
	for i := 0; i < 21; i++ {
		open := c.calendar.OpenTimeOn(day)
		if day.Weekday() == target && c.calendar.IsOpenDay(day) && open.After(from) {
			return open
		}
		day = day.AddDate(0, 0, 1)
	}
	// Only reachable when the calendar marks weeks of consecutive holidays.
	return c.calendar.NextOpen(from)
}

// MondayExecutionWindow returns the next Monday market open after from,
// skipping holidays.
func (c *StrategyCoordinator) MondayExecutionWindow(from time.Time) time.Time {
	return c.NextResearchTime(from, 1)
}

// MarkResearched records a completed research run and rolls the schedule's
// next research time forward one week.
func (c *StrategyCoordinator) MarkResearched(ctx context.Context, schedule *domain.StrategySchedule, at time.Time) error {
	at = domain.EnsureUTC(at)
	next := c.NextResearchTime(at, schedule.Weekday)
	schedule.LastResearchAt = &at
	schedule.NextResearchAt = &next
	return c.store.Schedules.Upsert(ctx, schedule)
}
