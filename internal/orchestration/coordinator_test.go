package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/scheduling"
	"github.com/aristath/folios/internal/storage"
)

func newTestCoordinator(t *testing.T, store *storage.Store, holidays []time.Time) *StrategyCoordinator {
	t.Helper()
	balancer := scheduling.NewWeekdayLoadBalancer(0)
	calendar := scheduling.NewHolidayCalendar(holidays)
	bus := events.NewBus(zerolog.Nop())
	return NewStrategyCoordinator(store, balancer, calendar, bus, zerolog.Nop())
}

func TestStrategyCoordinator_EnsureSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("configured research day wins", func(t *testing.T) {
		store := newTestStore(t)
		coordinator := newTestCoordinator(t, store, nil)
		strategy := saveActiveStrategy(t, store)
		strategy.ResearchDay = 3
		require.NoError(t, store.Strategies.Save(ctx, strategy))

		schedule, err := coordinator.EnsureSchedule(ctx, strategy)
		require.NoError(t, err)
		assert.Equal(t, 3, schedule.Weekday)
		require.NotNil(t, schedule.NextResearchAt)
		assert.Equal(t, time.Wednesday, schedule.NextResearchAt.Weekday())
	})

	t.Run("existing schedule row wins over configuration", func(t *testing.T) {
		store := newTestStore(t)
		coordinator := newTestCoordinator(t, store, nil)
		strategy := saveActiveStrategy(t, store)
		strategy.ResearchDay = 3
		require.NoError(t, store.Strategies.Save(ctx, strategy))
		require.NoError(t, store.Schedules.Upsert(ctx, &domain.StrategySchedule{
			StrategyID: strategy.ID,
			Weekday:    5,
		}))

		schedule, err := coordinator.EnsureSchedule(ctx, strategy)
		require.NoError(t, err)
		assert.Equal(t, 5, schedule.Weekday)
	})

	t.Run("balancer assigns unconfigured strategies", func(t *testing.T) {
		store := newTestStore(t)
		coordinator := newTestCoordinator(t, store, nil)

		seen := map[int]int{}
		for i := 0; i < 5; i++ {
			strategy := saveActiveStrategy(t, store)
			strategy.ResearchDay = 0
			require.NoError(t, store.Strategies.Save(ctx, strategy))

			schedule, err := coordinator.EnsureSchedule(ctx, strategy)
			require.NoError(t, err)
			seen[schedule.Weekday]++
		}

		// Five equal-weight strategies spread one per weekday.
		for weekday := 1; weekday <= 5; weekday++ {
			assert.Equal(t, 1, seen[weekday], "weekday %d", weekday)
		}
	})
}

func TestStrategyCoordinator_NextResearchTime(t *testing.T) {
	store := newTestStore(t)
	july4 := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	coordinator := newTestCoordinator(t, store, []time.Time{july4})

	t.Run("same weekday later in the week", func(t *testing.T) {
		from := time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC) // Monday before open
		next := coordinator.NextResearchTime(from, 1)
		assert.Equal(t, time.Date(2025, 6, 30, 9, 30, 0, 0, time.UTC), next)
	})

	t.Run("after open rolls to next week", func(t *testing.T) {
		from := time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC)
		next := coordinator.NextResearchTime(from, 1)
		assert.Equal(t, time.Date(2025, 7, 7, 9, 30, 0, 0, time.UTC), next)
	})

	t.Run("holiday pushes to the following week", func(t *testing.T) {
		from := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
		next := coordinator.NextResearchTime(from, 5)
		assert.Equal(t, time.Date(2025, 7, 11, 9, 30, 0, 0, time.UTC), next)
	})

	t.Run("monday execution window", func(t *testing.T) {
		from := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC) // Wednesday
		window := coordinator.MondayExecutionWindow(from)
		assert.Equal(t, time.Date(2025, 7, 7, 9, 30, 0, 0, time.UTC), window)
	})
}

func TestStrategyCoordinator_MarkResearched(t *testing.T) {
	store := newTestStore(t)
	coordinator := newTestCoordinator(t, store, nil)
	ctx := context.Background()
	strategy := saveActiveStrategy(t, store)

	schedule := &domain.StrategySchedule{StrategyID: strategy.ID, Weekday: 2}
	require.NoError(t, store.Schedules.Upsert(ctx, schedule))

	ranAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC) // Tuesday after open
	require.NoError(t, coordinator.MarkResearched(ctx, schedule, ranAt))

	got, err := store.Schedules.Get(ctx, strategy.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastResearchAt)
	assert.Equal(t, ranAt.Unix(), got.LastResearchAt.Unix())
	require.NotNil(t, got.NextResearchAt)
	assert.Equal(t, time.Date(2025, 7, 8, 9, 30, 0, 0, time.UTC).Unix(), got.NextResearchAt.Unix())
}
