package scheduling

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
)

func scheduleOn(weekday int) domain.StrategySchedule {
	return domain.StrategySchedule{StrategyID: uuid.New(), Weekday: weekday}
}

func TestWeekdayLoadBalancer_ChooseDay(t *testing.T) {
	balancer := NewWeekdayLoadBalancer(0)

	t.Run("empty week picks monday", func(t *testing.T) {
		day, err := balancer.ChooseDay(nil, nil, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 1, day)
	})

	t.Run("picks lightest day", func(t *testing.T) {
		heavy := scheduleOn(1)
		light := scheduleOn(2)
		schedules := []domain.StrategySchedule{heavy, light, scheduleOn(3), scheduleOn(4), scheduleOn(5)}
		weights := map[uuid.UUID]float64{
			heavy.StrategyID: 2.0,
			light.StrategyID: 0.5,
		}

		day, err := balancer.ChooseDay(schedules, weights, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 2, day)
	})

	t.Run("ties break toward earliest weekday", func(t *testing.T) {
		schedules := []domain.StrategySchedule{scheduleOn(1)}

		day, err := balancer.ChooseDay(schedules, nil, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 2, day)
	})

	t.Run("missing weight falls back to default", func(t *testing.T) {
		a := scheduleOn(1)
		schedules := []domain.StrategySchedule{a, scheduleOn(2), scheduleOn(3), scheduleOn(4), scheduleOn(5)}
		weights := map[uuid.UUID]float64{a.StrategyID: 0.1}

		day, err := balancer.ChooseDay(schedules, weights, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 1, day)
	})

	t.Run("non-positive weight rejected", func(t *testing.T) {
		_, err := balancer.ChooseDay(nil, nil, 0)
		require.Error(t, err)

		_, err = balancer.ChooseDay(nil, nil, -1.5)
		require.Error(t, err)
	})
}

func TestWeekdayLoadBalancer_Summary(t *testing.T) {
	balancer := NewWeekdayLoadBalancer(1.0)
	monday := scheduleOn(1)
	tuesday := scheduleOn(2)
	schedules := []domain.StrategySchedule{monday, tuesday}
	weights := map[uuid.UUID]float64{
		monday.StrategyID:  3.0,
		tuesday.StrategyID: 1.0,
	}

	summary := balancer.Summary(schedules, weights)

	assert.Equal(t, 3.0, summary.Totals[1])
	assert.Equal(t, 1.0, summary.Totals[2])
	assert.Equal(t, 0.0, summary.Totals[5])
	assert.Equal(t, 3.0, summary.Spread)
	assert.InDelta(t, 0.8, summary.Mean, 1e-9)
	assert.Greater(t, summary.StdDev, 0.0)
}
