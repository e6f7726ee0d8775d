// Package scheduling spreads recurring strategy research across the trading
// week and answers market-open questions against a holiday calendar.
package scheduling

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/folios/internal/domain"
)

// WeekdayLoadBalancer assigns strategies to weekdays so cumulative runtime
// weights stay roughly level. Greedy, not globally optimal: strategy counts
// are small and weights roughly uniform, so picking the lightest day is good
// enough.
type WeekdayLoadBalancer struct {
	Weekdays      []int   // defaults to Monday..Friday (1..5)
	DefaultWeight float64 // weight used for strategies without one
	// Tolerance is the maximum acceptable spread between the lightest and
	// heaviest day. It is recorded but does not yet trigger rebalancing;
	// callers can inspect LoadSummary to act on imbalance themselves.
	Tolerance float64
}

// NewWeekdayLoadBalancer creates a balancer over the five trading weekdays.
func NewWeekdayLoadBalancer(tolerance float64) *WeekdayLoadBalancer {
	return &WeekdayLoadBalancer{
		Weekdays:      []int{1, 2, 3, 4, 5},
		DefaultWeight: 1.0,
		Tolerance:     tolerance,
	}
}

// ChooseDay returns the weekday with the smallest cumulative weight, ties
// broken by weekday order. The new strategy's weight must be positive.
func (b *WeekdayLoadBalancer) ChooseDay(
	schedules []domain.StrategySchedule,
	weights map[uuid.UUID]float64,
	newStrategyWeight float64,
) (int, error) {
	if newStrategyWeight <= 0 {
		return 0, fmt.Errorf("strategy weight must be positive, got %v", newStrategyWeight)
	}

	weekdays := b.weekdays()
	best := weekdays[0]
	bestLoad := b.totalWeightForDay(schedules, weights, best)
	for _, weekday := range weekdays[1:] {
		load := b.totalWeightForDay(schedules, weights, weekday)
		if load < bestLoad {
			best = weekday
			bestLoad = load
		}
	}
	return best, nil
}

// LoadSummary describes the current per-day weight distribution.
type LoadSummary struct {
	Totals map[int]float64
	Mean   float64
	StdDev float64
	Spread float64 // heaviest minus lightest day
}

// Summary computes per-day totals plus the distribution statistics callers
// need to decide whether a rebalance is worth triggering.
func (b *WeekdayLoadBalancer) Summary(
	schedules []domain.StrategySchedule,
	weights map[uuid.UUID]float64,
) LoadSummary {
	weekdays := b.weekdays()
	totals := make(map[int]float64, len(weekdays))
	loads := make([]float64, 0, len(weekdays))
	for _, weekday := range weekdays {
		load := b.totalWeightForDay(schedules, weights, weekday)
		totals[weekday] = load
		loads = append(loads, load)
	}

	min, max := loads[0], loads[0]
	for _, load := range loads[1:] {
		if load < min {
			min = load
		}
		if load > max {
			max = load
		}
	}

	mean, std := stat.MeanStdDev(loads, nil)
	return LoadSummary{
		Totals: totals,
		Mean:   mean,
		StdDev: std,
		Spread: max - min,
	}
}

func (b *WeekdayLoadBalancer) weekdays() []int {
	if len(b.Weekdays) == 0 {
		return []int{1, 2, 3, 4, 5}
	}
	return b.Weekdays
}

func (b *WeekdayLoadBalancer) totalWeightForDay(
	schedules []domain.StrategySchedule,
	weights map[uuid.UUID]float64,
	weekday int,
) float64 {
	defaultWeight := b.DefaultWeight
	if defaultWeight <= 0 {
		defaultWeight = 1.0
	}
	total := 0.0
	for _, schedule := range schedules {
		if schedule.Weekday != weekday {
			continue
		}
		weight, ok := weights[schedule.StrategyID]
		if !ok || weight <= 0 {
			weight = defaultWeight
		}
		total += weight
	}
	return total
}
