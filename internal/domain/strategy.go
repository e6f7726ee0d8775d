package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskControls are the risk guardrails configured on a strategy. Percentages
// are expressed 0-100. Nil pointer fields mean "not configured".
type RiskControls struct {
	MaxPositionSize float64  `json:"max_position_size"`
	MaxExposure     float64  `json:"max_exposure"`
	StopLoss        *float64 `json:"stop_loss,omitempty"`
	MaxLeverage     *float64 `json:"max_leverage,omitempty"`
}

// ScreenerConfig describes the screener refresh a strategy wants before each
// research run. The screener service itself is an external collaborator.
type ScreenerConfig struct {
	Enabled     bool           `json:"enabled"`
	Provider    string         `json:"provider"`
	Filters     map[string]any `json:"filters,omitempty"`
	Limit       int            `json:"limit"`
	UniverseCap int            `json:"universe_cap"`
}

// Strategy is a research strategy definition: the base prompt, the current
// ticker universe and the scheduling knobs used by the coordinator.
type Strategy struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Prompt        string          `json:"prompt"`
	Tickers       []string        `json:"tickers"`
	Status        StrategyStatus  `json:"status"`
	RiskControls  *RiskControls   `json:"risk_controls,omitempty"`
	Screener      *ScreenerConfig `json:"screener,omitempty"`
	ResearchDay   int             `json:"research_day"`   // 1-5 (Monday-Friday); 0 lets the balancer pick
	RuntimeWeight float64         `json:"runtime_weight"` // relative cost used by the weekday balancer
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NormalizeTickers upper-cases and trims the ticker list, dropping blanks.
func (s *Strategy) NormalizeTickers() {
	normalized := make([]string, 0, len(s.Tickers))
	for _, ticker := range s.Tickers {
		trimmed := strings.ToUpper(strings.TrimSpace(ticker))
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	s.Tickers = normalized
}

// Weight returns the strategy's runtime weight, defaulting to 1.0 when unset.
func (s *Strategy) Weight() float64 {
	if s.RuntimeWeight <= 0 {
		return 1.0
	}
	return s.RuntimeWeight
}

// StrategySchedule is the weekly research assignment for one strategy.
// One row per strategy, upserted by the coordinator.
type StrategySchedule struct {
	StrategyID     uuid.UUID  `json:"strategy_id"`
	Weekday        int        `json:"weekday"` // 1-5 (Monday-Friday)
	NextResearchAt *time.Time `json:"next_research_at,omitempty"`
	LastResearchAt *time.Time `json:"last_research_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ScreenerResult is the normalized output of a screener provider run.
type ScreenerResult struct {
	Provider  string         `json:"provider"`
	Symbols   []string       `json:"symbols"`
	Filters   map[string]any `json:"filters,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
