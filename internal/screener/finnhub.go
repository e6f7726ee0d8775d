// Package screener refreshes strategy ticker universes through external
// stock screener providers. A failed refresh degrades the outcome instead of
// failing the caller, so research can proceed on the stale universe.
package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folios/internal/domain"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient is a screener provider backed by the Finnhub stock API.
type FinnhubClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewFinnhubClient creates a new Finnhub screener client.
func NewFinnhubClient(apiKey string, log zerolog.Logger) *FinnhubClient {
	return &FinnhubClient{
		baseURL: finnhubBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "finnhub").Logger(),
	}
}

// Name returns the provider name used in screener configs.
func (c *FinnhubClient) Name() string { return "finnhub" }

type finnhubSymbol struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	MIC    string `json:"mic"`
}

// Screen fetches the symbol universe and applies the config's filters.
// Finnhub's symbol endpoint has no server-side screening, so filters for
// exchange and security type are applied client-side.
func (c *FinnhubClient) Screen(ctx context.Context, cfg *domain.ScreenerConfig) (*domain.ScreenerResult, error) {
	exchange := "US"
	if v, ok := cfg.Filters["exchange"].(string); ok && v != "" {
		exchange = v
	}

	endpoint := fmt.Sprintf("%s/stock/symbol?exchange=%s&token=%s",
		c.baseURL, url.QueryEscape(exchange), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build screener request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screener request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("screener returned status %d: %s", resp.StatusCode, string(body))
	}

	var symbols []finnhubSymbol
	if err := json.NewDecoder(resp.Body).Decode(&symbols); err != nil {
		return nil, fmt.Errorf("decode screener response: %w", err)
	}

	securityType := "Common Stock"
	if v, ok := cfg.Filters["security_type"].(string); ok && v != "" {
		securityType = v
	}

	limit := cfg.Limit
	if limit <= 0 || (cfg.UniverseCap > 0 && limit > cfg.UniverseCap) {
		limit = cfg.UniverseCap
	}

	var picked []string
	for _, s := range symbols {
		if s.Type != securityType {
			continue
		}
		picked = append(picked, s.Symbol)
		if limit > 0 && len(picked) >= limit {
			break
		}
	}

	c.log.Info().
		Str("exchange", exchange).
		Int("universe", len(symbols)).
		Int("selected", len(picked)).
		Msg("Screener refresh complete")

	return &domain.ScreenerResult{
		Provider:  c.Name(),
		Symbols:   picked,
		Filters:   cfg.Filters,
		FetchedAt: domain.UTCNow(),
	}, nil
}
