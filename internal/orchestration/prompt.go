package orchestration

import (
	"fmt"
	"strings"

	"github.com/aristath/folios/internal/domain"
)

// recencyBlock steers providers toward fresh data. Appended to every
// research prompt.
const recencyBlock = "\n\nRecency requirements (must follow):\n" +
	"- CRITICAL: Determine the current date first, then prioritize data, filings, news, and price " +
	"action from the past 3 months. Focus especially on the most recent 30 days.\n" +
	"- If your toolset supports web search or retrieval, run a fresh search before forming " +
	"conclusions and cite the recent sources consulted with their dates.\n" +
	"- Clearly state the date range you analyzed (e.g., 'Analysis based on data from [start date] " +
	"to [end date]').\n" +
	"- Historical trends older than 6 months should be treated as context only; never cite them as " +
	"current catalysts unless corroborated by recent data from the past 3 months.\n"

const complianceBlock = "\n\nCompliance constraints (must follow):\n" +
	"- Only recommend currently listed, tradeable U.S. stock tickers on NYSE, Nasdaq, or " +
	"NYSE American.\n" +
	"- Exclude OTC/pink sheet and delisted symbols.\n" +
	"- Do not use placeholder or generic tickers (e.g., ABC, TEST).\n" +
	"- Company name must correctly correspond to the ticker; do not mismatch.\n" +
	"- If no valid symbols qualify, return an empty recommendations array (\"recommendations\": [])."

// cliStructuredSchema is appended only for CLI executions, where no
// server-side response schema can be enforced.
const cliStructuredSchema = "\n\nCLI execution requirements (must follow):\n" +
	"- Run the Stock Screener API available in your toolset first to refresh candidate " +
	"tickers. Document the filters used and key results in the analysis.\n" +
	"- Invoke web-search or retrieval tools before final recommendations and cite the " +
	"sources consulted.\n" +
	"- Return the final output as JSON matching this structure exactly (no extra prose):\n" +
	"  {\n" +
	"    \"analysis_summary\": string,\n" +
	"    \"overall_sentiment\": one of [\"bullish\", \"bearish\", \"neutral\"],\n" +
	"    \"overall_confidence\": integer 0-100,\n" +
	"    \"recommendations\": [\n" +
	"      {\n" +
	"        \"ticker\": string,\n" +
	"        \"company_name\": string,\n" +
	"        \"action\": one of [\"BUY\", \"SELL\", \"SELL_SHORT\", \"HOLD\"],\n" +
	"        \"current_price\": number,\n" +
	"        \"target_price\": number,\n" +
	"        \"confidence\": integer 0-100,\n" +
	"        \"investment_thesis\": string (2-3 sentences),\n" +
	"        \"key_metrics\": { optional numeric metrics like \"pe_ratio\", \"roe\", \"debt_to_equity\" },\n" +
	"        \"position_size_pct\": number (0-100),\n" +
	"        \"risk_factors\": [string],\n" +
	"        \"catalysts\": [string]\n" +
	"      }, ...\n" +
	"    ],\n" +
	"    \"market_context\": { optional fields \"market_regime\", \"key_themes\", \"macro_risks\" },\n" +
	"    \"portfolio_considerations\": { optional fields \"total_allocation\", " +
	"\"diversification_notes\", \"rebalancing_guidance\" }\n" +
	"  }\n" +
	"- IMPORTANT: Use \"SELL_SHORT\" action for short selling positions (not \"SELL\").\n" +
	"- If information is unavailable, use nulls or empty arrays; never invent data or " +
	"change the schema.\n"

func riskConstraintsBlock(rc *domain.RiskControls) string {
	if rc == nil {
		return "\n\nRisk constraints (must follow):\n" +
			"- Default to conservative allocations (<=10% per position, <=95% total " +
			"exposure) when limits are unspecified.\n" +
			"- If the strategy is already near these limits, propose SELL or reduced " +
			"allocations to free capital before adding new positions."
	}

	var lines []string
	if rc.MaxExposure > 0 {
		lines = append(lines, fmt.Sprintf(
			"- Keep total BUY allocations within %.1f%% of portfolio capital.", rc.MaxExposure))
	}
	if rc.MaxPositionSize > 0 {
		lines = append(lines, fmt.Sprintf(
			"- Any individual position must stay at or below %.1f%% allocation.", rc.MaxPositionSize))
	}
	if rc.StopLoss != nil {
		lines = append(lines, fmt.Sprintf(
			"- Respect stop loss thresholds at %.1f%% drawdown.", *rc.StopLoss))
	}
	if rc.MaxLeverage != nil {
		lines = append(lines, fmt.Sprintf(
			"- Never exceed %.1fx leverage when sizing trades.", *rc.MaxLeverage))
		lines = append(lines,
			"- If the strategy is already near these limits, propose SELL or reduced "+
				"allocations to free capital before adding new positions.")
	}
	return "\n\nRisk constraints (must follow):\n" + strings.Join(lines, "\n")
}

func candidatesBlock(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nScreened ticker candidates (latest refresh):\n")
	for i, ticker := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + ticker)
	}
	return b.String()
}

// BuildResearchPrompt composes the full provider-ready prompt for one
// strategy and execution mode. Candidates come from the latest screener
// refresh and may be empty.
func BuildResearchPrompt(strategy *domain.Strategy, mode domain.ExecutionMode, marketContext string, candidates []string) string {
	basePrompt := strings.TrimSpace(strategy.Prompt)
	if trimmed := strings.TrimSpace(marketContext); trimmed != "" {
		basePrompt = trimmed + "\n\n" + basePrompt
	}

	prompt := basePrompt +
		recencyBlock +
		complianceBlock +
		riskConstraintsBlock(strategy.RiskControls) +
		candidatesBlock(candidates)

	if mode == domain.ModeCLI {
		prompt += cliStructuredSchema
	}
	return prompt
}
