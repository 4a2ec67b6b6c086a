package explain

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	alertDomain "market-alert-agent/internal/domain/alert"
)

// ChatCompleter 封裝 LLM 對話呼叫；任何錯誤都會退回模板說明。
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Explanation 為產生的人類可讀說明。
type Explanation struct {
	Text    string
	FromLLM bool
}

// Explainer 將警報決策轉為專業白話說明，LLM 不可用時以模板代替。
type Explainer struct {
	llm ChatCompleter
}

// New 建立說明產生器；llm 傳入 nil 時一律使用模板。
func New(llm ChatCompleter) *Explainer {
	return &Explainer{llm: llm}
}

const systemPrompt = `You are a financial market analyst AI that explains trading alerts to portfolio managers and risk teams.

Your explanations should:
- Be clear and concise (2-3 sentences)
- Use professional financial terminology
- Explain the reasoning, not just the numbers
- Never give investment advice or recommendations
- Focus on what the data suggests, not predictions`

// Generate 產生說明文字。非警報決策回傳固定的市場穩定摘要，不呼叫 LLM。
func (e *Explainer) Generate(ctx context.Context, d alertDomain.Decision) Explanation {
	if !d.ShouldAlert {
		return Explanation{Text: stableSummary(d.Metrics)}
	}

	if e.llm != nil {
		text, err := e.llm.Complete(ctx, systemPrompt, buildPrompt(d))
		if err == nil && strings.TrimSpace(text) != "" {
			return Explanation{Text: strings.TrimSpace(text), FromLLM: true}
		}
		if err != nil {
			log.Printf("[Explainer] LLM call failed, using template fallback: %v", err)
		}
	}

	return Explanation{Text: templateFor(d)}
}

func buildPrompt(d alertDomain.Decision) string {
	m := d.Metrics
	return fmt.Sprintf(`Explain the following market alert in simple, professional financial terms.

Alert Type: %s
Confidence: %s
Reason: %s

Market Data:
- Last Closing Price: $%.2f
- Predicted Close: $%.2f
- Percentage Change: %+.2f%%
- Current Volatility: %.4f
- Trend: %s

Instructions:
1. Explain why this alert was triggered in 2-3 sentences
2. Provide context about what this means for market participants
3. Do NOT give investment advice

Write a clear, concise explanation:`,
		d.Type, d.Confidence, d.Reason,
		m.LastClose, m.PredictedClose, m.PercentChange, m.Volatility, m.Trend)
}

// templateFor 為各警報類型的固定說明，作為 LLM 失敗時的保底輸出。
func templateFor(d alertDomain.Decision) string {
	m := d.Metrics
	switch d.Type {
	case alertDomain.AlertPriceDrop:
		return fmt.Sprintf(
			"The forecast indicates a significant %.1f%% price decline from $%.2f to $%.2f. "+
				"With current volatility at %.4f, this movement exceeds normal fluctuations "+
				"and warrants attention from risk management teams.",
			math.Abs(m.PercentChange), m.LastClose, m.PredictedClose, m.Volatility)
	case alertDomain.AlertPriceSpike:
		return fmt.Sprintf(
			"The forecast shows an unusual %.1f%% price increase from $%.2f to $%.2f. "+
				"This sharp upward movement, combined with %s trend patterns, "+
				"suggests heightened market interest or positive sentiment shift.",
			m.PercentChange, m.LastClose, m.PredictedClose, m.Trend)
	case alertDomain.AlertVolatilitySpike:
		return fmt.Sprintf(
			"Market volatility has spiked to %.4f, significantly above normal levels. "+
				"This increased uncertainty amplifies risk and may indicate reaction to "+
				"market events or upcoming announcements. Position sizing and stop-losses "+
				"should be reviewed.",
			m.Volatility)
	case alertDomain.AlertTrendReversal:
		return fmt.Sprintf(
			"Technical analysis indicates a potential trend reversal with the market "+
				"transitioning to a %s pattern. This shift, combined with a %+.1f%% forecast "+
				"change, suggests a change in market dynamics that may require strategy adjustment.",
			m.Trend, m.PercentChange)
	default:
		return d.Reason
	}
}

func stableSummary(m alertDomain.MetricsSnapshot) string {
	return fmt.Sprintf(
		"Market conditions remain stable. Current price at $%.2f with predicted change "+
			"of %+.1f%% and volatility at %.4f. All metrics within normal ranges.",
		m.LastClose, m.PercentChange, m.Volatility)
}
