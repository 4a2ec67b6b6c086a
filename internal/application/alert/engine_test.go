package alert

import (
	"context"
	"math"
	"testing"
	"time"

	alertDomain "market-alert-agent/internal/domain/alert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dropMetrics(pct, vol float64) alertDomain.MetricsSnapshot {
	return alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 155.0 * (1 + pct/100),
		PercentChange:  pct,
		Volatility:     vol,
		Trend:          alertDomain.TrendDownward,
	}
}

func TestEvaluate_PriceDropScenario(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)
	engine.now = fixedClock(time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC))

	m := alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 148.0,
		PercentChange:  -4.5,
		Volatility:     0.025,
		Trend:          alertDomain.TrendDownward,
	}

	d, err := engine.Evaluate(context.Background(), m, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != alertDomain.AlertPriceDrop {
		t.Fatalf("expected price_drop, got %s", d.Type)
	}
	// 4.5% 介於弱信號與強信號之間，分數維持 0.95 → high。
	if d.Confidence != alertDomain.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", d.Confidence)
	}
	if !d.ShouldAlert || d.Suppressed {
		t.Fatalf("expected fired alert, got should_alert=%v suppressed=%v", d.ShouldAlert, d.Suppressed)
	}
	if d.Reason != "Predicted price drop of 4.5% exceeds threshold" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestEvaluate_NoAlertScenario(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	m := alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 152.0,
		PercentChange:  -1.9,
		Volatility:     0.015,
		Trend:          alertDomain.TrendStable,
	}

	d, err := engine.Evaluate(context.Background(), m, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != alertDomain.AlertNone {
		t.Fatalf("expected none, got %s", d.Type)
	}
	if d.ShouldAlert {
		t.Fatalf("expected no alert")
	}
	if d.Confidence != alertDomain.ConfidenceLow {
		t.Fatalf("no-alert decisions always carry low confidence, got %s", d.Confidence)
	}
	if d.Reason != "No significant alerts" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestEvaluate_VolatilitySpikeBeforeTrendCheck(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	m := alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 156.0,
		PercentChange:  0.6,
		Volatility:     0.045,
		Trend:          alertDomain.TrendStable,
	}

	d, err := engine.Evaluate(context.Background(), m, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != alertDomain.AlertVolatilitySpike {
		t.Fatalf("expected volatility_spike, got %s", d.Type)
	}
	if !d.ShouldAlert {
		t.Fatalf("expected fired alert, suppression=%q", d.SuppressionReason)
	}
}

func TestEvaluate_PriceDropWinsOverVolatility(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	// 同時滿足跌幅與波動門檻時，優先序高者勝出。
	d, err := engine.Evaluate(context.Background(), dropMetrics(-8.0, 0.06), 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != alertDomain.AlertPriceDrop {
		t.Fatalf("expected price_drop to win priority, got %s", d.Type)
	}
}

func TestEvaluate_TrendReversal(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	m := alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 151.0,
		PercentChange:  -2.6,
		Volatility:     0.02,
		Trend:          alertDomain.TrendDownward,
	}

	d, err := engine.Evaluate(context.Background(), m, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != alertDomain.AlertTrendReversal {
		t.Fatalf("expected trend_reversal, got %s", d.Type)
	}
}

func TestEvaluate_InvalidMetricsRejected(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	m := alertDomain.MetricsSnapshot{
		LastClose:      math.NaN(),
		PredictedClose: 148.0,
		PercentChange:  -4.5,
		Volatility:     0.025,
		Trend:          alertDomain.TrendDownward,
	}

	if _, err := engine.Evaluate(context.Background(), m, 0.95); err == nil {
		t.Fatalf("expected validation error for NaN input")
	}

	if _, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 1.5); err == nil {
		t.Fatalf("expected error for out-of-range forecast confidence")
	}
}

func TestEvaluate_NonFiringCallsAreIdempotent(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	m := alertDomain.MetricsSnapshot{
		LastClose:      155.0,
		PredictedClose: 155.5,
		PercentChange:  0.3,
		Volatility:     0.01,
		Trend:          alertDomain.TrendStable,
	}

	for i := 0; i < 10; i++ {
		d, err := engine.Evaluate(context.Background(), m, 0.95)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.ShouldAlert {
			t.Fatalf("stable metrics should never alert")
		}
	}

	sum, err := engine.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalAlerts != 0 {
		t.Fatalf("history must stay empty, got %d entries", sum.TotalAlerts)
	}
}

func TestEvaluate_LowConfidenceSuppressed(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	// 4.5% 不觸發任何調整係數，分數停在 0.6，低於 medium 分界。
	d, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Suppressed || d.SuppressionReason != "Confidence level too low" {
		t.Fatalf("expected low-confidence suppression, got %+v", d)
	}
	if d.ShouldAlert {
		t.Fatalf("suppressed decision must not alert")
	}

	count, err := engine.CountAlertsToday(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("suppressed alerts must not be recorded, got %d", count)
	}
}

func TestEvaluate_CooldownSuppression(t *testing.T) {
	t0 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(ModerateConfig(), nil)
	engine.now = fixedClock(t0)

	d, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.ShouldAlert {
		t.Fatalf("first alert should fire, suppression=%q", d.SuppressionReason)
	}

	engine.now = fixedClock(t0.Add(1 * time.Hour))
	d, err = engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Suppressed || d.SuppressionReason != "Similar alert fired within last 24h" {
		t.Fatalf("expected cooldown suppression, got %+v", d)
	}

	engine.now = fixedClock(t0.Add(25 * time.Hour))
	d, err = engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Suppressed {
		t.Fatalf("cooldown expired, alert should fire again, got %+v", d)
	}
}

func TestEvaluate_DailyLimitSuppression(t *testing.T) {
	cfg := ModerateConfig()
	cfg.AlertCooldown = 1 * time.Hour
	engine := NewEngine(cfg, nil)

	day := time.Date(2024, 1, 10, 0, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		engine.now = fixedClock(day.Add(time.Duration(i) * 2 * time.Hour))
		d, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.ShouldAlert {
			t.Fatalf("alert %d should fire, suppression=%q", i+1, d.SuppressionReason)
		}
	}

	engine.now = fixedClock(day.Add(10 * time.Hour))
	d, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Suppressed || d.SuppressionReason != "Daily alert limit reached" {
		t.Fatalf("expected daily limit suppression, got %+v", d)
	}
}

func TestEvaluate_ConfidenceMonotonicity(t *testing.T) {
	prevRank := -1
	for _, pct := range []float64{-4.1, -5.0, -6.9, -8.0, -12.0} {
		engine := NewEngine(ModerateConfig(), nil)
		d, err := engine.Evaluate(context.Background(), dropMetrics(pct, 0.02), 0.8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Confidence.Rank() < prevRank {
			t.Fatalf("confidence decreased at pct=%.1f: %s", pct, d.Confidence)
		}
		prevRank = d.Confidence.Rank()
	}
}

func TestEvaluate_InvariantShouldAlert(t *testing.T) {
	engine := NewEngine(ModerateConfig(), nil)

	cases := []struct {
		metrics    alertDomain.MetricsSnapshot
		confidence float64
	}{
		{dropMetrics(-4.5, 0.02), 0.95},
		{dropMetrics(-4.5, 0.02), 0.6},
		{dropMetrics(-0.5, 0.01), 0.95},
		{dropMetrics(-8.0, 0.06), 0.95},
	}

	for i, c := range cases {
		c.metrics.Trend = alertDomain.TrendStable
		d, err := engine.Evaluate(context.Background(), c.metrics, c.confidence)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		want := d.Type != alertDomain.AlertNone && !d.Suppressed
		if d.ShouldAlert != want {
			t.Fatalf("case %d: invariant broken: %+v", i, d)
		}
	}
}

func TestSummary(t *testing.T) {
	t0 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(ModerateConfig(), nil)
	engine.now = fixedClock(t0)

	if _, err := engine.Evaluate(context.Background(), dropMetrics(-4.5, 0.02), 0.95); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, err := engine.Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalAlerts != 1 || sum.AlertsToday != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.LastAlert == nil || sum.LastAlert.Type != alertDomain.AlertPriceDrop {
		t.Fatalf("expected last alert to be price_drop, got %+v", sum.LastAlert)
	}
	if !sum.LastAlert.Timestamp.Equal(t0) {
		t.Fatalf("expected timestamp %v, got %v", t0, sum.LastAlert.Timestamp)
	}
}

func TestPresetConfig(t *testing.T) {
	if got := PresetConfig("conservative"); got.AlertCooldown != 48*time.Hour {
		t.Fatalf("conservative cooldown = %v", got.AlertCooldown)
	}
	if got := PresetConfig("aggressive"); got.PriceDropThreshold != 3.0 {
		t.Fatalf("aggressive drop threshold = %v", got.PriceDropThreshold)
	}
	if got := PresetConfig("unknown"); got.PriceDropThreshold != 4.0 {
		t.Fatalf("unknown preset should fall back to moderate")
	}
}
