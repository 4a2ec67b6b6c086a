package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"market-alert-agent/internal/application/alert"
	"market-alert-agent/internal/application/explain"
	"market-alert-agent/internal/application/forecast"
	alertDomain "market-alert-agent/internal/domain/alert"
	"market-alert-agent/internal/domain/marketdata"
)

// CandleSource 提供標的日 K 歷史，由 CSV 或行情 API 實作。
type CandleSource interface {
	DailyCandles(ctx context.Context, symbol string) ([]marketdata.Candle, error)
}

// Outcome 為單次完整流程的結果，交由 Recorder / Notifier 消費。
type Outcome struct {
	Symbol             string
	Date               time.Time
	Decision           alertDomain.Decision
	Explanation        string
	ExplanationFromLLM bool
	ForecastConfidence float64
}

// Recorder 持久化評估結果。
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Notifier 寄送已觸發的警報。
type Notifier interface {
	Notify(ctx context.Context, o Outcome) error
}

// Orchestrator 串接完整流程：取數 → 預測 → 評估 → 說明 → 記錄與通知。
type Orchestrator struct {
	source     CandleSource
	forecaster *forecast.Forecaster
	engine     *alert.Engine
	explainer  *explain.Explainer
	recorder   Recorder // 可為 nil
	notifier   Notifier // 可為 nil
}

// NewOrchestrator 建立協調器；recorder 與 notifier 皆為選配。
func NewOrchestrator(source CandleSource, forecaster *forecast.Forecaster, engine *alert.Engine, explainer *explain.Explainer, recorder Recorder, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		source:     source,
		forecaster: forecaster,
		engine:     engine,
		explainer:  explainer,
		recorder:   recorder,
		notifier:   notifier,
	}
}

// Run 對單一標的執行一次評估。記錄與通知失敗僅記 log，不中斷流程。
func (o *Orchestrator) Run(ctx context.Context, symbol string) (Outcome, error) {
	candles, err := o.source.DailyCandles(ctx, symbol)
	if err != nil {
		return Outcome{}, fmt.Errorf("load candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Outcome{}, fmt.Errorf("load candles for %s: empty history", symbol)
	}

	return o.evaluateWindow(ctx, symbol, candles, candles[len(candles)-1].Date)
}

// RunBatch 以滾動窗格重播歷史，模擬每日監控。
func (o *Orchestrator) RunBatch(ctx context.Context, symbol string, window int) ([]Outcome, error) {
	if window < 2 {
		return nil, fmt.Errorf("batch window must be >= 2, got %d", window)
	}

	candles, err := o.source.DailyCandles(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", symbol, err)
	}
	if len(candles) <= window {
		return nil, fmt.Errorf("need more than %d candles for batch mode, got %d", window, len(candles))
	}

	out := make([]Outcome, 0, len(candles)-window)
	for i := window; i < len(candles); i++ {
		oc, err := o.evaluateWindow(ctx, symbol, candles[:i], candles[i].Date)
		if err != nil {
			return out, fmt.Errorf("window ending %s: %w", candles[i].Date.Format("2006-01-02"), err)
		}
		out = append(out, oc)
	}
	return out, nil
}

func (o *Orchestrator) evaluateWindow(ctx context.Context, symbol string, candles []marketdata.Candle, date time.Time) (Outcome, error) {
	result, err := o.forecaster.Forecast(candles)
	if err != nil {
		return Outcome{}, fmt.Errorf("forecast %s: %w", symbol, err)
	}
	metrics, err := o.forecaster.Metrics(candles, result)
	if err != nil {
		return Outcome{}, fmt.Errorf("forecast metrics %s: %w", symbol, err)
	}

	decision, err := o.engine.Evaluate(ctx, metrics, result.Confidence)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate %s: %w", symbol, err)
	}

	explanation := o.explainer.Generate(ctx, decision)

	outcome := Outcome{
		Symbol:             symbol,
		Date:               date,
		Decision:           decision,
		Explanation:        explanation.Text,
		ExplanationFromLLM: explanation.FromLLM,
		ForecastConfidence: result.Confidence,
	}

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, outcome); err != nil {
			log.Printf("[Agent] record outcome failed symbol=%s: %v", symbol, err)
		}
	}
	if o.notifier != nil && decision.ShouldAlert {
		if err := o.notifier.Notify(ctx, outcome); err != nil {
			log.Printf("[Agent] notify failed symbol=%s: %v", symbol, err)
		}
	}

	return outcome, nil
}
