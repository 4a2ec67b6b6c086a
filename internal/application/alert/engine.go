package alert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	alertDomain "market-alert-agent/internal/domain/alert"
)

// DefaultForecastConfidence 為呼叫端未提供模型信心時的慣用值。
const DefaultForecastConfidence = 0.95

// 信號強度分界（百分比）與高波動分界，搭配 ConfidenceWeights 調整信心分數。
const (
	strongSignalPct   = 7.0
	weakSignalPct     = 3.0
	highVolatilityBar = 0.05
)

// 信心分數對應等級的分界。
const (
	highConfidenceScore   = 0.85
	mediumConfidenceScore = 0.70
)

// ConfidenceWeights 為信心分數的調整係數；來源僅為啟發式常數，保留可設定而非寫死。
type ConfidenceWeights struct {
	StrongSignal   float64 // |percent_change| > 7.0 時乘上
	WeakSignal     float64 // |percent_change| < 3.0 時乘上
	HighVolatility float64 // volatility > 0.05 時乘上
}

// DefaultConfidenceWeights 回傳來源系統使用的係數。
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		StrongSignal:   1.1,
		WeakSignal:     0.9,
		HighVolatility: 0.85,
	}
}

// Config 定義警報引擎的門檻與抑制規則，建構後不再變動。
type Config struct {
	PriceDropThreshold     float64       // 觸發 price_drop 的跌幅（百分比）
	PriceSpikeThreshold    float64       // 觸發 price_spike 的漲幅（百分比）
	VolatilityThreshold    float64       // 觸發 volatility_spike 的波動度
	MinConfidenceThreshold float64       // 保留欄位：抑制改以離散等級判斷
	AlertCooldown          time.Duration // 同類型警報的最小間隔
	DailyAlertLimit        int           // 單日可發出的警報上限
	Weights                ConfidenceWeights
}

// ModerateConfig 為預設的中等門檻組合。
func ModerateConfig() Config {
	return Config{
		PriceDropThreshold:     4.0,
		PriceSpikeThreshold:    5.0,
		VolatilityThreshold:    0.03,
		MinConfidenceThreshold: 0.65,
		AlertCooldown:          24 * time.Hour,
		DailyAlertLimit:        5,
		Weights:                DefaultConfidenceWeights(),
	}
}

// ConservativeConfig 門檻較高、冷卻較長，警報較少。
func ConservativeConfig() Config {
	return Config{
		PriceDropThreshold:     5.0,
		PriceSpikeThreshold:    6.0,
		VolatilityThreshold:    0.04,
		MinConfidenceThreshold: 0.75,
		AlertCooldown:          48 * time.Hour,
		DailyAlertLimit:        5,
		Weights:                DefaultConfidenceWeights(),
	}
}

// AggressiveConfig 門檻較低、冷卻較短，警報較多。
func AggressiveConfig() Config {
	return Config{
		PriceDropThreshold:     3.0,
		PriceSpikeThreshold:    4.0,
		VolatilityThreshold:    0.02,
		MinConfidenceThreshold: 0.55,
		AlertCooldown:          12 * time.Hour,
		DailyAlertLimit:        5,
		Weights:                DefaultConfidenceWeights(),
	}
}

// PresetConfig 依名稱取得組態；未知名稱回傳 moderate。
func PresetConfig(name string) Config {
	switch name {
	case "conservative":
		return ConservativeConfig()
	case "aggressive":
		return AggressiveConfig()
	default:
		return ModerateConfig()
	}
}

// HistoryStore 管理已發出警報的歷史，供冷卻與每日上限檢查。
type HistoryStore interface {
	Append(ctx context.Context, entry alertDomain.HistoryEntry) error
	CountByTypeSince(ctx context.Context, typ alertDomain.AlertType, since time.Time) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	Last(ctx context.Context) (*alertDomain.HistoryEntry, error)
	Total(ctx context.Context) (int, error)
	Prune(ctx context.Context, before time.Time) error
}

// Summary 為警報歷史摘要。
type Summary struct {
	TotalAlerts int
	AlertsToday int
	LastAlert   *alertDomain.HistoryEntry
}

// Engine 依市場指標評估警報並自我抑制，避免重複轟炸。
type Engine struct {
	cfg     Config
	history HistoryStore
	now     func() time.Time

	mu sync.Mutex // 保護 history 的讀取-判斷-寫入流程
}

// NewEngine 建立警報引擎；history 傳入 nil 時使用記憶體儲存。
func NewEngine(cfg Config, history HistoryStore) *Engine {
	if cfg.Weights == (ConfidenceWeights{}) {
		cfg.Weights = DefaultConfidenceWeights()
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = 24 * time.Hour
	}
	if cfg.DailyAlertLimit <= 0 {
		cfg.DailyAlertLimit = 5
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	return &Engine{
		cfg:     cfg,
		history: history,
		now:     time.Now,
	}
}

// Evaluate 為主要決策流程：條件比對、信心計算、自我抑制、記錄歷史。
func (e *Engine) Evaluate(ctx context.Context, metrics alertDomain.MetricsSnapshot, forecastConfidence float64) (alertDomain.Decision, error) {
	if err := metrics.Validate(); err != nil {
		return alertDomain.Decision{}, fmt.Errorf("evaluate metrics: %w", err)
	}
	if math.IsNaN(forecastConfidence) || forecastConfidence < 0 || forecastConfidence > 1 {
		return alertDomain.Decision{}, fmt.Errorf("evaluate metrics: forecast confidence %v out of range [0,1]", forecastConfidence)
	}

	alertType, reason := e.checkConditions(metrics)
	confidence := e.scoreConfidence(metrics, forecastConfidence, alertType)

	decision := alertDomain.Decision{
		Type:       alertType,
		Confidence: confidence,
		Reason:     reason,
		Metrics:    metrics,
	}

	if alertType == alertDomain.AlertNone {
		return decision, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.history.Prune(ctx, now.Add(-e.retention())); err != nil {
		return alertDomain.Decision{}, fmt.Errorf("prune history: %w", err)
	}

	suppressReason, err := e.selfCheck(ctx, alertType, confidence, now)
	if err != nil {
		return alertDomain.Decision{}, fmt.Errorf("self check: %w", err)
	}
	if suppressReason != "" {
		decision.Suppressed = true
		decision.SuppressionReason = suppressReason
		return decision, nil
	}

	entry := alertDomain.HistoryEntry{
		Type:       alertType,
		Confidence: confidence,
		Timestamp:  now,
		Metrics:    metrics,
	}
	if err := e.history.Append(ctx, entry); err != nil {
		return alertDomain.Decision{}, fmt.Errorf("record alert: %w", err)
	}

	decision.ShouldAlert = true
	return decision, nil
}

// checkConditions 依優先序比對條件，先命中者為準。
func (e *Engine) checkConditions(m alertDomain.MetricsSnapshot) (alertDomain.AlertType, string) {
	if m.PercentChange <= -e.cfg.PriceDropThreshold {
		return alertDomain.AlertPriceDrop,
			fmt.Sprintf("Predicted price drop of %.1f%% exceeds threshold", math.Abs(m.PercentChange))
	}

	if m.PercentChange >= e.cfg.PriceSpikeThreshold {
		return alertDomain.AlertPriceSpike,
			fmt.Sprintf("Predicted price spike of %.1f%% exceeds threshold", m.PercentChange)
	}

	if m.Volatility >= e.cfg.VolatilityThreshold {
		return alertDomain.AlertVolatilitySpike,
			fmt.Sprintf("Volatility spike detected (%.4f > %v)", m.Volatility, e.cfg.VolatilityThreshold)
	}

	// 趨勢反轉採簡化判斷：轉為下跌且變動幅度已不算小。
	if m.Trend == alertDomain.TrendDownward && math.Abs(m.PercentChange) > 2.0 {
		return alertDomain.AlertTrendReversal,
			fmt.Sprintf("Trend reversal detected: moving to %s pattern", m.Trend)
	}

	return alertDomain.AlertNone, "No significant alerts"
}

// scoreConfidence 由模型信心出發，依信號強度與波動度調整後離散化。
func (e *Engine) scoreConfidence(m alertDomain.MetricsSnapshot, forecastConfidence float64, alertType alertDomain.AlertType) alertDomain.ConfidenceLevel {
	if alertType == alertDomain.AlertNone {
		return alertDomain.ConfidenceLow
	}

	score := forecastConfidence

	pct := math.Abs(m.PercentChange)
	if pct > strongSignalPct {
		score *= e.cfg.Weights.StrongSignal
	} else if pct < weakSignalPct {
		score *= e.cfg.Weights.WeakSignal
	}

	if m.Volatility > highVolatilityBar {
		score *= e.cfg.Weights.HighVolatility
	}

	switch {
	case score >= highConfidenceScore:
		return alertDomain.ConfidenceHigh
	case score >= mediumConfidenceScore:
		return alertDomain.ConfidenceMedium
	default:
		return alertDomain.ConfidenceLow
	}
}

// selfCheck 依序檢查抑制條件，回傳第一個成立的原因；空字串代表不抑制。
func (e *Engine) selfCheck(ctx context.Context, alertType alertDomain.AlertType, confidence alertDomain.ConfidenceLevel, now time.Time) (string, error) {
	if confidence == alertDomain.ConfidenceLow {
		return "Confidence level too low", nil
	}

	recent, err := e.history.CountByTypeSince(ctx, alertType, now.Add(-e.cfg.AlertCooldown))
	if err != nil {
		return "", err
	}
	if recent > 0 {
		return fmt.Sprintf("Similar alert fired within last %dh", int(e.cfg.AlertCooldown.Hours())), nil
	}

	today, err := e.history.CountSince(ctx, startOfDay(now))
	if err != nil {
		return "", err
	}
	if today >= e.cfg.DailyAlertLimit {
		return "Daily alert limit reached", nil
	}

	return "", nil
}

// retention 回傳歷史保留窗格；需同時涵蓋冷卻檢查與今日計數。
func (e *Engine) retention() time.Duration {
	if e.cfg.AlertCooldown > 24*time.Hour {
		return e.cfg.AlertCooldown
	}
	return 24 * time.Hour
}

// Summary 回傳保留窗格內的警報摘要，純讀取。
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	total, err := e.history.Total(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("history total: %w", err)
	}
	today, err := e.history.CountSince(ctx, startOfDay(e.now()))
	if err != nil {
		return Summary{}, fmt.Errorf("history today: %w", err)
	}
	last, err := e.history.Last(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("history last: %w", err)
	}

	return Summary{
		TotalAlerts: total,
		AlertsToday: today,
		LastAlert:   last,
	}, nil
}

// CountAlertsToday 計算自當地午夜起已發出的警報數。
func (e *Engine) CountAlertsToday(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CountSince(ctx, startOfDay(e.now()))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
