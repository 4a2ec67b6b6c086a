package alert

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Trend 列舉預測趨勢方向。
type Trend string

const (
	TrendUpward   Trend = "upward"
	TrendDownward Trend = "downward"
	TrendStable   Trend = "stable"
)

// AlertType 列舉警報類型，單次評估只會命中一種。
type AlertType string

const (
	AlertPriceDrop       AlertType = "price_drop"
	AlertPriceSpike      AlertType = "price_spike"
	AlertVolatilitySpike AlertType = "volatility_spike"
	AlertTrendReversal   AlertType = "trend_reversal"
	AlertNone            AlertType = "none"
)

// ConfidenceLevel 表示警報信心等級（low < medium < high）。
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Rank 回傳等級排序值，供比較用。
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// MetricsSnapshot 封裝預測模型輸出的市場指標，為評估的輸入。
// PercentChange 以百分比為單位（-4.5 代表預測下跌 4.5%）。
type MetricsSnapshot struct {
	LastClose      float64
	PredictedClose float64
	PercentChange  float64
	Volatility     float64
	Trend          Trend
}

// ValidationError 收集多個驗證失敗原因。
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metrics validation failed: %v", e.Reasons)
}

// Validate 檢查指標欄位完整性；所有欄位必填，不做預設值補齊。
func (m MetricsSnapshot) Validate() error {
	var reasons []string

	for name, v := range map[string]float64{
		"last_close":      m.LastClose,
		"predicted_close": m.PredictedClose,
		"percent_change":  m.PercentChange,
		"volatility":      m.Volatility,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			reasons = append(reasons, name+" must be a finite number")
		}
	}

	if m.Volatility < 0 {
		reasons = append(reasons, "volatility must be >= 0")
	}

	switch m.Trend {
	case TrendUpward, TrendDownward, TrendStable:
		// ok
	default:
		reasons = append(reasons, "unsupported trend")
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}

	return nil
}

// IsValidationError 檢查錯誤是否為指標驗證錯誤。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Decision 為單次評估的完整結果，回傳後不再變動。
type Decision struct {
	ShouldAlert       bool
	Type              AlertType
	Confidence        ConfidenceLevel
	Reason            string
	Metrics           MetricsSnapshot
	Suppressed        bool
	SuppressionReason string
}

// HistoryEntry 記錄一次實際發出（未被抑制）的警報。
type HistoryEntry struct {
	Type       AlertType
	Confidence ConfidenceLevel
	Timestamp  time.Time
	Metrics    MetricsSnapshot
}
