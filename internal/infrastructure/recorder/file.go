package recorder

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"market-alert-agent/internal/application/agent"
)

// csvHeader 定義警報紀錄的欄位順序，與 JSONL 紀錄共用同一組欄位。
var csvHeader = []string{
	"timestamp", "date", "symbol", "alert_triggered", "alert_type",
	"confidence", "last_close", "predicted_close", "percent_change",
	"volatility", "trend", "technical_reason", "human_explanation",
	"suppressed", "suppression_reason",
}

// FileRecorder 將每次評估結果同時寫入 CSV 與 JSON Lines 檔。
type FileRecorder struct {
	csvPath   string
	jsonlPath string

	mu  sync.Mutex
	now func() time.Time
}

// NewFileRecorder 建立檔案記錄器並確保輸出目錄存在。
func NewFileRecorder(outputDir string) (*FileRecorder, error) {
	if outputDir == "" {
		outputDir = "outputs"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileRecorder{
		csvPath:   filepath.Join(outputDir, "alerts_log.csv"),
		jsonlPath: filepath.Join(outputDir, "alerts_log.jsonl"),
		now:       time.Now,
	}, nil
}

type recordRow struct {
	Timestamp         string  `json:"timestamp"`
	Date              string  `json:"date"`
	Symbol            string  `json:"symbol"`
	AlertTriggered    bool    `json:"alert_triggered"`
	AlertType         string  `json:"alert_type"`
	Confidence        string  `json:"confidence"`
	LastClose         float64 `json:"last_close"`
	PredictedClose    float64 `json:"predicted_close"`
	PercentChange     float64 `json:"percent_change"`
	Volatility        float64 `json:"volatility"`
	Trend             string  `json:"trend"`
	TechnicalReason   string  `json:"technical_reason"`
	HumanExplanation  string  `json:"human_explanation"`
	Suppressed        bool    `json:"suppressed"`
	SuppressionReason string  `json:"suppression_reason"`
}

// Record 追加一筆評估結果。CSV 首次寫入時補上表頭。
func (r *FileRecorder) Record(ctx context.Context, o agent.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := recordRow{
		Timestamp:         r.now().UTC().Format(time.RFC3339),
		Date:              o.Date.Format("2006-01-02"),
		Symbol:            o.Symbol,
		AlertTriggered:    o.Decision.ShouldAlert,
		AlertType:         string(o.Decision.Type),
		Confidence:        string(o.Decision.Confidence),
		LastClose:         o.Decision.Metrics.LastClose,
		PredictedClose:    o.Decision.Metrics.PredictedClose,
		PercentChange:     o.Decision.Metrics.PercentChange,
		Volatility:        o.Decision.Metrics.Volatility,
		Trend:             string(o.Decision.Metrics.Trend),
		TechnicalReason:   o.Decision.Reason,
		HumanExplanation:  o.Explanation,
		Suppressed:        o.Decision.Suppressed,
		SuppressionReason: o.Decision.SuppressionReason,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.appendCSV(row); err != nil {
		return fmt.Errorf("append csv: %w", err)
	}
	if err := r.appendJSONL(row); err != nil {
		return fmt.Errorf("append jsonl: %w", err)
	}
	return nil
}

func (r *FileRecorder) appendCSV(row recordRow) error {
	needHeader := false
	if _, err := os.Stat(r.csvPath); os.IsNotExist(err) {
		needHeader = true
	}

	f, err := os.OpenFile(r.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		row.Timestamp,
		row.Date,
		row.Symbol,
		strconv.FormatBool(row.AlertTriggered),
		row.AlertType,
		row.Confidence,
		formatFloat(row.LastClose),
		formatFloat(row.PredictedClose),
		formatFloat(row.PercentChange),
		formatFloat(row.Volatility),
		row.Trend,
		row.TechnicalReason,
		row.HumanExplanation,
		strconv.FormatBool(row.Suppressed),
		row.SuppressionReason,
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (r *FileRecorder) appendJSONL(row recordRow) error {
	f, err := os.OpenFile(r.jsonlPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(row)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
