package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"market-alert-agent/internal/domain/marketdata"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Write csv failed: %v", err)
	}
	return path
}

func TestCSVSource_DailyCandles(t *testing.T) {
	path := writeCSV(t, `Date,Open,High,Low,Close,Volume
2026-03-05,101.0,103.0,100.0,102.0,1200
2026-03-03,100.0,101.5,99.0,101.0,1000
2026-03-04,101.0,102.0,100.5,101.5,1100
`)

	source := NewCSVSource(path)
	candles, err := source.DailyCandles(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("DailyCandles failed: %v", err)
	}

	if len(candles) != 3 {
		t.Fatalf("Expected 3 candles, got %d", len(candles))
	}
	// 日期必須遞增排序
	for i := 1; i < len(candles); i++ {
		if !candles[i].Date.After(candles[i-1].Date) {
			t.Errorf("Candles not sorted ascending at index %d", i)
		}
	}
	if candles[0].Date.Format("2006-01-02") != "2026-03-03" {
		t.Errorf("Expected first candle 2026-03-03, got %s", candles[0].Date.Format("2006-01-02"))
	}
	if candles[0].Symbol != "TSLA" || candles[0].Close != 101.0 || candles[0].Volume != 1000 {
		t.Errorf("Unexpected first candle: %+v", candles[0])
	}
}

func TestCSVSource_ColumnOrderFlexible(t *testing.T) {
	path := writeCSV(t, `Close,Volume,Date,Open,High,Low
101.0,1000,2026-03-03,100.0,101.5,99.0
`)

	candles, err := NewCSVSource(path).DailyCandles(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("DailyCandles failed: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 101.0 || candles[0].Low != 99.0 {
		t.Errorf("Unexpected candle: %+v", candles[0])
	}
}

func TestCSVSource_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := NewCSVSource("/nonexistent/candles.csv").DailyCandles(context.Background(), "TSLA")
		if err == nil {
			t.Fatal("Expected error for missing file")
		}
	})

	t.Run("missing_column", func(t *testing.T) {
		path := writeCSV(t, `Date,Open,High,Low,Close
2026-03-03,100.0,101.5,99.0,101.0
`)
		_, err := NewCSVSource(path).DailyCandles(context.Background(), "TSLA")
		if err == nil {
			t.Fatal("Expected error for missing volume column")
		}
	})

	t.Run("bad_date", func(t *testing.T) {
		path := writeCSV(t, `Date,Open,High,Low,Close,Volume
03/03/2026,100.0,101.5,99.0,101.0,1000
`)
		_, err := NewCSVSource(path).DailyCandles(context.Background(), "TSLA")
		if err == nil {
			t.Fatal("Expected error for bad date format")
		}
	})

	t.Run("invalid_candle", func(t *testing.T) {
		// high 低於 close，違反日 K 完整性
		path := writeCSV(t, `Date,Open,High,Low,Close,Volume
2026-03-03,100.0,100.5,99.0,101.0,1000
`)
		_, err := NewCSVSource(path).DailyCandles(context.Background(), "TSLA")
		if err == nil {
			t.Fatal("Expected validation error")
		}
		if !marketdata.IsValidationError(err) {
			t.Errorf("Expected candle validation error, got: %v", err)
		}
	})

	t.Run("no_data_rows", func(t *testing.T) {
		path := writeCSV(t, "Date,Open,High,Low,Close,Volume\n")
		_, err := NewCSVSource(path).DailyCandles(context.Background(), "TSLA")
		if err == nil {
			t.Fatal("Expected error for header-only file")
		}
	})
}
