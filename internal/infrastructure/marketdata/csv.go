package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"market-alert-agent/internal/domain/marketdata"
)

// CSVSource 從本地 CSV 檔載入日 K 歷史，實作 agent.CandleSource。
// 檔案格式：Date,Open,High,Low,Close,Volume，第一列為表頭。
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// DailyCandles 讀取整份檔案並回傳依日期遞增排序的日 K。
func (s *CSVSource) DailyCandles(ctx context.Context, symbol string) ([]marketdata.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", s.path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("csv %s has no data rows", s.path)
	}

	col, err := headerIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", s.path, err)
	}

	candles := make([]marketdata.Candle, 0, len(rows)-1)
	for i, row := range rows[1:] {
		candle, err := parseRow(symbol, row, col)
		if err != nil {
			return nil, fmt.Errorf("csv %s row %d: %w", s.path, i+2, err)
		}
		if err := candle.Validate(); err != nil {
			return nil, fmt.Errorf("csv %s row %d: %w", s.path, i+2, err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Date.Before(candles[j].Date)
	})
	return candles, nil
}

type columnIndex struct {
	date, open, high, low, close, volume int
}

func headerIndex(header []string) (columnIndex, error) {
	idx := columnIndex{date: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			idx.date = i
		case "open":
			idx.open = i
		case "high":
			idx.high = i
		case "low":
			idx.low = i
		case "close":
			idx.close = i
		case "volume":
			idx.volume = i
		}
	}
	if idx.date < 0 || idx.open < 0 || idx.high < 0 || idx.low < 0 || idx.close < 0 || idx.volume < 0 {
		return idx, fmt.Errorf("missing required columns in header %v", header)
	}
	return idx, nil
}

func parseRow(symbol string, row []string, col columnIndex) (marketdata.Candle, error) {
	if len(row) <= col.volume {
		return marketdata.Candle{}, fmt.Errorf("row too short: %v", row)
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(row[col.date]))
	if err != nil {
		return marketdata.Candle{}, fmt.Errorf("parse date %q: %w", row[col.date], err)
	}

	open, err := parsePrice("open", row[col.open])
	if err != nil {
		return marketdata.Candle{}, err
	}
	high, err := parsePrice("high", row[col.high])
	if err != nil {
		return marketdata.Candle{}, err
	}
	low, err := parsePrice("low", row[col.low])
	if err != nil {
		return marketdata.Candle{}, err
	}
	closePrice, err := parsePrice("close", row[col.close])
	if err != nil {
		return marketdata.Candle{}, err
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(row[col.volume]), 10, 64)
	if err != nil {
		return marketdata.Candle{}, fmt.Errorf("parse volume %q: %w", row[col.volume], err)
	}

	return marketdata.Candle{
		Symbol: symbol,
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func parsePrice(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return v, nil
}
