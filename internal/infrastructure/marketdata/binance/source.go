package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"market-alert-agent/internal/domain/marketdata"
)

// DefaultLimit 為單次向 Binance 取得的日 K 筆數上限。
const DefaultLimit = 120

// Source 透過 Binance 公開 klines API 取得加密貨幣日 K，實作 agent.CandleSource。
// 僅使用公開行情端點，不需要 API 金鑰。
type Source struct {
	baseURL    string
	limit      int
	httpClient *http.Client
}

func NewSource(limit int) *Source {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Source{
		baseURL:    "https://api.binance.com",
		limit:      limit,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// DailyCandles 取回最近 limit 根日 K，Binance 回傳即為遞增時間序。
func (s *Source) DailyCandles(ctx context.Context, symbol string) ([]marketdata.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1d")
	params.Set("limit", strconv.Itoa(s.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/klines?%s", s.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance api error (status %d): %s", resp.StatusCode, string(body))
	}

	// kline 格式：[openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no klines returned for %s", symbol)
	}

	candles := make([]marketdata.Candle, 0, len(raw))
	for i, k := range raw {
		candle, err := parseKline(symbol, k)
		if err != nil {
			return nil, fmt.Errorf("kline %d for %s: %w", i, symbol, err)
		}
		if err := candle.Validate(); err != nil {
			return nil, fmt.Errorf("kline %d for %s: %w", i, symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(symbol string, k []json.RawMessage) (marketdata.Candle, error) {
	if len(k) < 6 {
		return marketdata.Candle{}, fmt.Errorf("kline has %d fields, want >= 6", len(k))
	}

	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return marketdata.Candle{}, fmt.Errorf("parse open time: %w", err)
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return marketdata.Candle{}, fmt.Errorf("parse field %d: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return marketdata.Candle{}, fmt.Errorf("parse field %d %q: %w", i, s, err)
		}
		prices[i-1] = v
	}

	return marketdata.Candle{
		Symbol: symbol,
		Date:   time.UnixMilli(openTime).UTC().Truncate(24 * time.Hour),
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: int64(prices[4]),
	}, nil
}
