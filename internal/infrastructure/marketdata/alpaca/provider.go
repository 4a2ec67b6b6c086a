package alpaca

import (
	"context"
	"fmt"
	"time"

	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"market-alert-agent/internal/domain/marketdata"
)

// DefaultLookbackDays 為向行情 API 取日 K 的預設回看天數。
const DefaultLookbackDays = 120

// Provider 透過 Alpaca 行情 API 取得日 K，實作 agent.CandleSource。
// API 金鑰由環境變數 APCA_API_KEY_ID / APCA_API_SECRET_KEY 提供。
type Provider struct {
	client       *md.Client
	lookbackDays int
	now          func() time.Time
}

func NewProvider(lookbackDays int) *Provider {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Provider{
		client:       md.NewClient(md.ClientOpts{}),
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// DailyCandles 取回 lookback 區間內的日 K，時間序為遞增。
func (p *Provider) DailyCandles(ctx context.Context, symbol string) ([]marketdata.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := p.now().AddDate(0, 0, -p.lookbackDays)
	bars, err := p.client.GetBars(symbol, md.GetBarsRequest{
		TimeFrame: md.OneDay,
		Start:     start,
	})
	if err != nil {
		return nil, fmt.Errorf("get bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s", symbol)
	}

	candles := make([]marketdata.Candle, 0, len(bars))
	for _, b := range bars {
		candle := marketdata.Candle{
			Symbol: symbol,
			Date:   b.Timestamp.UTC().Truncate(24 * time.Hour),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		}
		if err := candle.Validate(); err != nil {
			return nil, fmt.Errorf("bar %s for %s: %w", b.Timestamp.Format("2006-01-02"), symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
