package forecast

import (
	"fmt"
	"math"

	alertDomain "market-alert-agent/internal/domain/alert"
	"market-alert-agent/internal/domain/marketdata"
)

// DefaultWindow is the rolling window used for the moving average,
// volatility and trend slope.
const DefaultWindow = 10

// Slope thresholds for trend classification (currency units per day).
const (
	upwardSlope   = 0.5
	downwardSlope = -0.5
)

// Result holds a one-step price forecast with its confidence interval.
type Result struct {
	Predicted  float64
	Lower      float64
	Upper      float64
	Confidence float64
}

// Forecaster projects the next close from a moving average plus a linear
// trend. It is deterministic and performs no I/O; the alert engine treats
// it as an opaque metrics source.
type Forecaster struct {
	window int
}

// New 建立預測器；window 小於 2 時使用預設窗格。
func New(window int) *Forecaster {
	if window < 2 {
		window = DefaultWindow
	}
	return &Forecaster{window: window}
}

// Forecast projects the close one step ahead. It needs at least two candles.
func (f *Forecaster) Forecast(candles []marketdata.Candle) (Result, error) {
	closes, err := f.closes(candles)
	if err != nil {
		return Result{}, err
	}

	ma := mean(closes)
	slope := slope(closes)
	predicted := ma + slope

	sd := stddev(closes)
	return Result{
		Predicted:  predicted,
		Lower:      predicted - 1.96*sd,
		Upper:      predicted + 1.96*sd,
		Confidence: 0.95,
	}, nil
}

// Metrics derives the snapshot the alert engine consumes from the candle
// history and a forecast result.
func (f *Forecaster) Metrics(candles []marketdata.Candle, r Result) (alertDomain.MetricsSnapshot, error) {
	if len(candles) == 0 {
		return alertDomain.MetricsSnapshot{}, fmt.Errorf("forecast metrics: no candles")
	}
	lastClose := candles[len(candles)-1].Close
	if lastClose <= 0 {
		return alertDomain.MetricsSnapshot{}, fmt.Errorf("forecast metrics: last close must be > 0, got %v", lastClose)
	}

	closes, err := f.closes(candles)
	if err != nil {
		return alertDomain.MetricsSnapshot{}, err
	}

	return alertDomain.MetricsSnapshot{
		LastClose:      lastClose,
		PredictedClose: r.Predicted,
		PercentChange:  (r.Predicted - lastClose) / lastClose * 100,
		Volatility:     f.volatility(closes),
		Trend:          f.trend(closes),
	}, nil
}

// closes returns the trailing window of closing prices.
func (f *Forecaster) closes(candles []marketdata.Candle) ([]float64, error) {
	if len(candles) < 2 {
		return nil, fmt.Errorf("forecast: need at least 2 candles, got %d", len(candles))
	}
	n := f.window
	if len(candles) < n {
		n = len(candles)
	}
	out := make([]float64, 0, n)
	for _, c := range candles[len(candles)-n:] {
		out = append(out, c.Close)
	}
	return out, nil
}

// volatility is the standard deviation of simple returns over the window.
func (f *Forecaster) volatility(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	return stddev(returns)
}

func (f *Forecaster) trend(closes []float64) alertDomain.Trend {
	s := slope(closes)
	switch {
	case s > upwardSlope:
		return alertDomain.TrendUpward
	case s < downwardSlope:
		return alertDomain.TrendDownward
	default:
		return alertDomain.TrendStable
	}
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	m := mean(xs)
	acc := 0.0
	for _, x := range xs {
		d := x - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(xs)))
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	xMean := (n - 1) / 2
	yMean := mean(ys)

	num, den := 0.0, 0.0
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
