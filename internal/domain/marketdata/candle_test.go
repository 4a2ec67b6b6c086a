package marketdata

import (
	"testing"
	"time"
)

func TestCandleValidateSuccess(t *testing.T) {
	c := Candle{
		Symbol: "AAPL",
		Date:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Open:   154.0,
		High:   156.5,
		Low:    153.2,
		Close:  155.0,
		Volume: 4200000,
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid candle, got error: %v", err)
	}
}

func TestCandleValidateErrors(t *testing.T) {
	c := Candle{
		Symbol: "",
		Date:   time.Time{},
		Open:   -1,
		High:   1,
		Low:    2,
		Close:  -2,
		Volume: -1,
	}

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}

	if !IsValidationError(err) {
		t.Fatalf("expected validation error type, got %T", err)
	}
}
