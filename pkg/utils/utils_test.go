package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1,
	}
}

func TestRetryWithResultEventualSuccess(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("RetryWithResult: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestRetryWithResultExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	_, err := RetryWithResult(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad input")
	cfg := fastRetry(5)
	cfg.NonRetryable = []error{permanent}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("permanent error retried %d times, want 1 attempt", calls)
	}
}

func TestMarketStatusAt(t *testing.T) {
	// Monday 2025-01-06 in IST.
	day := func(hour, min int) time.Time {
		return time.Date(2025, 1, 6, hour, min, 0, 0, IndiaLocation)
	}

	cases := []struct {
		name string
		at   time.Time
		want MarketStatus
	}{
		{"before pre-open", day(8, 45), MarketClosed},
		{"pre-open", day(9, 5), MarketPreOpen},
		{"open bell", day(9, 15), MarketOpen},
		{"midday", day(12, 0), MarketOpen},
		{"mis squareoff window", day(15, 5), MarketMISSquareOffWarn},
		{"last quarter hour", day(15, 20), MarketOpen},
		{"after close", day(15, 30), MarketClosed},
		{"saturday", time.Date(2025, 1, 4, 12, 0, 0, 0, IndiaLocation), MarketClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MarketStatusAt(tc.at); got != tc.want {
				t.Errorf("MarketStatusAt(%s) = %s, want %s", tc.at.Format("Mon 15:04"), got, tc.want)
			}
		})
	}
}
