package parking

import "fmt"

const (
	DefaultBaseMinutes = 30
	DefaultBasePrice   = 20
	DefaultHourlyRate  = 50

	msPerMinute = 60_000
)

// FeePolicy charges BasePrice for the first BaseMinutes and HourlyRate for
// every started hour after that. Durations are rounded up to whole minutes.
type FeePolicy struct {
	BaseMinutes int64 `json:"baseMinutes"`
	BasePrice   int64 `json:"basePrice"`
	HourlyRate  int64 `json:"hourlyRate"`
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		BaseMinutes: DefaultBaseMinutes,
		BasePrice:   DefaultBasePrice,
		HourlyRate:  DefaultHourlyRate,
	}
}

func (p FeePolicy) Validate() error {
	if p.BaseMinutes <= 0 {
		return fmt.Errorf("fee base minutes must be positive, got %d", p.BaseMinutes)
	}
	if p.BasePrice < 0 {
		return fmt.Errorf("fee base price must not be negative, got %d", p.BasePrice)
	}
	if p.HourlyRate < 0 {
		return fmt.Errorf("fee hourly rate must not be negative, got %d", p.HourlyRate)
	}
	return nil
}

func (p FeePolicy) ComputeFee(durationMs int64) (int64, error) {
	if durationMs < 0 {
		return 0, fmt.Errorf("%w: %dms", ErrNegativeDuration, durationMs)
	}

	minutes := ceilDiv(durationMs, msPerMinute)
	if minutes <= p.BaseMinutes {
		return p.BasePrice, nil
	}

	extraHours := ceilDiv(minutes-p.BaseMinutes, 60)
	return p.BasePrice + extraHours*p.HourlyRate, nil
}

// ceilDiv rounds a/b up for a >= 0 and b > 0 without overflowing near MaxInt64.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a-1)/b + 1
}
