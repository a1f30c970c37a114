package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtbook/courtbook/internal/model"
)

// PricingConfig holds the tariff knobs. Surcharges are additive fractions
// applied on top of the 1.0 base multiplier.
type PricingConfig struct {
	PeakStartMinute  int
	PeakEndMinute    int
	PeakSurcharge    decimal.Decimal
	WeekendSurcharge decimal.Decimal
	WeekendDays      map[time.Weekday]bool
	PartyBaseline    int
	ExtraGuestFee    decimal.Decimal
}

// DefaultWeekendDays marks Saturday and Sunday.
func DefaultWeekendDays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Saturday: true,
		time.Sunday:   true,
	}
}

// PricingEngine computes reservation prices. It is a pure function of its
// inputs: no clock, no storage, so it is safe to call inside or outside
// the booking lock and results are reproducible in fixtures.
type PricingEngine struct {
	cfg PricingConfig
}

func NewPricingEngine(cfg PricingConfig) *PricingEngine {
	if cfg.WeekendDays == nil {
		cfg.WeekendDays = DefaultWeekendDays()
	}
	return &PricingEngine{cfg: cfg}
}

// Quote prices a reservation of [start, end) on the court for the given
// party size. Any error means the booking must be aborted; there is no
// fallback price for a financial computation.
func (e *PricingEngine) Quote(court *model.Court, start, end time.Time, partySize int) (decimal.Decimal, error) {
	if !end.After(start) {
		return decimal.Zero, fmt.Errorf("price: end %s not after start %s", end, start)
	}
	if partySize < 1 {
		return decimal.Zero, fmt.Errorf("price: party size %d is not positive", partySize)
	}
	if court.HourlyRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("price: court %d has negative hourly rate %s", court.ID, court.HourlyRate)
	}

	minutes := end.Sub(start).Minutes()
	hours := decimal.NewFromFloat(minutes).Div(decimal.NewFromInt(60))
	base := court.HourlyRate.Mul(hours)

	multiplier := decimal.NewFromInt(1)
	startMinute := start.Hour()*60 + start.Minute()
	if startMinute >= e.cfg.PeakStartMinute && startMinute < e.cfg.PeakEndMinute {
		multiplier = multiplier.Add(e.cfg.PeakSurcharge)
	}
	if e.cfg.WeekendDays[start.Weekday()] {
		multiplier = multiplier.Add(e.cfg.WeekendSurcharge)
	}

	price := base.Mul(multiplier)

	if extra := partySize - e.cfg.PartyBaseline; extra > 0 {
		price = price.Add(e.cfg.ExtraGuestFee.Mul(decimal.NewFromInt(int64(extra))))
	}

	return price.Round(2), nil
}
