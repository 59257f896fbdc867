package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// CostSchedule describes the broker and statutory charges applied to a
// delivery trade. Rates are fractions of notional unless noted.
type CostSchedule struct {
	BrokerageRate     float64 // per side, capped at BrokerageCap
	BrokerageCap      float64 // currency per side
	ExchangeTxnRate   float64 // per side
	GSTRate           float64 // on brokerage + exchange charge, per side
	StampDutyRate     float64 // entry only
	RegulatorFeeRate  float64 // entry only
	TransactionTax    float64 // exit only
	DepositoryCharge  float64 // currency, exit only
	DepositoryGSTRate float64 // on the depository charge
}

// DefaultCostSchedule returns the charges of a discount broker on cash
// equity delivery trades.
func DefaultCostSchedule() CostSchedule {
	return CostSchedule{
		BrokerageRate:     0.0005,
		BrokerageCap:      20,
		ExchangeTxnRate:   0.0000297,
		GSTRate:           0.18,
		StampDutyRate:     0.00015,
		RegulatorFeeRate:  0.000001,
		TransactionTax:    0.001,
		DepositoryCharge:  18.5,
		DepositoryGSTRate: 0.18,
	}
}

// CostBreakdown itemises the charges on both sides of a trade.
type CostBreakdown struct {
	Entry float64
	Exit  float64
	Total float64 // rounded to two decimals
}

// RoundTrip estimates the entry plus exit charges for a position of the
// given notional value.
func (c CostSchedule) RoundTrip(notional float64) CostBreakdown {
	n := decimal.NewFromFloat(notional)
	rate := func(r float64) decimal.Decimal { return n.Mul(decimal.NewFromFloat(r)) }

	brokerage := decimal.NewFromFloat(math.Min(notional*c.BrokerageRate, c.BrokerageCap))
	exchange := rate(c.ExchangeTxnRate)
	gst := brokerage.Add(exchange).Mul(decimal.NewFromFloat(c.GSTRate))
	sideBase := brokerage.Add(exchange).Add(gst)

	entry := sideBase.Add(rate(c.StampDutyRate)).Add(rate(c.RegulatorFeeRate))

	dp := decimal.NewFromFloat(c.DepositoryCharge)
	dp = dp.Add(dp.Mul(decimal.NewFromFloat(c.DepositoryGSTRate)))
	exit := sideBase.Add(rate(c.TransactionTax)).Add(dp)

	return CostBreakdown{
		Entry: entry.InexactFloat64(),
		Exit:  exit.InexactFloat64(),
		Total: entry.Add(exit).Round(2).InexactFloat64(),
	}
}
