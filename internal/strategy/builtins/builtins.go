package builtins

import "marketsignal/internal/strategy"

// Params holds the indicator periods of the builtin strategies.
type Params struct {
	SMAFast    int
	SMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultParams returns SMA 10/20 and MACD 12/26/9.
func DefaultParams() Params {
	return Params{
		SMAFast:    10,
		SMASlow:    20,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// Register adds every builtin strategy to r.
func Register(r *strategy.Registry, p Params) {
	r.Register(func() strategy.Strategy { return NewSMACross(p.SMAFast, p.SMASlow) })
	r.Register(func() strategy.Strategy { return NewMACDCross(p.MACDFast, p.MACDSlow, p.MACDSignal) })
}
