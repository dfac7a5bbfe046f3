package gas

import (
	"fmt"
	"math/big"
)

// GasEstimate carries decimal-string quantities so it can travel unchanged
// into transaction params and JSON responses.
type GasEstimate struct {
	GasLimit      string `json:"gas_limit"`
	GasPrice      string `json:"gas_price"`
	EstimatedCost string `json:"estimated_cost"`
	Fallback      bool   `json:"fallback"`
}

func newEstimate(limit, price *big.Int) GasEstimate {
	return GasEstimate{
		GasLimit:      limit.String(),
		GasPrice:      price.String(),
		EstimatedCost: new(big.Int).Mul(limit, price).String(),
	}
}

// ParseQuantity parses a decimal or 0x-prefixed hex quantity.
func ParseQuantity(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	n, ok := new(big.Int).SetString(raw, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid quantity %q", raw)
	}
	return n, nil
}

// RetryGasSettings escalates prev for retry attempt n: the limit grows by 20%
// and the price by 10% per attempt, both relative to prev. Attempt 0 returns
// prev unchanged. Unparseable fields are carried through as they are.
func RetryGasSettings(prev GasEstimate, attempt int) GasEstimate {
	if attempt <= 0 {
		return prev
	}

	next := prev
	limit, limitErr := ParseQuantity(prev.GasLimit)
	if limitErr == nil {
		limit = scale(limit, 100+20*int64(attempt))
		next.GasLimit = limit.String()
	}
	price, priceErr := ParseQuantity(prev.GasPrice)
	if priceErr == nil {
		price = scale(price, 100+10*int64(attempt))
		next.GasPrice = price.String()
	}
	if limitErr == nil && priceErr == nil {
		next.EstimatedCost = new(big.Int).Mul(limit, price).String()
	}
	return next
}

func scale(v *big.Int, percent int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(percent))
	return out.Div(out, big.NewInt(100))
}
