package gas

import (
	"math/big"

	"github.com/kaiacity/kaiapass/internal/constants"
)

// Operation selects the default gas table entry.
type Operation string

const (
	OperationIssue      Operation = constants.OperationIssue
	OperationUpdate     Operation = constants.OperationUpdate
	OperationDeactivate Operation = constants.OperationDeactivate
	OperationGeneric    Operation = constants.OperationGeneric
)

const defaultGasPriceWei = 25_000_000_000

var defaultLimits = map[Operation]uint64{
	OperationIssue:      350_000,
	OperationUpdate:     250_000,
	OperationDeactivate: 150_000,
	OperationGeneric:    2_000_000,
}

// DefaultGasPrice is the 25 gkei Kaia standard price.
func DefaultGasPrice() *big.Int {
	return big.NewInt(defaultGasPriceWei)
}

// DefaultLimit returns the static gas limit for op. Unknown operations use
// the generic limit.
func DefaultLimit(op Operation) *big.Int {
	limit, ok := defaultLimits[op]
	if !ok {
		limit = defaultLimits[OperationGeneric]
	}
	return new(big.Int).SetUint64(limit)
}

// DefaultEstimate is the static estimate for op at the default price.
func DefaultEstimate(op Operation) GasEstimate {
	estimate := newEstimate(DefaultLimit(op), DefaultGasPrice())
	estimate.Fallback = true
	return estimate
}
