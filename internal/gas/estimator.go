// Package gas produces gas limit and price recommendations for Kaia
// transactions and the escalation schedule used when a send is retried.
package gas

//go:generate mockgen -source=estimator.go -destination=../mocks/mock_gas.go -package=mocks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"go.uber.org/zap"
)

// ChainBackend is the part of a chain client the estimator needs.
// *ethclient.Client and wallet adapters both satisfy it.
type ChainBackend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// HeaderReader is implemented by backends that can report the latest block
// header, used for block utilisation statistics.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// CallRequest describes the transaction being estimated.
type CallRequest struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
}

// NetworkStats summarises current fee conditions.
type NetworkStats struct {
	AverageGasPrice  string `json:"average_gas_price"`
	FastGasPrice     string `json:"fast_gas_price"`
	BlockUtilization uint64 `json:"block_utilization"`
}

// marginPercent is the safety margin applied to node estimates.
const marginPercent = 120

// defaultBlockUtilization is reported when the latest block can't be read.
const defaultBlockUtilization = 50

// Estimator combines a chain backend with a network's fee floor.
type Estimator struct {
	backend ChainBackend
	floor   *big.Int
	logger  *zap.Logger
}

// NewEstimator creates an estimator for the given network.
func NewEstimator(backend ChainBackend, network networks.Network) *Estimator {
	return &Estimator{
		backend: backend,
		floor:   network.GasPriceFloor(),
		logger:  logger.Log,
	}
}

// Estimate asks the backend for a gas limit, adds a 20% margin and prices it
// at OptimalGasPrice. Any backend failure yields the static default for op.
func (e *Estimator) Estimate(ctx context.Context, req CallRequest, op Operation) GasEstimate {
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(req.From),
		Data:  req.Data,
		Value: req.Value,
	}
	if req.To != "" {
		to := common.HexToAddress(req.To)
		msg.To = &to
	}

	limit, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		e.logger.Warn("Gas estimation failed, using default",
			zap.String("operation", string(op)),
			zap.String("to", req.To),
			zap.Error(err),
		)
		return e.fallback(ctx, op)
	}

	withMargin := new(big.Int).SetUint64(limit)
	withMargin.Mul(withMargin, big.NewInt(marginPercent))
	withMargin.Div(withMargin, big.NewInt(100))

	estimate := newEstimate(withMargin, e.OptimalGasPrice(ctx))
	e.logger.Debug("Gas estimated",
		zap.String("operation", string(op)),
		zap.Uint64("node_estimate", limit),
		zap.String("gas_limit", estimate.GasLimit),
		zap.String("gas_price", estimate.GasPrice),
	)
	return estimate
}

func (e *Estimator) fallback(ctx context.Context, op Operation) GasEstimate {
	estimate := newEstimate(DefaultLimit(op), e.OptimalGasPrice(ctx))
	estimate.Fallback = true
	return estimate
}

// OptimalGasPrice returns max(network price, floor). The floor is returned
// when the backend can't be reached.
func (e *Estimator) OptimalGasPrice(ctx context.Context) *big.Int {
	price, err := e.backend.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		if err != nil {
			e.logger.Warn("Failed to fetch gas price, using floor", zap.Error(err))
		}
		return new(big.Int).Set(e.floor)
	}
	if price.Cmp(e.floor) < 0 {
		return new(big.Int).Set(e.floor)
	}
	return new(big.Int).Set(price)
}

// AdjustedGasPrice scales OptimalGasPrice by percent (110 means +10%).
func (e *Estimator) AdjustedGasPrice(ctx context.Context, percent int64) *big.Int {
	price := e.OptimalGasPrice(ctx)
	price.Mul(price, big.NewInt(percent))
	return price.Div(price, big.NewInt(100))
}

// NetworkStats reports the average and fast (+10%) gas price and the latest
// block's utilisation. Missing data falls back to defaults.
func (e *Estimator) NetworkStats(ctx context.Context) NetworkStats {
	price, err := e.backend.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		price = DefaultGasPrice()
	}
	fast := new(big.Int).Mul(price, big.NewInt(110))
	fast.Div(fast, big.NewInt(100))

	stats := NetworkStats{
		AverageGasPrice:  price.String(),
		FastGasPrice:     fast.String(),
		BlockUtilization: defaultBlockUtilization,
	}

	reader, ok := e.backend.(HeaderReader)
	if !ok {
		return stats
	}
	header, err := reader.HeaderByNumber(ctx, nil)
	if err != nil {
		e.logger.Warn("Failed to read latest block", zap.Error(err))
		return stats
	}
	if header != nil && header.GasLimit > 0 {
		stats.BlockUtilization = header.GasUsed * 100 / header.GasLimit
	}
	return stats
}
