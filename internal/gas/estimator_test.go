package gas_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaiacity/kaiapass/internal/gas"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/mocks"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	logger.InitLogger("test")
}

const (
	registry = "0xf2556D5ce076afCbFEC583EBc0876f68FC39329A"
	caller   = "0x1111111111111111111111111111111111111111"
)

func kairos(t *testing.T) networks.Network {
	network, ok := networks.DefaultRegistry().Lookup(1001)
	require.True(t, ok)
	return network
}

func TestEstimator_Estimate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockChainBackend(ctrl)
	estimator := gas.NewEstimator(backend, kairos(t))
	ctx := context.Background()

	tests := []struct {
		name       string
		op         gas.Operation
		setupMocks func()
		want       gas.GasEstimate
	}{
		{
			name: "adds margin and keeps network price above floor",
			op:   gas.OperationIssue,
			setupMocks: func() {
				backend.EXPECT().EstimateGas(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
						require.NotNil(t, msg.To)
						assert.Equal(t, common.HexToAddress(registry), *msg.To)
						assert.Equal(t, common.HexToAddress(caller), msg.From)
						return 200_000, nil
					})
				backend.EXPECT().SuggestGasPrice(ctx).Return(big.NewInt(30_000_000_000), nil)
			},
			want: gas.GasEstimate{
				GasLimit:      "240000",
				GasPrice:      "30000000000",
				EstimatedCost: "7200000000000000",
			},
		},
		{
			name: "network price below floor is raised to floor",
			op:   gas.OperationUpdate,
			setupMocks: func() {
				backend.EXPECT().EstimateGas(ctx, gomock.Any()).Return(uint64(100_000), nil)
				backend.EXPECT().SuggestGasPrice(ctx).Return(big.NewInt(1_000_000_000), nil)
			},
			want: gas.GasEstimate{
				GasLimit:      "120000",
				GasPrice:      "25000000000",
				EstimatedCost: "3000000000000000",
			},
		},
		{
			name: "estimation failure falls back to operation default",
			op:   gas.OperationDeactivate,
			setupMocks: func() {
				backend.EXPECT().EstimateGas(ctx, gomock.Any()).Return(uint64(0), errors.New("execution reverted"))
				backend.EXPECT().SuggestGasPrice(ctx).Return(nil, errors.New("connection refused"))
			},
			want: gas.GasEstimate{
				GasLimit:      "150000",
				GasPrice:      "25000000000",
				EstimatedCost: "3750000000000000",
				Fallback:      true,
			},
		},
		{
			name: "generic fallback is two million gas",
			op:   gas.OperationGeneric,
			setupMocks: func() {
				backend.EXPECT().EstimateGas(ctx, gomock.Any()).Return(uint64(0), errors.New("timeout"))
				backend.EXPECT().SuggestGasPrice(ctx).Return(big.NewInt(25_000_000_000), nil)
			},
			want: gas.GasEstimate{
				GasLimit:      "2000000",
				GasPrice:      "25000000000",
				EstimatedCost: "50000000000000000",
				Fallback:      true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			got := estimator.Estimate(ctx, gas.CallRequest{From: caller, To: registry, Data: []byte{0x01}}, tt.op)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimator_AdjustedGasPrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockChainBackend(ctrl)
	backend.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(25_000_000_000), nil)

	price := gas.NewEstimator(backend, kairos(t)).AdjustedGasPrice(context.Background(), 110)
	assert.Equal(t, big.NewInt(27_500_000_000), price)
}

type statsBackend struct {
	*mocks.MockChainBackend
	*mocks.MockHeaderReader
}

func TestEstimator_NetworkStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := statsBackend{mocks.NewMockChainBackend(ctrl), mocks.NewMockHeaderReader(ctrl)}
	backend.MockChainBackend.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(50_000_000_000), nil)
	backend.MockHeaderReader.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).
		Return(&types.Header{GasLimit: 1_000_000, GasUsed: 250_000}, nil)

	stats := gas.NewEstimator(backend, kairos(t)).NetworkStats(context.Background())
	assert.Equal(t, gas.NetworkStats{
		AverageGasPrice:  "50000000000",
		FastGasPrice:     "55000000000",
		BlockUtilization: 25,
	}, stats)
}

func TestEstimator_NetworkStatsDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockChainBackend(ctrl)
	backend.EXPECT().SuggestGasPrice(gomock.Any()).Return(nil, errors.New("down"))

	stats := gas.NewEstimator(backend, kairos(t)).NetworkStats(context.Background())
	assert.Equal(t, "25000000000", stats.AverageGasPrice)
	assert.Equal(t, "27500000000", stats.FastGasPrice)
	assert.Equal(t, uint64(50), stats.BlockUtilization)
}
