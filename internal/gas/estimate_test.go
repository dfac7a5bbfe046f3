package gas_test

import (
	"math/big"
	"testing"

	"github.com/kaiacity/kaiapass/internal/gas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryGasSettings(t *testing.T) {
	base := gas.GasEstimate{GasLimit: "350000", GasPrice: "25000000000", EstimatedCost: "8750000000000000"}

	tests := []struct {
		name      string
		attempt   int
		wantLimit string
		wantPrice string
	}{
		{name: "attempt zero is unchanged", attempt: 0, wantLimit: "350000", wantPrice: "25000000000"},
		{name: "first retry", attempt: 1, wantLimit: "420000", wantPrice: "27500000000"},
		{name: "second retry", attempt: 2, wantLimit: "490000", wantPrice: "30000000000"},
		{name: "fifth retry", attempt: 5, wantLimit: "700000", wantPrice: "37500000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gas.RetryGasSettings(base, tt.attempt)
			assert.Equal(t, tt.wantLimit, got.GasLimit)
			assert.Equal(t, tt.wantPrice, got.GasPrice)

			limit, _ := new(big.Int).SetString(got.GasLimit, 10)
			price, _ := new(big.Int).SetString(got.GasPrice, 10)
			assert.Equal(t, new(big.Int).Mul(limit, price).String(), got.EstimatedCost)
		})
	}
}

func TestRetryGasSettings_Monotonic(t *testing.T) {
	bases := []gas.GasEstimate{
		gas.DefaultEstimate(gas.OperationIssue),
		gas.DefaultEstimate(gas.OperationDeactivate),
		{GasLimit: "21000", GasPrice: "25000000000"},
	}

	for _, base := range bases {
		prev := base
		for n := 1; n <= 10; n++ {
			next := gas.RetryGasSettings(base, n)
			prevLimit, err := gas.ParseQuantity(prev.GasLimit)
			require.NoError(t, err)
			nextLimit, err := gas.ParseQuantity(next.GasLimit)
			require.NoError(t, err)
			prevPrice, err := gas.ParseQuantity(prev.GasPrice)
			require.NoError(t, err)
			nextPrice, err := gas.ParseQuantity(next.GasPrice)
			require.NoError(t, err)

			assert.Equal(t, 1, nextLimit.Cmp(prevLimit), "limit must grow at attempt %d", n)
			assert.Equal(t, 1, nextPrice.Cmp(prevPrice), "price must grow at attempt %d", n)
			prev = next
		}
	}
}

func TestRetryGasSettings_UnparseableFieldsPassThrough(t *testing.T) {
	got := gas.RetryGasSettings(gas.GasEstimate{GasLimit: "", GasPrice: "0x5d21dba00"}, 1)
	assert.Equal(t, "", got.GasLimit)
	assert.Equal(t, "27500000000", got.GasPrice)
}

func TestDefaultEstimate(t *testing.T) {
	tests := []struct {
		op        gas.Operation
		wantLimit string
	}{
		{op: gas.OperationIssue, wantLimit: "350000"},
		{op: gas.OperationUpdate, wantLimit: "250000"},
		{op: gas.OperationDeactivate, wantLimit: "150000"},
		{op: gas.OperationGeneric, wantLimit: "2000000"},
		{op: gas.Operation("transfer"), wantLimit: "2000000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got := gas.DefaultEstimate(tt.op)
			assert.Equal(t, tt.wantLimit, got.GasLimit)
			assert.Equal(t, "25000000000", got.GasPrice)
			assert.True(t, got.Fallback)
		})
	}
}

func TestParseQuantity(t *testing.T) {
	n, err := gas.ParseQuantity("0x3e8")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n.Int64())

	_, err = gas.ParseQuantity("-5")
	assert.Error(t, err)
	_, err = gas.ParseQuantity("abc")
	assert.Error(t, err)
}
