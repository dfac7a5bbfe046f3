package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want wallet.ErrorKind
	}{
		{name: "user rejected code", err: &wallet.ProviderError{Code: 4001, Message: "denied"}, want: wallet.KindUserRejected},
		{name: "user rejected text", err: errors.New("MetaMask Tx Signature: User denied transaction signature."), want: wallet.KindUserRejected},
		{name: "intrinsic gas", err: errors.New("intrinsic gas too low"), want: wallet.KindGas},
		{name: "out of gas", err: errors.New("out of gas"), want: wallet.KindGas},
		{name: "insufficient funds", err: errors.New("insufficient funds for gas * price + value"), want: wallet.KindGas},
		{name: "nonce", err: errors.New("nonce too low"), want: wallet.KindNonce},
		{name: "deadline", err: fmt.Errorf("request: %w", context.DeadlineExceeded), want: wallet.KindNetwork},
		{name: "network text", err: errors.New("network error"), want: wallet.KindNetwork},
		{name: "unknown", err: errors.New("execution reverted: Only owner"), want: wallet.KindUnknown},
		{name: "already classified", err: wallet.NewPreconditionError("issue", wallet.ReasonWrongNetwork, "wrong"), want: wallet.KindPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wallet.Classify(tt.err))
		})
	}
}

func TestIsGasRelated(t *testing.T) {
	assert.True(t, wallet.IsGasRelated(errors.New("Intrinsic Gas Too Low")))
	assert.True(t, wallet.IsGasRelated(errors.New("insufficient balance")))
	assert.False(t, wallet.IsGasRelated(errors.New("nonce too low")))
	assert.False(t, wallet.IsGasRelated(nil))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{errors.New("insufficient funds for gas * price + value"), "Insufficient balance"},
		{errors.New("intrinsic gas too low"), "Gas limit is too low"},
		{errors.New("exceeds block gas limit"), "Gas limit exceeded"},
		{errors.New("nonce too low"), "Nonce conflict"},
		{&wallet.ProviderError{Code: 4001, Message: "denied"}, "rejected in the wallet"},
		{errors.New("network unreachable"), "Network problem"},
		{errors.New("boom"), "Transaction failed: boom"},
	}
	for _, tt := range tests {
		assert.Contains(t, wallet.Describe(tt.err), tt.contains)
	}
}

func TestPreconditionHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", wallet.NewPreconditionError("issue", wallet.ReasonNotConnected, "not connected"))
	assert.True(t, wallet.IsPrecondition(err, wallet.ReasonNotConnected))
	assert.False(t, wallet.IsPrecondition(err, wallet.ReasonWrongNetwork))
	assert.True(t, wallet.IsKind(err, wallet.KindPrecondition))
	assert.Equal(t, wallet.KindUnknown, wallet.KindOf(errors.New("plain")))

	code, ok := wallet.ProviderErrorCode(fmt.Errorf("x: %w", &wallet.ProviderError{Code: 4902}))
	assert.True(t, ok)
	assert.Equal(t, 4902, code)
}
