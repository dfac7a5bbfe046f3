package wallet_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/mocks"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testAccount = "0x1111111111111111111111111111111111111111"

// connectedMock returns an adapter connected through a gomock provider.
func connectedMock(t *testing.T) (*wallet.ProviderAdapter, *mocks.MockInjectedProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockInjectedProvider(ctrl)
	provider.EXPECT().Markers().Return(wallet.ProviderMarkers{IsKaikas: true}).AnyTimes()
	provider.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Return(wallet.SubscriptionFunc(func() {})).AnyTimes()
	provider.EXPECT().Request(gomock.Any(), "eth_requestAccounts").Return(json.RawMessage(`["`+testAccount+`"]`), nil)
	provider.EXPECT().Request(gomock.Any(), "eth_getBalance", testAccount, "latest").Return(json.RawMessage(`"0xde0b6b3a7640000"`), nil)
	provider.EXPECT().Request(gomock.Any(), "eth_chainId").Return(json.RawMessage(`"0x3e9"`), nil)

	env := wallet.NewStaticEnvironment(wallet.Host{Klaytn: provider})
	adapter := wallet.NewProviderAdapter(wallet.ProviderKaikas, env, networks.DefaultRegistry(), fastOptions()...)
	_, err := adapter.Connect(context.Background())
	require.NoError(t, err)
	return adapter, provider
}

type sentTx struct {
	From     string `json:"from"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
}

func capture(t *testing.T, sent *[]sentTx, result json.RawMessage, err error) func(context.Context, string, ...any) (json.RawMessage, error) {
	return func(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
		require.Len(t, params, 1)
		raw, mErr := json.Marshal(params[0])
		require.NoError(t, mErr)
		var tx sentTx
		require.NoError(t, json.Unmarshal(raw, &tx))
		*sent = append(*sent, tx)
		return result, err
	}
}

var baseParams = wallet.TransactionParams{
	To:       "0xf2556D5ce076afCbFEC583EBc0876f68FC39329A",
	Data:     "0xdeadbeef",
	Gas:      "350000",
	GasPrice: "25000000000",
}

func TestSendTransaction_GasRetryEscalates(t *testing.T) {
	adapter, provider := connectedMock(t)
	var sent []sentTx

	provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).
		DoAndReturn(capture(t, &sent, nil, &wallet.ProviderError{Code: -32000, Message: "intrinsic gas too low"}))
	provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).
		DoAndReturn(capture(t, &sent, json.RawMessage(`"0xabc"`), nil))
	provider.EXPECT().Request(gomock.Any(), "eth_getTransactionReceipt", "0xabc").
		Return(json.RawMessage(`{"transactionHash":"0xabc","blockNumber":"0x5","gasUsed":"0x5208","status":"0x1"}`), nil)

	result, err := adapter.SendTransaction(context.Background(), baseParams, 3)
	require.NoError(t, err)

	assert.Equal(t, "0xabc", result.Hash)
	require.NotNil(t, result.BlockNumber)
	assert.Equal(t, uint64(5), *result.BlockNumber)
	assert.Equal(t, "21000", result.GasUsed)

	require.Len(t, sent, 2)
	assert.Equal(t, testAccount, sent[0].From)
	assert.Equal(t, "0x55730", sent[0].Gas, "350000")
	assert.Equal(t, "0x5d21dba00", sent[0].GasPrice, "25 gkei")
	assert.Equal(t, "0x668a0", sent[1].Gas, "420000 = 350000 * 1.2")
	assert.Equal(t, "0x66720b300", sent[1].GasPrice, "27.5 gkei = 25 gkei * 1.1")
}

func TestSendTransaction_NonGasFailureIsFinal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind wallet.ErrorKind
	}{
		{name: "user rejection", err: &wallet.ProviderError{Code: 4001, Message: "User denied transaction signature"}, wantKind: wallet.KindUserRejected},
		{name: "nonce", err: &wallet.ProviderError{Code: -32000, Message: "nonce too low"}, wantKind: wallet.KindNonce},
		{name: "revert", err: &wallet.ProviderError{Code: 3, Message: "execution reverted: Only owner"}, wantKind: wallet.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, provider := connectedMock(t)
			provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).Return(nil, tt.err).Times(1)

			result, err := adapter.SendTransaction(context.Background(), baseParams, 3)
			assert.Nil(t, result)
			require.Error(t, err)

			var werr *wallet.Error
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, tt.wantKind, werr.Kind)
			assert.Equal(t, "sendTransaction", werr.Op)
			assert.Empty(t, werr.TxHash)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSendTransaction_RevertedReceiptCarriesHash(t *testing.T) {
	adapter, provider := connectedMock(t)
	provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).Return(json.RawMessage(`"0xfeed"`), nil)
	provider.EXPECT().Request(gomock.Any(), "eth_getTransactionReceipt", "0xfeed").
		Return(json.RawMessage(`{"transactionHash":"0xfeed","blockNumber":"0x7","gasUsed":"0x5208","status":"0x0"}`), nil)

	_, err := adapter.SendTransaction(context.Background(), baseParams, 3)

	var werr *wallet.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "0xfeed", werr.TxHash)
	assert.Contains(t, werr.Err.Error(), "reverted")
}

func TestSendTransaction_PendingReceiptIsPolled(t *testing.T) {
	adapter, provider := connectedMock(t)
	provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).Return(json.RawMessage(`"0x01"`), nil)
	provider.EXPECT().Request(gomock.Any(), "eth_getTransactionReceipt", "0x01").Return(json.RawMessage(`null`), nil).Times(2)
	provider.EXPECT().Request(gomock.Any(), "eth_getTransactionReceipt", "0x01").
		Return(json.RawMessage(`{"transactionHash":"0x01","blockNumber":"0x2","gasUsed":"0x1","status":"0x1"}`), nil)

	result, err := adapter.SendTransaction(context.Background(), baseParams, 1)
	require.NoError(t, err)
	assert.Equal(t, "0x01", result.Hash)
}

func TestSendTransaction_GasExhaustsRetries(t *testing.T) {
	adapter, sim := kaikasAdapter(t)
	ctx := context.Background()
	_, err := adapter.Connect(ctx)
	require.NoError(t, err)
	sim.Registry().SetMinGas(codec.MethodCreateDID, 1_000_000)

	data, err := codec.EncodeCreate(codec.IdentityInfo{Name: "Kim"})
	require.NoError(t, err)
	params := wallet.TransactionParams{To: sim.ContractAddress(), Data: hexutil.Encode(data), Gas: "350000", GasPrice: "25000000000"}

	_, err = adapter.SendTransaction(ctx, params, 3)
	assert.True(t, wallet.IsKind(err, wallet.KindGas))
	assert.Equal(t, 3, sim.Calls("eth_sendTransaction"))
}

func TestSendTransaction_SimulatedRetrySucceeds(t *testing.T) {
	adapter, sim := kaikasAdapter(t)
	ctx := context.Background()
	_, err := adapter.Connect(ctx)
	require.NoError(t, err)
	sim.Registry().SetMinGas(codec.MethodCreateDID, 400_000)

	data, err := codec.EncodeCreate(codec.IdentityInfo{Name: "Kim", BirthDate: "1990-01-01", Address: "Seoul", Phone: "010-1111-2222"})
	require.NoError(t, err)
	params := wallet.TransactionParams{To: sim.ContractAddress(), Data: hexutil.Encode(data), Gas: "350000", GasPrice: "25000000000"}

	result, err := adapter.SendTransaction(ctx, params, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, "400000", result.GasUsed)
	assert.Equal(t, 2, sim.Calls("eth_sendTransaction"))
}

func TestSendTransaction_NotConnected(t *testing.T) {
	adapter, sim := kaikasAdapter(t)
	_, err := adapter.SendTransaction(context.Background(), baseParams, 3)
	assert.True(t, wallet.IsPrecondition(err, wallet.ReasonNotConnected))
	assert.Equal(t, 0, sim.TotalCalls())
}

func TestSendTransaction_CancelledDuringBackoff(t *testing.T) {
	adapter, provider := connectedMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	provider.EXPECT().Request(gomock.Any(), "eth_sendTransaction", gomock.Any()).
		DoAndReturn(func(context.Context, string, ...any) (json.RawMessage, error) {
			cancel()
			return nil, &wallet.ProviderError{Code: -32000, Message: "out of gas"}
		})

	_, err := adapter.SendTransaction(ctx, baseParams, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
