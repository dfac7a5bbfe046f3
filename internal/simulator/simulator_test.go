package simulator_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/simulator"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

var kim = codec.IdentityInfo{Name: "Kim", BirthDate: "1990-01-01", Address: "Seoul", Phone: "010-1111-2222"}

func send(t *testing.T, p *simulator.Provider, data []byte, gas uint64) (string, error) {
	t.Helper()
	tx := map[string]string{
		"from": p.Accounts()[0],
		"to":   p.ContractAddress(),
		"data": hexutil.Encode(data),
	}
	if gas > 0 {
		tx["gas"] = hexutil.EncodeUint64(gas)
	}
	raw, err := p.Request(context.Background(), "eth_sendTransaction", tx)
	if err != nil {
		return "", err
	}
	var hash string
	require.NoError(t, json.Unmarshal(raw, &hash))
	return hash, nil
}

func call(t *testing.T, p *simulator.Provider, data []byte) ([]byte, error) {
	t.Helper()
	raw, err := p.Request(context.Background(), "eth_call", map[string]string{
		"from": p.Accounts()[0],
		"to":   p.ContractAddress(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, nil
}

func TestRegistryLifecycle(t *testing.T) {
	p := simulator.MustNew()
	user := common.HexToAddress(p.Accounts()[0])

	create, err := codec.EncodeCreate(kim)
	require.NoError(t, err)
	_, err = send(t, p, create, 0)
	require.NoError(t, err)

	_, err = send(t, p, create, 0)
	require.Error(t, err)
	code, ok := wallet.ProviderErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, constants.ProviderCodeExecutionReverted, code)
	assert.Contains(t, err.Error(), "Active DID already exists")

	updated := kim
	updated.Address = "Busan"
	update, err := codec.EncodeUpdate(updated)
	require.NoError(t, err)
	_, err = send(t, p, update, 0)
	require.NoError(t, err)

	history := p.Registry().History(user)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsActive)
	assert.True(t, history[1].IsActive)
	assert.Equal(t, uint64(2), history[1].Version)
	assert.Equal(t, "Busan", history[1].Address)

	deactivate, err := codec.EncodeDeactivate()
	require.NoError(t, err)
	_, err = send(t, p, deactivate, 0)
	require.NoError(t, err)
	_, err = send(t, p, deactivate, 0)
	assert.ErrorContains(t, err, "No active DID found")

	data, err := codec.EncodeHasActiveDID(user.Hex())
	require.NoError(t, err)
	out, err := call(t, p, data)
	require.NoError(t, err)
	active, err := codec.DecodeBool(out)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSendBelowMinimumGas(t *testing.T) {
	p := simulator.MustNew()
	p.Registry().SetMinGas(codec.MethodCreateDID, 400_000)

	create, err := codec.EncodeCreate(kim)
	require.NoError(t, err)

	_, err = send(t, p, create, 350_000)
	assert.ErrorContains(t, err, "intrinsic gas too low")

	hash, err := send(t, p, create, 420_000)
	require.NoError(t, err)

	raw, err := p.Request(context.Background(), "eth_getTransactionReceipt", hash)
	require.NoError(t, err)
	var r struct {
		Status  hexutil.Uint64 `json:"status"`
		GasUsed hexutil.Uint64 `json:"gasUsed"`
	}
	require.NoError(t, json.Unmarshal(raw, &r))
	assert.Equal(t, hexutil.Uint64(1), r.Status)
	assert.Equal(t, hexutil.Uint64(400_000), r.GasUsed)
}

func TestOwnerOnlyReads(t *testing.T) {
	p := simulator.MustNew(simulator.WithAccounts(2))
	stranger := simulator.MustNew(simulator.WithRegistry(p.Registry()))

	data, err := codec.EncodeAllRegisteredAddresses()
	require.NoError(t, err)

	_, err = call(t, p, data)
	assert.NoError(t, err)

	_, err = call(t, stranger, data)
	assert.ErrorContains(t, err, "Only owner")
}

func TestLatestDIDRevertsWithoutHistory(t *testing.T) {
	p := simulator.MustNew()
	data, err := codec.EncodeLatestDID(p.Accounts()[0])
	require.NoError(t, err)

	_, err = call(t, p, data)
	assert.ErrorContains(t, err, "No DID found")

	history, err := codec.EncodeAllDIDHistory(p.Accounts()[0])
	require.NoError(t, err)
	out, err := call(t, p, history)
	require.NoError(t, err)
	docs, err := codec.DecodeDIDDocumentList(codec.MethodGetAllDIDHistory, out)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPersonalSignRecoversSigner(t *testing.T) {
	p := simulator.MustNew()
	message := []byte("login to kaiapass")

	raw, err := p.Request(context.Background(), "personal_sign", hexutil.Encode(message), p.Accounts()[0])
	require.NoError(t, err)
	var sigHex string
	require.NoError(t, json.Unmarshal(raw, &sigHex))

	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[crypto.RecoveryIDOffset] -= 27

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	require.NoError(t, err)
	assert.Equal(t, p.Accounts()[0], crypto.PubkeyToAddress(*pub).Hex())
}

func TestSwitchChainRequiresKnownChain(t *testing.T) {
	p := simulator.MustNew(simulator.WithKnownChains(constants.KairosChainID))
	ctx := context.Background()

	var seen []wallet.ProviderEvent
	p.Subscribe(wallet.ProviderEventNetworkChanged, func(ev wallet.ProviderEvent) { seen = append(seen, ev) })

	_, err := p.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": "0x2019"})
	code, ok := wallet.ProviderErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, constants.ProviderCodeUnrecognizedChain, code)

	_, err = p.Request(ctx, "wallet_addEthereumChain", map[string]string{"chainId": "0x2019"})
	require.NoError(t, err)
	_, err = p.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": "0x2019"})
	require.NoError(t, err)

	assert.Equal(t, constants.KaiaMainnetChainID, p.ChainID())
	require.Len(t, seen, 1)
	assert.Equal(t, "0x2019", seen[0].ChainID)
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	p := simulator.MustNew()
	p.RejectNext("eth_requestAccounts")
	ctx := context.Background()

	_, err := p.Request(ctx, "eth_requestAccounts")
	code, ok := wallet.ProviderErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, constants.ProviderCodeUserRejected, code)

	_, err = p.Request(ctx, "eth_requestAccounts")
	assert.NoError(t, err)
	assert.Equal(t, 2, p.Calls("eth_requestAccounts"))
}
