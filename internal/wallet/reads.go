package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaiacity/kaiapass/internal/networks"
)

// ReadCallGas is the gas cap attached to eth_call reads (100M).
const ReadCallGas = 0x5F5E100

type rpcCall struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
	Gas   string `json:"gas,omitempty"`
}

// GetAccount re-reads the wallet's first account. It returns nil without an
// error when the adapter is not connected.
func (a *ProviderAdapter) GetAccount(ctx context.Context) (*Account, error) {
	handle, _, err := a.connectedHandle("getAccount")
	if err != nil {
		return nil, nil
	}
	var accounts []string
	if err := a.request(ctx, handle, "eth_accounts", &accounts); err != nil {
		return nil, classify("getAccount", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	account, err := a.fetchAccount(ctx, handle, accounts[0])
	if err != nil {
		return nil, classify("getAccount", err)
	}
	return account, nil
}

// GetNetwork re-reads the wallet's chain. It returns nil without an error when
// the adapter is not connected.
func (a *ProviderAdapter) GetNetwork(ctx context.Context) (*networks.Network, error) {
	handle, _, err := a.connectedHandle("getNetwork")
	if err != nil {
		return nil, nil
	}
	network, err := a.fetchNetwork(ctx, handle)
	if err != nil {
		return nil, classify("getNetwork", err)
	}
	return &network, nil
}

// GetBalance returns the balance of address in peb, defaulting to the
// connected account.
func (a *ProviderAdapter) GetBalance(ctx context.Context, address string) (string, error) {
	const op = "getBalance"
	handle, account, err := a.connectedHandle(op)
	if err != nil {
		return "", err
	}
	if address == "" {
		address = account.Address
	}
	if !common.IsHexAddress(address) {
		return "", NewPreconditionError(op, ReasonInvalidInput, fmt.Sprintf("invalid address %q", address))
	}
	var balance hexutil.Big
	if err := a.request(ctx, handle, "eth_getBalance", &balance, common.HexToAddress(address).Hex(), "latest"); err != nil {
		return "", classify(op, err)
	}
	return weiString(balance.ToInt()), nil
}

// Call performs a read-only eth_call against the latest block.
func (a *ProviderAdapter) Call(ctx context.Context, params CallParams) ([]byte, error) {
	handle, err := a.liveHandle("call")
	if err != nil {
		return nil, err
	}
	call := rpcCall{
		From: params.From,
		To:   params.To,
		Data: hexutil.Encode(params.Data),
		Gas:  hexutil.EncodeUint64(ReadCallGas),
	}
	var out hexutil.Bytes
	if err := a.request(ctx, handle, "eth_call", &out, call, "latest"); err != nil {
		return nil, classify("call", err)
	}
	return out, nil
}

// CodeAt returns the deployed bytecode at address.
func (a *ProviderAdapter) CodeAt(ctx context.Context, address string) ([]byte, error) {
	handle, err := a.liveHandle("getCode")
	if err != nil {
		return nil, err
	}
	var code hexutil.Bytes
	if err := a.request(ctx, handle, "eth_getCode", &code, address, "latest"); err != nil {
		return nil, classify("getCode", err)
	}
	return code, nil
}

// BlockNumber returns the latest block number seen by the wallet.
func (a *ProviderAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	handle, err := a.liveHandle("blockNumber")
	if err != nil {
		return 0, err
	}
	var n hexutil.Uint64
	if err := a.request(ctx, handle, "eth_blockNumber", &n); err != nil {
		return 0, classify("blockNumber", err)
	}
	return uint64(n), nil
}

// EstimateGas implements gas.ChainBackend through the wallet.
func (a *ProviderAdapter) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	handle, err := a.liveHandle("estimateGas")
	if err != nil {
		return 0, err
	}
	call := rpcCall{From: msg.From.Hex(), Data: hexutil.Encode(msg.Data)}
	if msg.To != nil {
		call.To = msg.To.Hex()
	}
	if msg.Value != nil {
		call.Value = hexutil.EncodeBig(msg.Value)
	}
	var limit hexutil.Uint64
	if err := a.request(ctx, handle, "eth_estimateGas", &limit, call); err != nil {
		return 0, err
	}
	return uint64(limit), nil
}

// SuggestGasPrice implements gas.ChainBackend through the wallet.
func (a *ProviderAdapter) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	handle, err := a.liveHandle("gasPrice")
	if err != nil {
		return nil, err
	}
	var price hexutil.Big
	if err := a.request(ctx, handle, "eth_gasPrice", &price); err != nil {
		return nil, err
	}
	return price.ToInt(), nil
}

type rpcBlockHeader struct {
	Number   *hexutil.Big   `json:"number"`
	GasLimit hexutil.Uint64 `json:"gasLimit"`
	GasUsed  hexutil.Uint64 `json:"gasUsed"`
	Time     hexutil.Uint64 `json:"timestamp"`
}

// HeaderByNumber returns the fields of a block header needed for fee
// statistics. A nil number selects the latest block.
func (a *ProviderAdapter) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	handle, err := a.liveHandle("getBlockByNumber")
	if err != nil {
		return nil, err
	}
	tag := "latest"
	if number != nil {
		tag = hexutil.EncodeBig(number)
	}
	var head *rpcBlockHeader
	if err := a.request(ctx, handle, "eth_getBlockByNumber", &head, tag, false); err != nil {
		return nil, err
	}
	if head == nil {
		return nil, ethereum.NotFound
	}
	header := &types.Header{GasLimit: uint64(head.GasLimit), GasUsed: uint64(head.GasUsed), Time: uint64(head.Time)}
	if head.Number != nil {
		header.Number = head.Number.ToInt()
	}
	return header, nil
}
