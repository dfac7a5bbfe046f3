// Package wallet manages connections to injected wallet providers: detection,
// the per-provider connection state machine, transaction submission with gas
// escalation, and the façade that keeps a single live connection.
package wallet

//go:generate mockgen -source=types.go -destination=../mocks/mock_wallet.go -package=mocks

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/kaiacity/kaiapass/internal/networks"
)

// WalletProvider identifies a supported wallet family.
type WalletProvider string

const (
	ProviderKaikas   WalletProvider = "KAIKAS"
	ProviderMetaMask WalletProvider = "METAMASK"
)

// ParseWalletProvider accepts provider names case-insensitively.
func ParseWalletProvider(raw string) (WalletProvider, bool) {
	switch WalletProvider(strings.ToUpper(strings.TrimSpace(raw))) {
	case ProviderKaikas:
		return ProviderKaikas, true
	case ProviderMetaMask:
		return ProviderMetaMask, true
	}
	return "", false
}

// ConnectionStatus is the adapter's lifecycle state.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusError        ConnectionStatus = "ERROR"
)

// Account is a connected address and its balance in peb. Values are replaced,
// never mutated.
type Account struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// Diagnostic keeps the last account and network seen before a runtime error
// so they can still be displayed while the adapter is in ERROR.
type Diagnostic struct {
	Account *Account          `json:"account,omitempty"`
	Network *networks.Network `json:"network,omitempty"`
}

// WalletState is a snapshot of an adapter. Account and Network are set if and
// only if Status is CONNECTED.
type WalletState struct {
	Provider  WalletProvider    `json:"provider"`
	Status    ConnectionStatus  `json:"status"`
	Account   *Account          `json:"account,omitempty"`
	Network   *networks.Network `json:"network,omitempty"`
	Error     string            `json:"error,omitempty"`
	LastKnown *Diagnostic       `json:"last_known,omitempty"`
}

// IsConnected reports whether the snapshot holds a live connection.
func (s WalletState) IsConnected() bool {
	return s.Status == StatusConnected && s.Account != nil && s.Network != nil
}

// TransactionParams uses decimal strings for value, gas and gasPrice; data is
// 0x-prefixed hex. Empty gas fields are left for the wallet to fill.
type TransactionParams struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`
}

// TransactionResult describes a mined transaction.
type TransactionResult struct {
	Hash        string  `json:"hash"`
	BlockNumber *uint64 `json:"block_number,omitempty"`
	GasUsed     string  `json:"gas_used,omitempty"`
}

// CallParams describes a read-only eth_call.
type CallParams struct {
	From string
	To   string
	Data []byte
}

// EventName names adapter events.
type EventName string

const (
	EventConnect         EventName = "connect"
	EventDisconnect      EventName = "disconnect"
	EventError           EventName = "error"
	EventAccountsChanged EventName = "accountsChanged"
	EventChainChanged    EventName = "chainChanged"
)

// Event is delivered to listeners registered with On.
type Event struct {
	Name     EventName
	Provider WalletProvider
	Account  *Account
	Accounts []string
	ChainID  uint64
	Err      error
}

// Listener receives adapter events. Listeners run on the goroutine that
// produced the event and must not block.
type Listener func(Event)

// ListenerID identifies a registered listener for Off.
type ListenerID uint64

// Wallet is the capability set of a single provider adapter.
type Wallet interface {
	Provider() WalletProvider
	IsAvailable() bool
	Connect(ctx context.Context) (*Account, error)
	Disconnect(ctx context.Context) error
	State() WalletState
	GetAccount(ctx context.Context) (*Account, error)
	GetNetwork(ctx context.Context) (*networks.Network, error)
	GetBalance(ctx context.Context, address string) (string, error)
	SendTransaction(ctx context.Context, params TransactionParams, maxRetries int) (*TransactionResult, error)
	SignMessage(ctx context.Context, message string) (string, error)
	SwitchNetwork(ctx context.Context, chainID uint64) error
	Call(ctx context.Context, params CallParams) ([]byte, error)
	CodeAt(ctx context.Context, address string) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	On(event EventName, listener Listener) ListenerID
	Off(event EventName, id ListenerID)
}
