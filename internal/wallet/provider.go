package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Provider event names as emitted by injected wallets.
const (
	ProviderEventAccountsChanged = "accountsChanged"
	ProviderEventChainChanged    = "chainChanged"
	ProviderEventNetworkChanged  = "networkChanged"
	ProviderEventDisconnect      = "disconnect"
	ProviderEventError           = "error"
)

// ProviderEvent is a notification pushed by an injected provider.
type ProviderEvent struct {
	Name     string
	Accounts []string
	ChainID  string
	Err      error
}

// Subscription is an active provider event registration.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// ProviderMarkers are the identity flags a wallet sets on its injected object.
type ProviderMarkers struct {
	IsKaikas         bool `json:"is_kaikas"`
	IsMetaMask       bool `json:"is_metamask"`
	IsPhantom        bool `json:"is_phantom"`
	IsCoinbaseWallet bool `json:"is_coinbase_wallet"`
	IsBraveWallet    bool `json:"is_brave_wallet"`
}

// InjectedProvider is an EIP-1193 style wallet handle.
//go:generate mockgen -source=provider.go -destination=../mocks/mock_provider.go -package=mocks

type InjectedProvider interface {
	// Request performs a JSON-RPC call through the wallet.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// Subscribe registers handler for the named event until the returned
	// subscription is cancelled.
	Subscribe(event string, handler func(ProviderEvent)) Subscription
	Markers() ProviderMarkers
}

// ProviderError is a JSON-RPC error returned by a provider.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ErrorCode implements go-ethereum's rpc.Error.
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// Host is what the runtime exposes for provider discovery: the klaytn slot,
// the ethereum slot and the ethereum.providers list set when several wallets
// are installed.
type Host struct {
	Klaytn            InjectedProvider
	Ethereum          InjectedProvider
	EthereumProviders []InjectedProvider
}

// Environment returns the current Host. Providers may appear or disappear
// between calls.
type Environment interface {
	Host() Host
}

// StaticEnvironment is a mutable, concurrency-safe Environment.
type StaticEnvironment struct {
	mu   sync.RWMutex
	host Host
}

// NewStaticEnvironment wraps host.
func NewStaticEnvironment(host Host) *StaticEnvironment {
	return &StaticEnvironment{host: host}
}

// Host returns a copy of the current host.
func (e *StaticEnvironment) Host() Host {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h := e.host
	h.EthereumProviders = append([]InjectedProvider(nil), e.host.EthereumProviders...)
	return h
}

// SetHost replaces the host.
func (e *StaticEnvironment) SetHost(host Host) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.host = host
}
