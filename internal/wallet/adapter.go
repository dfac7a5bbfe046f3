package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"go.uber.org/zap"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultRetryDelay     = time.Second
	DefaultMaxRetries     = 3
)

// Option configures a ProviderAdapter.
type Option func(*ProviderAdapter)

// WithRequestTimeout bounds every provider request.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *ProviderAdapter) { a.requestTimeout = d }
}

// WithReceiptTimeout bounds how long SendTransaction waits for a receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(a *ProviderAdapter) { a.receiptTimeout = d }
}

// WithReceiptPolling sets the receipt polling backoff bounds.
func WithReceiptPolling(initial, max time.Duration) Option {
	return func(a *ProviderAdapter) {
		a.receiptInitialInterval = initial
		a.receiptMaxInterval = max
	}
}

// WithRetryDelay sets the base delay between send attempts; attempt n waits
// n times this value.
func WithRetryDelay(d time.Duration) Option {
	return func(a *ProviderAdapter) { a.retryDelay = d }
}

// WithLogger overrides the adapter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *ProviderAdapter) { a.logger = l }
}

// ProviderAdapter drives one wallet provider through the connection state
// machine. It owns its WalletState; callers see snapshots.
type ProviderAdapter struct {
	provider WalletProvider
	env      Environment
	registry *networks.Registry
	logger   *zap.Logger

	requestTimeout         time.Duration
	receiptTimeout         time.Duration
	receiptInitialInterval time.Duration
	receiptMaxInterval     time.Duration
	retryDelay             time.Duration

	mu     sync.Mutex
	state  WalletState
	handle InjectedProvider
	// session increments on every connect and disconnect so that provider
	// events and connect results from an older session are dropped.
	session uint64
	subs    []Subscription

	listenerMu   sync.Mutex
	listeners    map[EventName]map[ListenerID]Listener
	nextListener ListenerID
}

var _ Wallet = (*ProviderAdapter)(nil)

// NewProviderAdapter creates a disconnected adapter for provider.
func NewProviderAdapter(provider WalletProvider, env Environment, registry *networks.Registry, opts ...Option) *ProviderAdapter {
	a := &ProviderAdapter{
		provider:               provider,
		env:                    env,
		registry:               registry,
		logger:                 logger.Log,
		requestTimeout:         DefaultRequestTimeout,
		receiptTimeout:         DefaultReceiptTimeout,
		receiptInitialInterval: 500 * time.Millisecond,
		receiptMaxInterval:     5 * time.Second,
		retryDelay:             DefaultRetryDelay,
		state:                  WalletState{Provider: provider, Status: StatusDisconnected},
		listeners:              make(map[EventName]map[ListenerID]Listener),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("wallet", string(provider)))
	return a
}

func (a *ProviderAdapter) Provider() WalletProvider {
	return a.provider
}

// IsAvailable probes the environment; it never prompts the user.
func (a *ProviderAdapter) IsAvailable() bool {
	return Probe(a.env.Host(), a.provider).Kind != ProbeNotFound
}

// State returns a snapshot of the adapter state.
func (a *ProviderAdapter) State() WalletState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *ProviderAdapter) snapshotLocked() WalletState {
	s := a.state
	if s.Account != nil {
		acc := *s.Account
		s.Account = &acc
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	if s.LastKnown != nil {
		d := *s.LastKnown
		s.LastKnown = &d
	}
	return s
}

// Connect asks the wallet for account access and loads the account and
// network. On failure the adapter returns to DISCONNECTED.
func (a *ProviderAdapter) Connect(ctx context.Context) (*Account, error) {
	a.mu.Lock()
	if a.state.Status == StatusConnecting {
		a.mu.Unlock()
		return nil, NewPreconditionError("connect", ReasonConnectInProgress, "a connection attempt is already in progress")
	}

	probe := Probe(a.env.Host(), a.provider)
	if probe.Kind == ProbeNotFound {
		a.mu.Unlock()
		return nil, NewAvailabilityError("connect", a.provider)
	}
	if probe.Kind == ProbeAmbiguous {
		a.logger.Warn("Several injected providers match, using the first",
			zap.Int("candidates", len(probe.Candidates)))
	}

	a.unsubscribeLocked()
	a.session++
	session := a.session
	handle := probe.Provider
	a.handle = handle
	a.state = WalletState{Provider: a.provider, Status: StatusConnecting}
	a.mu.Unlock()

	a.logger.Info("Connecting wallet")
	account, network, err := a.establish(ctx, handle)

	a.mu.Lock()
	if session != a.session {
		a.mu.Unlock()
		return nil, NewPreconditionError("connect", ReasonNotConnected, "connection was cancelled by a disconnect")
	}
	if err != nil {
		classified := classify("connect", err)
		a.handle = nil
		a.state = WalletState{Provider: a.provider, Status: StatusDisconnected, Error: classified.Error()}
		a.mu.Unlock()

		a.logger.Warn("Wallet connection failed", zap.Error(err))
		a.emit(Event{Name: EventError, Err: classified})
		return nil, classified
	}
	a.state = WalletState{Provider: a.provider, Status: StatusConnected, Account: account, Network: &network}
	a.subscribeLocked(handle, session)
	a.mu.Unlock()

	a.logger.Info("Wallet connected",
		zap.String("address", account.Address),
		zap.Uint64("chain_id", network.ChainID),
	)
	a.emit(Event{Name: EventConnect, Account: account, ChainID: network.ChainID})
	acc := *account
	return &acc, nil
}

func (a *ProviderAdapter) establish(ctx context.Context, handle InjectedProvider) (*Account, networks.Network, error) {
	var accounts []string
	if err := a.request(ctx, handle, "eth_requestAccounts", &accounts); err != nil {
		return nil, networks.Network{}, err
	}
	if len(accounts) == 0 {
		return nil, networks.Network{}, errors.New("wallet returned no accounts")
	}
	account, err := a.fetchAccount(ctx, handle, accounts[0])
	if err != nil {
		return nil, networks.Network{}, err
	}
	network, err := a.fetchNetwork(ctx, handle)
	if err != nil {
		return nil, networks.Network{}, err
	}
	return account, network, nil
}

func (a *ProviderAdapter) fetchAccount(ctx context.Context, handle InjectedProvider, address string) (*Account, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("wallet returned invalid address %q", address)
	}
	checksummed := common.HexToAddress(address).Hex()
	var balance hexutil.Big
	if err := a.request(ctx, handle, "eth_getBalance", &balance, checksummed, "latest"); err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &Account{Address: checksummed, Balance: balance.ToInt().String()}, nil
}

func (a *ProviderAdapter) fetchNetwork(ctx context.Context, handle InjectedProvider) (networks.Network, error) {
	var chainID hexutil.Uint64
	if err := a.request(ctx, handle, "eth_chainId", &chainID); err != nil {
		return networks.Network{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	network := a.registry.Resolve(uint64(chainID))
	if !network.Supported {
		a.logger.Warn("Wallet is on an unsupported network", zap.Uint64("chain_id", uint64(chainID)))
	}
	return network, nil
}

// Disconnect drops the connection and listeners. It is idempotent; the
// disconnect event fires only when something was live.
func (a *ProviderAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	wasLive := a.handle != nil || a.state.Status != StatusDisconnected
	a.unsubscribeLocked()
	a.handle = nil
	a.session++
	a.state = WalletState{Provider: a.provider, Status: StatusDisconnected}
	a.mu.Unlock()

	if wasLive {
		a.logger.Info("Wallet disconnected")
		a.emit(Event{Name: EventDisconnect})
	}
	return nil
}

// request runs a provider call under the request timeout and decodes the
// result into out when out is non-nil.
func (a *ProviderAdapter) request(ctx context.Context, handle InjectedProvider, method string, out any, params ...any) error {
	if a.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.requestTimeout)
		defer cancel()
	}
	raw, err := handle.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// connectedHandle returns the provider handle and account for operations that
// need a live connection.
func (a *ProviderAdapter) connectedHandle(op string) (InjectedProvider, Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Status != StatusConnected || a.handle == nil || a.state.Account == nil {
		return nil, Account{}, NewPreconditionError(op, ReasonNotConnected, "wallet is not connected")
	}
	return a.handle, *a.state.Account, nil
}

// liveHandle returns the handle of a connected or errored session.
func (a *ProviderAdapter) liveHandle(op string) (InjectedProvider, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return nil, NewPreconditionError(op, ReasonNotConnected, "wallet is not connected")
	}
	return a.handle, nil
}

func (a *ProviderAdapter) networkEventName() string {
	if a.provider == ProviderKaikas {
		return ProviderEventNetworkChanged
	}
	return ProviderEventChainChanged
}

// subscribeLocked registers provider listeners once per session.
func (a *ProviderAdapter) subscribeLocked(handle InjectedProvider, session uint64) {
	if len(a.subs) > 0 {
		return
	}
	for _, name := range []string{
		ProviderEventAccountsChanged,
		a.networkEventName(),
		ProviderEventDisconnect,
		ProviderEventError,
	} {
		a.subs = append(a.subs, handle.Subscribe(name, func(ev ProviderEvent) {
			a.handleProviderEvent(session, ev)
		}))
	}
}

func (a *ProviderAdapter) unsubscribeLocked() {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	a.subs = nil
}

func (a *ProviderAdapter) handleProviderEvent(session uint64, ev ProviderEvent) {
	a.mu.Lock()
	if session != a.session || a.handle == nil {
		a.mu.Unlock()
		a.logger.Debug("Dropping provider event from stale session", zap.String("event", ev.Name))
		return
	}
	handle := a.handle
	a.mu.Unlock()

	ctx := context.Background()
	switch ev.Name {
	case ProviderEventAccountsChanged:
		a.emit(Event{Name: EventAccountsChanged, Accounts: ev.Accounts})
		if len(ev.Accounts) == 0 {
			_ = a.Disconnect(ctx)
			return
		}
		account, err := a.fetchAccount(ctx, handle, ev.Accounts[0])
		if err != nil {
			a.logger.Warn("Failed to refresh account after change", zap.Error(err))
			return
		}
		a.mu.Lock()
		if session == a.session && a.state.Status == StatusConnected {
			a.state.Account = account
		}
		a.mu.Unlock()

	case ProviderEventChainChanged, ProviderEventNetworkChanged:
		chainID, err := networks.ParseChainID(ev.ChainID)
		if err != nil {
			a.logger.Warn("Ignoring malformed chain change", zap.String("chain_id", ev.ChainID))
			return
		}
		network := a.registry.Resolve(chainID)
		a.mu.Lock()
		if session == a.session && a.state.Status == StatusConnected {
			a.state.Network = &network
		}
		a.mu.Unlock()
		a.emit(Event{Name: EventChainChanged, ChainID: chainID})

	case ProviderEventDisconnect:
		_ = a.Disconnect(ctx)

	case ProviderEventError:
		a.enterError(session, ev.Err)
	}
}

// enterError moves a live session to ERROR, keeping the last account and
// network as diagnostics.
func (a *ProviderAdapter) enterError(session uint64, cause error) {
	if cause == nil {
		cause = errors.New("provider reported an error")
	}
	classified := classify("provider", cause)

	a.mu.Lock()
	if session != a.session {
		a.mu.Unlock()
		return
	}
	a.state = WalletState{
		Provider:  a.provider,
		Status:    StatusError,
		Error:     classified.Error(),
		LastKnown: &Diagnostic{Account: a.state.Account, Network: a.state.Network},
	}
	a.mu.Unlock()

	a.logger.Error("Wallet provider error", zap.Error(cause))
	a.emit(Event{Name: EventError, Err: classified})
}

// On registers listener for event and returns its id.
func (a *ProviderAdapter) On(event EventName, listener Listener) ListenerID {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.nextListener++
	id := a.nextListener
	if a.listeners[event] == nil {
		a.listeners[event] = make(map[ListenerID]Listener)
	}
	a.listeners[event][id] = listener
	return id
}

// Off removes a listener registered with On.
func (a *ProviderAdapter) Off(event EventName, id ListenerID) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	delete(a.listeners[event], id)
}

func (a *ProviderAdapter) emit(ev Event) {
	ev.Provider = a.provider
	a.listenerMu.Lock()
	targets := make([]Listener, 0, len(a.listeners[ev.Name]))
	for _, l := range a.listeners[ev.Name] {
		targets = append(targets, l)
	}
	a.listenerMu.Unlock()

	for _, l := range targets {
		l(ev)
	}
}
