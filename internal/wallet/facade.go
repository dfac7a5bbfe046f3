package wallet

import (
	"context"
	"sync"

	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"go.uber.org/zap"
)

// DefaultPriority is the auto-connect order.
var DefaultPriority = []WalletProvider{ProviderKaikas, ProviderMetaMask}

// Adapter is the façade over all provider adapters. It keeps at most one
// adapter connected at a time.
type Adapter struct {
	// switchMu serialises selection and connection so two providers can't
	// connect concurrently; mu only guards current.
	switchMu sync.Mutex
	mu       sync.Mutex
	wallets  map[WalletProvider]Wallet
	priority []WalletProvider
	current  Wallet
	logger   *zap.Logger
}

// NewAdapter registers wallets; their order is the auto-connect priority.
func NewAdapter(wallets ...Wallet) *Adapter {
	a := &Adapter{
		wallets: make(map[WalletProvider]Wallet, len(wallets)),
		logger:  logger.Log,
	}
	for _, w := range wallets {
		if _, dup := a.wallets[w.Provider()]; !dup {
			a.priority = append(a.priority, w.Provider())
		}
		a.wallets[w.Provider()] = w
	}
	return a
}

// NewDefaultAdapter builds one ProviderAdapter per supported provider in
// DefaultPriority order.
func NewDefaultAdapter(env Environment, registry *networks.Registry, opts ...Option) *Adapter {
	wallets := make([]Wallet, 0, len(DefaultPriority))
	for _, p := range DefaultPriority {
		wallets = append(wallets, NewProviderAdapter(p, env, registry, opts...))
	}
	return NewAdapter(wallets...)
}

// GetAvailableWallets lists installed providers in priority order.
func (a *Adapter) GetAvailableWallets() []WalletProvider {
	available := []WalletProvider{}
	for _, p := range a.priority {
		if a.wallets[p].IsAvailable() {
			available = append(available, p)
		}
	}
	return available
}

// SelectWallet makes provider current, disconnecting a different connected
// adapter first.
func (a *Adapter) SelectWallet(ctx context.Context, provider WalletProvider) (Wallet, error) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	return a.selectLocked(ctx, provider)
}

func (a *Adapter) selectLocked(ctx context.Context, provider WalletProvider) (Wallet, error) {
	w, ok := a.wallets[provider]
	if !ok {
		return nil, NewUnsupportedProviderError(provider)
	}
	if !w.IsAvailable() {
		return nil, NewAvailabilityError("selectWallet", provider)
	}
	previous := a.CurrentWallet()
	if previous != nil && previous != w && previous.State().Status != StatusDisconnected {
		a.logger.Info("Switching wallet, disconnecting previous",
			zap.String("from", string(previous.Provider())),
			zap.String("to", string(provider)),
		)
		if err := previous.Disconnect(ctx); err != nil {
			a.logger.Warn("Failed to disconnect previous wallet", zap.Error(err))
		}
	}
	a.mu.Lock()
	a.current = w
	a.mu.Unlock()
	return w, nil
}

// Connect selects provider and connects it.
func (a *Adapter) Connect(ctx context.Context, provider WalletProvider) (*Account, error) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	w, err := a.selectLocked(ctx, provider)
	if err != nil {
		return nil, err
	}
	return w.Connect(ctx)
}

// AutoConnect tries available providers in priority order and returns the
// first adapter that connects, or nil. Individual failures are logged, not
// returned.
func (a *Adapter) AutoConnect(ctx context.Context) Wallet {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	for _, p := range a.priority {
		if !a.wallets[p].IsAvailable() {
			continue
		}
		w, err := a.selectLocked(ctx, p)
		if err != nil {
			a.logger.Debug("Auto-connect skipped provider", zap.String("provider", string(p)), zap.Error(err))
			continue
		}
		if _, err := w.Connect(ctx); err != nil {
			a.logger.Info("Auto-connect failed for provider", zap.String("provider", string(p)), zap.Error(err))
			continue
		}
		return w
	}
	return nil
}

// DisconnectAll disconnects every adapter and clears the selection.
func (a *Adapter) DisconnectAll(ctx context.Context) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	for _, p := range a.priority {
		if err := a.wallets[p].Disconnect(ctx); err != nil {
			a.logger.Warn("Failed to disconnect wallet", zap.String("provider", string(p)), zap.Error(err))
		}
	}
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
}

// CurrentWallet returns the selected adapter, or nil.
func (a *Adapter) CurrentWallet() Wallet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Wallet returns the registered adapter for provider.
func (a *Adapter) Wallet(provider WalletProvider) (Wallet, bool) {
	w, ok := a.wallets[provider]
	return w, ok
}

// WalletStates snapshots every adapter.
func (a *Adapter) WalletStates() map[WalletProvider]WalletState {
	states := make(map[WalletProvider]WalletState, len(a.wallets))
	for p, w := range a.wallets {
		states[p] = w.State()
	}
	return states
}
