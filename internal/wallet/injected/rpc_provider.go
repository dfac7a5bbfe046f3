// Package injected provides InjectedProvider implementations backed by a
// JSON-RPC node with node-managed accounts.
package injected

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// maxWatchFailures is how many consecutive polling failures are tolerated
// before an error event is published.
const maxWatchFailures = 3

// RPCProvider exposes a JSON-RPC node as an injected wallet. Account access
// maps to eth_accounts, so the node must manage (and unlock) its accounts.
type RPCProvider struct {
	wallet.EventHub

	client  *rpc.Client
	markers wallet.ProviderMarkers
	logger  *zap.Logger

	mu           sync.Mutex
	lastAccounts []string
	lastChainID  string
	failures     int
}

var _ wallet.InjectedProvider = (*RPCProvider)(nil)

// Dial connects to a node at url.
func Dial(ctx context.Context, url string, markers wallet.ProviderMarkers) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial rpc endpoint %s", url)
	}
	return NewRPCProvider(client, markers), nil
}

// NewRPCProvider wraps an existing client.
func NewRPCProvider(client *rpc.Client, markers wallet.ProviderMarkers) *RPCProvider {
	return &RPCProvider{
		client:  client,
		markers: markers,
		logger:  logger.Named("rpc-provider"),
	}
}

func (p *RPCProvider) Markers() wallet.ProviderMarkers {
	return p.markers
}

// Request forwards method to the node, translating the wallet-only methods.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		method = "eth_accounts"
	case "wallet_switchEthereumChain":
		return p.switchChain(ctx, params)
	case "wallet_addEthereumChain":
		return nil, &wallet.ProviderError{
			Code:    constants.ProviderCodeUnsupported,
			Message: "a node provider cannot add chains",
		}
	}

	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, errors.Wrapf(err, "%s failed", method)
	}
	return raw, nil
}

// switchChain succeeds only when the node already serves the requested chain.
func (p *RPCProvider) switchChain(ctx context.Context, params []any) (json.RawMessage, error) {
	if len(params) == 0 {
		return nil, &wallet.ProviderError{Code: -32602, Message: "missing chain parameters"}
	}
	encoded, err := json.Marshal(params[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode switch parameters")
	}
	var target networks.SwitchChainParams
	if err := json.Unmarshal(encoded, &target); err != nil {
		return nil, &wallet.ProviderError{Code: -32602, Message: "invalid chain parameters"}
	}
	wanted, err := networks.ParseChainID(target.ChainID)
	if err != nil {
		return nil, &wallet.ProviderError{Code: -32602, Message: err.Error()}
	}

	current, err := p.chainID(ctx)
	if err != nil {
		return nil, err
	}
	if current != wanted {
		return nil, &wallet.ProviderError{
			Code:    constants.ProviderCodeChainDisconnect,
			Message: fmt.Sprintf("node serves chain %d, not %d", current, wanted),
		}
	}
	return json.RawMessage("null"), nil
}

func (p *RPCProvider) chainID(ctx context.Context) (uint64, error) {
	var raw string
	if err := p.client.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return 0, errors.Wrap(err, "eth_chainId failed")
	}
	return networks.ParseChainID(raw)
}

// Watch polls the node every interval and publishes accountsChanged and
// chainChanged/networkChanged when they differ from the previous poll. It
// returns when ctx is done.
func (p *RPCProvider) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	var accounts []string
	var chainID string
	err := p.client.CallContext(ctx, &accounts, "eth_accounts")
	if err == nil {
		err = p.client.CallContext(ctx, &chainID, "eth_chainId")
	}

	p.mu.Lock()
	if err != nil {
		p.failures++
		failures := p.failures
		p.mu.Unlock()
		p.logger.Warn("Provider poll failed", zap.Int("consecutive_failures", failures), zap.Error(err))
		if failures == maxWatchFailures {
			p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventError, Err: errors.Wrap(err, "network connection lost")})
		}
		return
	}
	p.failures = 0
	first := p.lastChainID == ""
	accountsChanged := !first && !slices.Equal(accounts, p.lastAccounts)
	chainChanged := !first && chainID != p.lastChainID
	p.lastAccounts = accounts
	p.lastChainID = chainID
	p.mu.Unlock()

	if accountsChanged {
		p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventAccountsChanged, Accounts: accounts})
	}
	if chainChanged {
		p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventChainChanged, ChainID: chainID})
		p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventNetworkChanged, ChainID: chainID})
	}
}

// Close releases the underlying client.
func (p *RPCProvider) Close() {
	p.client.Close()
}
