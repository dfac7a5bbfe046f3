package injected

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

type fakeEth struct {
	mu       sync.Mutex
	accounts []string
	chainID  string
}

func (f *fakeEth) Accounts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts
}

func (f *fakeEth) ChainId() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

func (f *fakeEth) set(accounts []string, chainID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = accounts
	f.chainID = chainID
}

func newTestProvider(t *testing.T, eth *fakeEth) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", eth))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return NewRPCProvider(client, wallet.ProviderMarkers{IsKaikas: true})
}

func TestRPCProvider_RequestAccountsMapsToAccounts(t *testing.T) {
	eth := &fakeEth{accounts: []string{"0x1111111111111111111111111111111111111111"}, chainID: "0x3e9"}
	provider := newTestProvider(t, eth)

	raw, err := provider.Request(context.Background(), "eth_requestAccounts")
	require.NoError(t, err)

	var accounts []string
	require.NoError(t, json.Unmarshal(raw, &accounts))
	assert.Equal(t, eth.accounts, accounts)
	assert.True(t, provider.Markers().IsKaikas)
}

func TestRPCProvider_SwitchChain(t *testing.T) {
	eth := &fakeEth{chainID: "0x3e9"}
	provider := newTestProvider(t, eth)
	ctx := context.Background()

	tests := []struct {
		name     string
		method   string
		params   any
		wantCode int
	}{
		{name: "same chain succeeds", method: "wallet_switchEthereumChain", params: networks.SwitchChainParams{ChainID: "0x3e9"}},
		{name: "other chain is refused", method: "wallet_switchEthereumChain", params: networks.SwitchChainParams{ChainID: "0x2019"}, wantCode: 4901},
		{name: "malformed chain id", method: "wallet_switchEthereumChain", params: map[string]string{"chainId": "kaia"}, wantCode: -32602},
		{name: "adding chains is unsupported", method: "wallet_addEthereumChain", params: networks.AddChainParams{ChainID: "0x2019"}, wantCode: 4200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Request(ctx, tt.method, tt.params)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			code, ok := wallet.ProviderErrorCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRPCProvider_UnknownMethodKeepsErrorCode(t *testing.T) {
	provider := newTestProvider(t, &fakeEth{chainID: "0x3e9"})

	_, err := provider.Request(context.Background(), "eth_unknownThing")
	require.Error(t, err)
	_, ok := wallet.ProviderErrorCode(err)
	assert.True(t, ok)
}

func TestRPCProvider_PollPublishesChanges(t *testing.T) {
	eth := &fakeEth{accounts: []string{"0x1111111111111111111111111111111111111111"}, chainID: "0x3e9"}
	provider := newTestProvider(t, eth)
	ctx := context.Background()

	var mu sync.Mutex
	var events []wallet.ProviderEvent
	record := func(ev wallet.ProviderEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	provider.Subscribe(wallet.ProviderEventAccountsChanged, record)
	sub := provider.Subscribe(wallet.ProviderEventChainChanged, record)

	provider.poll(ctx)
	assert.Empty(t, events, "first poll only records the baseline")

	eth.set([]string{"0x2222222222222222222222222222222222222222"}, "0x2019")
	provider.poll(ctx)

	mu.Lock()
	require.Len(t, events, 2)
	assert.Equal(t, wallet.ProviderEventAccountsChanged, events[0].Name)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222"}, events[0].Accounts)
	assert.Equal(t, "0x2019", events[1].ChainID)
	mu.Unlock()

	sub.Unsubscribe()
	assert.Equal(t, 0, provider.SubscriberCount(wallet.ProviderEventChainChanged))
}
