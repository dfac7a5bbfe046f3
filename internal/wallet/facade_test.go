package wallet_test

import (
	"context"
	"testing"

	"github.com/kaiacity/kaiapass/internal/mocks"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/simulator"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type twoWallets struct {
	facade   *wallet.Adapter
	kaikas   *simulator.Provider
	metamask *simulator.Provider
}

func newTwoWallets(t *testing.T) twoWallets {
	t.Helper()
	kaikas := simulator.MustNew()
	metamask := simulator.MustNew(simulator.WithMarkers(wallet.ProviderMarkers{IsMetaMask: true}))
	env := wallet.NewStaticEnvironment(wallet.Host{Klaytn: kaikas, Ethereum: metamask})
	return twoWallets{
		facade:   wallet.NewDefaultAdapter(env, networks.DefaultRegistry(), fastOptions()...),
		kaikas:   kaikas,
		metamask: metamask,
	}
}

func connectedCount(a *wallet.Adapter) int {
	n := 0
	for _, s := range a.WalletStates() {
		if s.Status == wallet.StatusConnected {
			n++
		}
	}
	return n
}

func TestFacade_NoInjectedWallets(t *testing.T) {
	facade := wallet.NewDefaultAdapter(wallet.NewStaticEnvironment(wallet.Host{}), networks.DefaultRegistry())
	ctx := context.Background()

	assert.Empty(t, facade.GetAvailableWallets())
	for _, p := range wallet.DefaultPriority {
		_, err := facade.Connect(ctx, p)
		assert.True(t, wallet.IsKind(err, wallet.KindAvailability), "provider %s", p)
	}
	assert.Nil(t, facade.AutoConnect(ctx))
	assert.Nil(t, facade.CurrentWallet())
}

func TestFacade_UnsupportedProvider(t *testing.T) {
	w := newTwoWallets(t)
	_, err := w.facade.SelectWallet(context.Background(), wallet.WalletProvider("TRUST"))
	assert.True(t, wallet.IsKind(err, wallet.KindUnsupportedProvider))
}

func TestFacade_SingleLiveConnection(t *testing.T) {
	w := newTwoWallets(t)
	ctx := context.Background()

	assert.Equal(t, []wallet.WalletProvider{wallet.ProviderKaikas, wallet.ProviderMetaMask}, w.facade.GetAvailableWallets())

	sequence := []wallet.WalletProvider{
		wallet.ProviderKaikas,
		wallet.ProviderMetaMask,
		wallet.ProviderMetaMask,
		wallet.ProviderKaikas,
	}
	for _, p := range sequence {
		_, err := w.facade.Connect(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 1, connectedCount(w.facade))
		assert.Equal(t, p, w.facade.CurrentWallet().Provider())
	}

	states := w.facade.WalletStates()
	assert.Equal(t, wallet.StatusConnected, states[wallet.ProviderKaikas].Status)
	assert.Equal(t, wallet.StatusDisconnected, states[wallet.ProviderMetaMask].Status)
}

func TestFacade_SelectDoesNotConnect(t *testing.T) {
	w := newTwoWallets(t)
	ctx := context.Background()

	_, err := w.facade.Connect(ctx, wallet.ProviderKaikas)
	require.NoError(t, err)

	selected, err := w.facade.SelectWallet(ctx, wallet.ProviderMetaMask)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusDisconnected, selected.State().Status)
	assert.Equal(t, 0, connectedCount(w.facade))
}

func TestFacade_AutoConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("first in priority", func(t *testing.T) {
		w := newTwoWallets(t)
		got := w.facade.AutoConnect(ctx)
		require.NotNil(t, got)
		assert.Equal(t, wallet.ProviderKaikas, got.Provider())
	})

	t.Run("falls through a failing provider", func(t *testing.T) {
		w := newTwoWallets(t)
		w.kaikas.RejectNext("eth_requestAccounts")

		got := w.facade.AutoConnect(ctx)
		require.NotNil(t, got)
		assert.Equal(t, wallet.ProviderMetaMask, got.Provider())
		assert.Equal(t, 1, connectedCount(w.facade))
	})

	t.Run("all fail", func(t *testing.T) {
		w := newTwoWallets(t)
		w.kaikas.RejectNext("eth_requestAccounts")
		w.metamask.RejectNext("eth_requestAccounts")

		assert.Nil(t, w.facade.AutoConnect(ctx))
		assert.Equal(t, 0, connectedCount(w.facade))
	})
}

func TestFacade_DisconnectAll(t *testing.T) {
	w := newTwoWallets(t)
	ctx := context.Background()
	_, err := w.facade.Connect(ctx, wallet.ProviderMetaMask)
	require.NoError(t, err)

	w.facade.DisconnectAll(ctx)

	assert.Nil(t, w.facade.CurrentWallet())
	assert.Equal(t, 0, connectedCount(w.facade))
}

func TestFacade_ReselectingSameWalletKeepsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	kaikas := mocks.NewMockWallet(ctrl)
	kaikas.EXPECT().Provider().Return(wallet.ProviderKaikas).AnyTimes()
	kaikas.EXPECT().IsAvailable().Return(true).AnyTimes()
	kaikas.EXPECT().State().Return(wallet.WalletState{Provider: wallet.ProviderKaikas, Status: wallet.StatusConnected}).AnyTimes()
	kaikas.EXPECT().Disconnect(gomock.Any()).Times(0)

	facade := wallet.NewAdapter(kaikas)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := facade.SelectWallet(ctx, wallet.ProviderKaikas)
		require.NoError(t, err)
		assert.Same(t, kaikas, got)
	}
}

func TestFacade_SwitchDisconnectsPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	kaikas := mocks.NewMockWallet(ctrl)
	metamask := mocks.NewMockWallet(ctrl)
	for p, w := range map[wallet.WalletProvider]*mocks.MockWallet{wallet.ProviderKaikas: kaikas, wallet.ProviderMetaMask: metamask} {
		w.EXPECT().Provider().Return(p).AnyTimes()
		w.EXPECT().IsAvailable().Return(true).AnyTimes()
	}
	kaikas.EXPECT().Connect(gomock.Any()).Return(&wallet.Account{Address: testAccount}, nil)
	kaikas.EXPECT().State().Return(wallet.WalletState{Status: wallet.StatusConnected})
	kaikas.EXPECT().Disconnect(gomock.Any()).Return(nil)
	metamask.EXPECT().Connect(gomock.Any()).Return(&wallet.Account{Address: testAccount}, nil)

	facade := wallet.NewAdapter(kaikas, metamask)
	ctx := context.Background()

	_, err := facade.Connect(ctx, wallet.ProviderKaikas)
	require.NoError(t, err)
	_, err = facade.Connect(ctx, wallet.ProviderMetaMask)
	require.NoError(t, err)
	assert.Same(t, metamask, facade.CurrentWallet())
}
