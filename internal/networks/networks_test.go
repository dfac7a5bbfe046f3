package networks_test

import (
	"math/big"
	"testing"

	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	registry := networks.DefaultRegistry()

	tests := []struct {
		name     string
		chainID  uint64
		wantOK   bool
		wantName string
	}{
		{name: "kaia mainnet", chainID: 8217, wantOK: true, wantName: "Kaia Mainnet"},
		{name: "kairos testnet", chainID: 1001, wantOK: true, wantName: "Kaia Kairos Testnet"},
		{name: "ethereum mainnet is unknown", chainID: 1, wantOK: false},
		{name: "zero chain id", chainID: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network, ok := registry.Lookup(tt.chainID)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantName, network.Name)
				assert.Equal(t, tt.chainID, network.ChainID)
				assert.True(t, network.Supported)
				assert.NotEmpty(t, network.RPCURL)
			}
		})
	}
}

func TestRegistry_LookupHex(t *testing.T) {
	registry := networks.DefaultRegistry()

	network, ok := registry.LookupHex("0x3e9")
	require.True(t, ok)
	assert.Equal(t, uint64(1001), network.ChainID)

	network, ok = registry.LookupHex("8217")
	require.True(t, ok)
	assert.Equal(t, "Kaia Mainnet", network.Name)

	_, ok = registry.LookupHex("0xzz")
	assert.False(t, ok)
}

func TestRegistry_ResolveUnknownChain(t *testing.T) {
	registry := networks.DefaultRegistry()

	network := registry.Resolve(137)
	assert.Equal(t, uint64(137), network.ChainID)
	assert.False(t, network.Supported)
	assert.Contains(t, network.Name, "137")
}

func TestRegistry_All(t *testing.T) {
	all := networks.DefaultRegistry().All()
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1001), all[0].ChainID)
	assert.Equal(t, uint64(8217), all[1].ChainID)
}

func TestParseChainID(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{raw: "0x2019", want: 8217},
		{raw: "0X3E9", want: 1001},
		{raw: " 1001 ", want: 1001},
		{raw: "", wantErr: true},
		{raw: "0x", wantErr: true},
		{raw: "kairos", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := networks.ParseChainID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetwork_GasPriceFloorIsCopied(t *testing.T) {
	network, ok := networks.DefaultRegistry().Lookup(1001)
	require.True(t, ok)

	floor := network.GasPriceFloor()
	assert.Equal(t, big.NewInt(25_000_000_000), floor)

	floor.SetInt64(1)
	assert.Equal(t, big.NewInt(25_000_000_000), network.GasPriceFloor())
}

func TestAddChainParamsFor(t *testing.T) {
	network, ok := networks.DefaultRegistry().Lookup(1001)
	require.True(t, ok)

	params := networks.AddChainParamsFor(network)
	assert.Equal(t, "0x3e9", params.ChainID)
	assert.Equal(t, "Kaia Kairos Testnet", params.ChainName)
	assert.Equal(t, []string{"https://public-en-kairos.node.kaia.io"}, params.RPCURLs)
	assert.Equal(t, []string{"https://kairos.kaiascan.io"}, params.BlockExplorerURLs)
	assert.Equal(t, "https://kairos.kaiascan.io/tx/0xabc", network.ExplorerTxURL("0xabc"))
}
