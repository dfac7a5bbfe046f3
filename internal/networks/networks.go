// Package networks holds the static table of Kaia networks the wallet layer
// understands, keyed by chain id.
package networks

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaiacity/kaiapass/internal/constants"
)

// DefaultGasPriceFloor is 25 gkei (25 gwei equivalent), the Kaia base fee floor.
var DefaultGasPriceFloor = big.NewInt(25_000_000_000)

// NativeCurrency describes the chain's fee token.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network is an immutable description of a chain.
type Network struct {
	ChainID          uint64         `json:"chain_id"`
	Name             string         `json:"name"`
	RPCURL           string         `json:"rpc_url"`
	BlockExplorerURL string         `json:"block_explorer_url"`
	NativeCurrency   NativeCurrency `json:"native_currency"`
	Supported        bool           `json:"supported"`

	gasPriceFloor *big.Int
}

// GasPriceFloor returns a copy of the minimum gas price accepted on the network.
func (n Network) GasPriceFloor() *big.Int {
	if n.gasPriceFloor == nil {
		return new(big.Int).Set(DefaultGasPriceFloor)
	}
	return new(big.Int).Set(n.gasPriceFloor)
}

// ChainIDHex renders the chain id the way wallet providers expect it.
func (n Network) ChainIDHex() string {
	return ChainIDHex(n.ChainID)
}

// ExplorerTxURL links a transaction hash on the network's block explorer.
func (n Network) ExplorerTxURL(hash string) string {
	if n.BlockExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(n.BlockExplorerURL, "/") + "/tx/" + hash
}

var kaiaCurrency = NativeCurrency{Name: "KAIA", Symbol: "KAIA", Decimals: 18}

// Registry resolves chain ids to networks. The zero value is empty; use
// NewRegistry or DefaultRegistry.
type Registry struct {
	byID map[uint64]Network
}

// NewRegistry builds a registry from the given networks. Later entries win on
// duplicate chain ids.
func NewRegistry(list ...Network) *Registry {
	r := &Registry{byID: make(map[uint64]Network, len(list))}
	for _, n := range list {
		n.Supported = true
		if n.gasPriceFloor == nil {
			n.gasPriceFloor = DefaultGasPriceFloor
		}
		r.byID[n.ChainID] = n
	}
	return r
}

// DefaultRegistry returns the Kaia mainnet and Kairos testnet table.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Network{
			ChainID:          constants.KaiaMainnetChainID,
			Name:             "Kaia Mainnet",
			RPCURL:           "https://public-en.node.kaia.io",
			BlockExplorerURL: "https://kaiascan.io",
			NativeCurrency:   kaiaCurrency,
		},
		Network{
			ChainID:          constants.KairosChainID,
			Name:             "Kaia Kairos Testnet",
			RPCURL:           "https://public-en-kairos.node.kaia.io",
			BlockExplorerURL: "https://kairos.kaiascan.io",
			NativeCurrency:   kaiaCurrency,
		},
	)
}

// Lookup returns the network for chainID. ok is false for unknown chains.
func (r *Registry) Lookup(chainID uint64) (Network, bool) {
	n, ok := r.byID[chainID]
	return n, ok
}

// LookupHex resolves a provider-formatted chain id ("0x3e9" or "1001").
func (r *Registry) LookupHex(raw string) (Network, bool) {
	id, err := ParseChainID(raw)
	if err != nil {
		return Network{}, false
	}
	return r.Lookup(id)
}

// IsSupported reports whether chainID is in the table.
func (r *Registry) IsSupported(chainID uint64) bool {
	_, ok := r.byID[chainID]
	return ok
}

// All returns every network ordered by chain id.
func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Resolve returns the registered network for chainID, or an Unsupported
// placeholder so callers always hold a non-nil network for a live connection.
func (r *Registry) Resolve(chainID uint64) Network {
	if n, ok := r.Lookup(chainID); ok {
		return n
	}
	return Unsupported(chainID)
}

// Unsupported is the placeholder for a chain the registry does not know.
func Unsupported(chainID uint64) Network {
	return Network{
		ChainID: chainID,
		Name:    fmt.Sprintf("Unsupported network (%d)", chainID),
	}
}

// ChainIDHex formats a chain id as a 0x-prefixed quantity.
func ChainIDHex(chainID uint64) string {
	return hexutil.EncodeUint64(chainID)
}

// ParseChainID accepts hex quantities ("0x3e9") and decimal strings ("1001").
func ParseChainID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("chain id is empty")
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		id, err := strconv.ParseUint(raw[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hex chain id %q: %w", raw, err)
		}
		return id, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", raw, err)
	}
	return id, nil
}

// AddChainParams is the wallet_addEthereumChain (EIP-3085) payload.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddChainParamsFor builds the add-chain request for a registered network.
func AddChainParamsFor(n Network) AddChainParams {
	params := AddChainParams{
		ChainID:        n.ChainIDHex(),
		ChainName:      n.Name,
		NativeCurrency: n.NativeCurrency,
		RPCURLs:        []string{n.RPCURL},
	}
	if n.BlockExplorerURL != "" {
		params.BlockExplorerURLs = []string{n.BlockExplorerURL}
	}
	return params
}

// SwitchChainParams is the wallet_switchEthereumChain (EIP-3326) payload.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}
