package simulator

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"go.uber.org/zap"
)

const (
	genesisTime  = 1_700_000_000
	blockGasCap  = 30_000_000
	transferGas  = 21_000
	deployedCode = "0x608060405234801561001057600080fd5b50"
)

var defaultBalance = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))

// Option configures a Provider.
type Option func(*Provider)

// WithChainID sets the chain the wallet starts on.
func WithChainID(chainID uint64) Option {
	return func(p *Provider) { p.chainID = chainID }
}

// WithMarkers sets the identity flags of the injected object.
func WithMarkers(m wallet.ProviderMarkers) Option {
	return func(p *Provider) { p.markers = m }
}

// WithContract sets where the registry is deployed.
func WithContract(address string) Option {
	return func(p *Provider) { p.contract = common.HexToAddress(address) }
}

// WithGasPrice sets the node's suggested gas price in peb.
func WithGasPrice(price *big.Int) Option {
	return func(p *Provider) { p.gasPrice = new(big.Int).Set(price) }
}

// WithAccounts sets how many funded accounts the wallet holds.
func WithAccounts(n int) Option {
	return func(p *Provider) { p.accountCount = n }
}

// WithRegistry shares a registry between several providers.
func WithRegistry(r *Registry) Option {
	return func(p *Provider) { p.registry = r }
}

// WithKnownChains sets which chains the wallet can switch to without
// wallet_addEthereumChain.
func WithKnownChains(ids ...uint64) Option {
	return func(p *Provider) {
		p.known = make(map[uint64]bool, len(ids))
		for _, id := range ids {
			p.known[id] = true
		}
	}
}

type receipt struct {
	TransactionHash string         `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

type txArgs struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
}

// Provider is a wallet.InjectedProvider backed by an in-memory chain.
type Provider struct {
	wallet.EventHub

	mu           sync.Mutex
	markers      wallet.ProviderMarkers
	chainID      uint64
	known        map[uint64]bool
	accountCount int
	keys         []*ecdsa.PrivateKey
	accounts     []common.Address
	exposed      []common.Address
	balances     map[common.Address]*big.Int
	nonces       map[common.Address]uint64
	contract     common.Address
	registry     *Registry
	gasPrice     *big.Int
	block        uint64
	receipts     map[string]receipt
	pendingPolls int
	failures     map[string][]error
	calls        map[string]int
	logger       *zap.Logger
}

var _ wallet.InjectedProvider = (*Provider)(nil)

// New creates a simulated wallet. The first account owns the registry unless
// a shared registry is supplied.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		markers:      wallet.ProviderMarkers{IsKaikas: true},
		chainID:      constants.KairosChainID,
		known:        map[uint64]bool{constants.KairosChainID: true, constants.KaiaMainnetChainID: true},
		accountCount: 1,
		balances:     make(map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		contract:     common.HexToAddress(constants.DefaultDIDContractAddress),
		gasPrice:     big.NewInt(25_000_000_000),
		block:        1,
		receipts:     make(map[string]receipt),
		failures:     make(map[string][]error),
		calls:        make(map[string]int),
		logger:       logger.Log.Named("simulator"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.accountCount < 1 {
		p.accountCount = 1
	}
	for i := 0; i < p.accountCount; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate account key: %w", err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		p.keys = append(p.keys, key)
		p.accounts = append(p.accounts, addr)
		p.balances[addr] = new(big.Int).Set(defaultBalance)
	}
	p.exposed = append([]common.Address(nil), p.accounts...)
	if p.registry == nil {
		p.registry = NewRegistry(p.accounts[0])
	}
	return p, nil
}

// MustNew is New for tests and wiring code that cannot recover.
func MustNew(opts ...Option) *Provider {
	p, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Markers implements wallet.InjectedProvider.
func (p *Provider) Markers() wallet.ProviderMarkers {
	return p.markers
}

// Accounts returns the checksummed addresses the wallet holds.
func (p *Provider) Accounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.accounts))
	for i, a := range p.accounts {
		out[i] = a.Hex()
	}
	return out
}

// Registry returns the contract state.
func (p *Provider) Registry() *Registry {
	return p.registry
}

// ContractAddress returns where the registry is deployed.
func (p *Provider) ContractAddress() string {
	return p.contract.Hex()
}

// ChainID returns the chain the wallet is on.
func (p *Provider) ChainID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// FailNext queues err as the result of the next call to method.
func (p *Provider) FailNext(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[method] = append(p.failures[method], err)
}

// RejectNext makes the next call to method fail as if the user declined it.
func (p *Provider) RejectNext(method string) {
	p.FailNext(method, &wallet.ProviderError{Code: constants.ProviderCodeUserRejected, Message: "User denied the request"})
}

// DelayReceipts makes the next n receipt lookups report the transaction as
// pending.
func (p *Provider) DelayReceipts(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingPolls = n
}

// Calls reports how many times method was requested.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls reports how many requests of any method were made.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// SetChain moves the wallet to chainID as if the user switched in the wallet
// UI, and publishes the chain change.
func (p *Provider) SetChain(chainID uint64) {
	p.mu.Lock()
	p.chainID = chainID
	p.known[chainID] = true
	p.mu.Unlock()
	p.publishChain(chainID)
}

// SwitchAccount exposes the account at index first, as if the user picked it.
func (p *Provider) SwitchAccount(index int) {
	p.mu.Lock()
	if index < 0 || index >= len(p.accounts) {
		p.mu.Unlock()
		return
	}
	exposed := []common.Address{p.accounts[index]}
	for i, a := range p.accounts {
		if i != index {
			exposed = append(exposed, a)
		}
	}
	p.exposed = exposed
	p.mu.Unlock()
	p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventAccountsChanged, Accounts: hexAddresses(exposed)})
}

// Lock hides every account, as a wallet does when the user locks it.
func (p *Provider) Lock() {
	p.mu.Lock()
	p.exposed = nil
	p.mu.Unlock()
	p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventAccountsChanged, Accounts: []string{}})
}

// EmitDisconnect publishes a provider disconnect.
func (p *Provider) EmitDisconnect() {
	p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventDisconnect})
}

// EmitError publishes a provider runtime error.
func (p *Provider) EmitError(err error) {
	p.Publish(wallet.ProviderEvent{Name: wallet.ProviderEventError, Err: err})
}

func (p *Provider) publishChain(chainID uint64) {
	name := wallet.ProviderEventChainChanged
	if p.markers.IsKaikas {
		name = wallet.ProviderEventNetworkChanged
	}
	p.Publish(wallet.ProviderEvent{Name: name, ChainID: hexutil.EncodeUint64(chainID)})
}

// Request implements wallet.InjectedProvider.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls[method]++
	if queued := p.failures[method]; len(queued) > 0 {
		err := queued[0]
		p.failures[method] = queued[1:]
		p.mu.Unlock()
		p.logger.Debug("Injected failure", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	p.mu.Unlock()

	result, err := p.dispatch(method, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s result: %w", method, err)
	}
	return raw, nil
}

func (p *Provider) dispatch(method string, params []any) (any, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		p.mu.Lock()
		defer p.mu.Unlock()
		// Wallets report lowercase addresses.
		out := make([]string, len(p.exposed))
		for i, a := range p.exposed {
			out[i] = strings.ToLower(a.Hex())
		}
		return out, nil

	case "eth_chainId":
		return hexutil.EncodeUint64(p.ChainID()), nil

	case "eth_blockNumber":
		p.mu.Lock()
		defer p.mu.Unlock()
		return hexutil.EncodeUint64(p.block), nil

	case "eth_gasPrice":
		p.mu.Lock()
		defer p.mu.Unlock()
		return hexutil.EncodeBig(p.gasPrice), nil

	case "eth_getBalance":
		var addr string
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		balance := p.balances[common.HexToAddress(addr)]
		if balance == nil {
			balance = new(big.Int)
		}
		return hexutil.EncodeBig(balance), nil

	case "eth_getCode":
		var addr string
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		if common.HexToAddress(addr) == p.contract {
			return deployedCode, nil
		}
		return "0x", nil

	case "eth_getBlockByNumber":
		p.mu.Lock()
		defer p.mu.Unlock()
		return map[string]string{
			"number":    hexutil.EncodeUint64(p.block),
			"gasLimit":  hexutil.EncodeUint64(blockGasCap),
			"gasUsed":   hexutil.EncodeUint64(blockGasCap / 4),
			"timestamp": hexutil.EncodeUint64(genesisTime + p.block),
		}, nil

	case "eth_call":
		var args txArgs
		if err := param(params, 0, &args); err != nil {
			return nil, err
		}
		return p.call(args)

	case "eth_estimateGas":
		var args txArgs
		if err := param(params, 0, &args); err != nil {
			return nil, err
		}
		return p.estimate(args)

	case "eth_sendTransaction":
		var args txArgs
		if err := param(params, 0, &args); err != nil {
			return nil, err
		}
		return p.send(args)

	case "eth_getTransactionReceipt":
		var hash string
		if err := param(params, 0, &hash); err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.pendingPolls > 0 {
			p.pendingPolls--
			return nil, nil
		}
		r, ok := p.receipts[strings.ToLower(hash)]
		if !ok {
			return nil, nil
		}
		return r, nil

	case "personal_sign":
		var message, addr string
		if err := param(params, 0, &message); err != nil {
			return nil, err
		}
		if err := param(params, 1, &addr); err != nil {
			return nil, err
		}
		return p.sign(message, addr)

	case "wallet_switchEthereumChain":
		var req struct {
			ChainID string `json:"chainId"`
		}
		if err := param(params, 0, &req); err != nil {
			return nil, err
		}
		chainID, err := hexutil.DecodeUint64(req.ChainID)
		if err != nil {
			return nil, invalidParams(err)
		}
		p.mu.Lock()
		if !p.known[chainID] {
			p.mu.Unlock()
			return nil, &wallet.ProviderError{
				Code:    constants.ProviderCodeUnrecognizedChain,
				Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", req.ChainID),
			}
		}
		changed := p.chainID != chainID
		p.chainID = chainID
		p.mu.Unlock()
		if changed {
			p.publishChain(chainID)
		}
		return nil, nil

	case "wallet_addEthereumChain":
		var req struct {
			ChainID string `json:"chainId"`
		}
		if err := param(params, 0, &req); err != nil {
			return nil, err
		}
		chainID, err := hexutil.DecodeUint64(req.ChainID)
		if err != nil {
			return nil, invalidParams(err)
		}
		p.mu.Lock()
		p.known[chainID] = true
		p.mu.Unlock()
		return nil, nil
	}
	return nil, &wallet.ProviderError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", method)}
}

func (p *Provider) account(raw string) (common.Address, *ecdsa.PrivateKey, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, nil, invalidParams(fmt.Errorf("invalid address %q", raw))
	}
	addr := common.HexToAddress(raw)
	for i, a := range p.accounts {
		if a == addr {
			return addr, p.keys[i], nil
		}
	}
	return common.Address{}, nil, &wallet.ProviderError{
		Code:    constants.ProviderCodeUnauthorized,
		Message: "The requested account has not been authorized by the user",
	}
}

func (p *Provider) call(args txArgs) (any, error) {
	data, err := hexutil.Decode(args.Data)
	if err != nil {
		return nil, invalidParams(err)
	}
	if common.HexToAddress(args.To) != p.contract {
		return "0x", nil
	}
	from := common.HexToAddress(args.From)
	out, err := p.registry.Call(from, data)
	if err != nil {
		return nil, reverted(err)
	}
	return hexutil.Encode(out), nil
}

func (p *Provider) required(to common.Address, data []byte) (uint64, string) {
	if to != p.contract || len(data) == 0 {
		return transferGas, ""
	}
	call, err := codec.DecodeCall(data)
	if err != nil {
		return transferGas, ""
	}
	return p.registry.GasFor(call.Method), call.Method
}

func (p *Provider) estimate(args txArgs) (any, error) {
	data, err := hexutil.Decode(args.Data)
	if err != nil {
		return nil, invalidParams(err)
	}
	to := common.HexToAddress(args.To)
	need, method := p.required(to, data)
	if method != "" {
		if _, err := p.registry.Execute(common.HexToAddress(args.From), data, 0, false); err != nil {
			return nil, reverted(err)
		}
	}
	return hexutil.EncodeUint64(need), nil
}

func (p *Provider) send(args txArgs) (any, error) {
	from, _, err := p.account(args.From)
	if err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(args.Data)
	if err != nil {
		return nil, invalidParams(err)
	}
	to := common.HexToAddress(args.To)
	need, method := p.required(to, data)

	limit := need
	if args.Gas != "" {
		if limit, err = hexutil.DecodeUint64(args.Gas); err != nil {
			return nil, invalidParams(err)
		}
		if limit < need {
			return nil, &wallet.ProviderError{Code: -32000, Message: "intrinsic gas too low"}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price := new(big.Int).Set(p.gasPrice)
	if args.GasPrice != "" {
		if price, err = hexutil.DecodeBig(args.GasPrice); err != nil {
			return nil, invalidParams(err)
		}
	}
	value := new(big.Int)
	if args.Value != "" {
		if value, err = hexutil.DecodeBig(args.Value); err != nil {
			return nil, invalidParams(err)
		}
	}
	cost := new(big.Int).Mul(price, new(big.Int).SetUint64(limit))
	cost.Add(cost, value)
	if p.balances[from].Cmp(cost) < 0 {
		return nil, &wallet.ProviderError{Code: -32000, Message: "insufficient funds for gas * price + value"}
	}

	blockTime := genesisTime + p.block + 1
	if method != "" {
		if _, err := p.registry.Execute(from, data, blockTime, true); err != nil {
			return nil, reverted(err)
		}
	}

	nonce := p.nonces[from]
	p.nonces[from] = nonce + 1
	p.block++

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	hash := crypto.Keccak256Hash(from.Bytes(), nonceBytes[:], data).Hex()

	spent := new(big.Int).Mul(price, new(big.Int).SetUint64(need))
	spent.Add(spent, value)
	p.balances[from].Sub(p.balances[from], spent)
	if value.Sign() > 0 {
		if p.balances[to] == nil {
			p.balances[to] = new(big.Int)
		}
		p.balances[to].Add(p.balances[to], value)
	}

	p.receipts[strings.ToLower(hash)] = receipt{
		TransactionHash: hash,
		BlockNumber:     hexutil.Uint64(p.block),
		GasUsed:         hexutil.Uint64(need),
		Status:          1,
	}
	p.logger.Debug("Mined transaction",
		zap.String("hash", hash),
		zap.String("method", method),
		zap.Uint64("block", p.block),
	)
	return hash, nil
}

func (p *Provider) sign(message, addr string) (any, error) {
	_, key, err := p.account(addr)
	if err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(message)
	if err != nil {
		data = []byte(message)
	}
	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func param(params []any, i int, out any) error {
	if i >= len(params) {
		return invalidParams(fmt.Errorf("missing parameter %d", i))
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return invalidParams(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams(err)
	}
	return nil
}

func invalidParams(err error) error {
	return &wallet.ProviderError{Code: -32602, Message: "invalid params: " + err.Error()}
}

func reverted(err error) error {
	var rev *RevertError
	if errors.As(err, &rev) {
		return &wallet.ProviderError{Code: constants.ProviderCodeExecutionReverted, Message: rev.Error()}
	}
	return err
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}
