package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/gas"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WalletSource supplies the currently selected wallet. *wallet.Adapter
// satisfies it.
type WalletSource interface {
	CurrentWallet() wallet.Wallet
}

// TransactionRecord describes a confirmed DID write.
type TransactionRecord struct {
	ID          uuid.UUID `json:"id"`
	Operation   string    `json:"operation"`
	Event       string    `json:"event"`
	Address     string    `json:"address"`
	ChainID     uint64    `json:"chain_id"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber *uint64   `json:"block_number,omitempty"`
	GasUsed     string    `json:"gas_used,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionObserver is notified after every confirmed DID write. Observer
// failures are logged and never fail the write.
type TransactionObserver interface {
	ObserveTransaction(ctx context.Context, record TransactionRecord) error
}

// RegistryStats are the registry-wide counters.
type RegistryStats struct {
	TotalActiveDIDs          uint64 `json:"total_active_dids"`
	TotalRegisteredAddresses uint64 `json:"total_registered_addresses"`
	Owner                    string `json:"owner"`
}

// DIDServiceOption configures a DIDService.
type DIDServiceOption func(*DIDService)

// WithExpectedChainID pins the chain DID operations run against.
func WithExpectedChainID(chainID uint64) DIDServiceOption {
	return func(s *DIDService) { s.expectedChainID = chainID }
}

// WithContractAddress sets the registry address.
func WithContractAddress(address string) DIDServiceOption {
	return func(s *DIDService) { s.contract = address }
}

// WithMaxRetries sets the send attempts per write.
func WithMaxRetries(n int) DIDServiceOption {
	return func(s *DIDService) { s.maxRetries = n }
}

// WithObservers registers transaction observers.
func WithObservers(observers ...TransactionObserver) DIDServiceOption {
	return func(s *DIDService) { s.observers = append(s.observers, observers...) }
}

// WithGasBackend sets the backend used for gas estimates while no wallet is
// connected.
func WithGasBackend(backend gas.ChainBackend) DIDServiceOption {
	return func(s *DIDService) { s.gasBackend = backend }
}

// WithNetworks sets the registry used to resolve the expected network.
func WithNetworks(registry *networks.Registry) DIDServiceOption {
	return func(s *DIDService) { s.networks = registry }
}

// DIDService runs KaiaDID registry operations through the current wallet.
type DIDService struct {
	wallets         WalletSource
	expectedChainID uint64
	contract        string
	maxRetries      int
	observers       []TransactionObserver
	gasBackend      gas.ChainBackend
	networks        *networks.Registry
	logger          *zap.Logger

	fetching atomic.Bool
	cacheMu  sync.Mutex
	cached   *codec.DIDDocument
}

// NewDIDService creates a service bound to wallets.
func NewDIDService(wallets WalletSource, opts ...DIDServiceOption) *DIDService {
	s := &DIDService{
		wallets:         wallets,
		expectedChainID: constants.DefaultExpectedChainID,
		contract:        constants.DefaultDIDContractAddress,
		maxRetries:      wallet.DefaultMaxRetries,
		networks:        networks.DefaultRegistry(),
		logger:          logger.Log.Named("did"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContractAddress returns the registry address.
func (s *DIDService) ContractAddress() string {
	return s.contract
}

// ExpectedChainID returns the chain DID operations are pinned to.
func (s *DIDService) ExpectedChainID() uint64 {
	return s.expectedChainID
}

// ready returns the current wallet when it is connected to the expected
// chain. It makes no provider calls.
func (s *DIDService) ready(op string) (wallet.Wallet, wallet.WalletState, error) {
	w := s.wallets.CurrentWallet()
	if w == nil {
		return nil, wallet.WalletState{}, wallet.NewPreconditionError(op, wallet.ReasonNotConnected, "no wallet is connected")
	}
	state := w.State()
	if !state.IsConnected() {
		return nil, state, wallet.NewPreconditionError(op, wallet.ReasonNotConnected, "wallet is not connected")
	}
	if state.Network.ChainID != s.expectedChainID {
		return nil, state, wallet.NewPreconditionError(op, wallet.ReasonWrongNetwork,
			fmt.Sprintf("wallet is on chain %d, expected %d", state.Network.ChainID, s.expectedChainID))
	}
	return w, state, nil
}

// IssueIdentity creates the caller's first or next DID.
func (s *DIDService) IssueIdentity(ctx context.Context, info codec.IdentityInfo) (*wallet.TransactionResult, error) {
	if strings.TrimSpace(info.Name) == "" {
		return nil, wallet.NewPreconditionError("issueIdentity", wallet.ReasonInvalidInput, "name is required")
	}
	return s.write(ctx, "issueIdentity", gas.OperationIssue, func() ([]byte, error) {
		return codec.EncodeCreate(info)
	})
}

// UpdateIdentity replaces the caller's active DID with a new version.
func (s *DIDService) UpdateIdentity(ctx context.Context, info codec.IdentityInfo) (*wallet.TransactionResult, error) {
	return s.write(ctx, "updateIdentity", gas.OperationUpdate, func() ([]byte, error) {
		return codec.EncodeUpdate(info)
	})
}

// DeactivateIdentity deactivates the caller's latest DID.
func (s *DIDService) DeactivateIdentity(ctx context.Context) (*wallet.TransactionResult, error) {
	return s.write(ctx, "deactivateIdentity", gas.OperationDeactivate, codec.EncodeDeactivate)
}

func (s *DIDService) write(ctx context.Context, op string, gasOp gas.Operation, encode func() ([]byte, error)) (*wallet.TransactionResult, error) {
	w, state, err := s.ready(op)
	if err != nil {
		return nil, err
	}

	data, err := encode()
	if err != nil {
		return nil, &wallet.Error{Kind: wallet.KindPrecondition, Op: op, Reason: wallet.ReasonInvalidInput, Message: err.Error(), Err: err}
	}

	defaults := gas.DefaultEstimate(gasOp)
	params := wallet.TransactionParams{
		To:       s.contract,
		Data:     hexutil.Encode(data),
		Gas:      defaults.GasLimit,
		GasPrice: defaults.GasPrice,
	}

	s.logger.Info("Submitting DID transaction",
		zap.String("operation", op),
		zap.String("address", state.Account.Address),
		zap.String("gas", params.Gas),
	)
	result, err := w.SendTransaction(ctx, params, s.maxRetries)
	if err != nil {
		s.logger.Warn("DID transaction failed", zap.String("operation", op), zap.Error(err))
		return nil, err
	}

	s.setCache(nil)
	s.notify(ctx, TransactionRecord{
		ID:          uuid.New(),
		Operation:   string(gasOp),
		Event:       eventFor(gasOp),
		Address:     state.Account.Address,
		ChainID:     state.Network.ChainID,
		TxHash:      result.Hash,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		CreatedAt:   time.Now().UTC(),
	})
	return result, nil
}

func eventFor(op gas.Operation) string {
	switch op {
	case gas.OperationIssue:
		return constants.EventDIDCreated
	case gas.OperationUpdate:
		return constants.EventDIDUpdated
	case gas.OperationDeactivate:
		return constants.EventDIDDeactivated
	}
	return ""
}

func (s *DIDService) notify(ctx context.Context, record TransactionRecord) {
	for _, o := range s.observers {
		if err := o.ObserveTransaction(ctx, record); err != nil {
			s.logger.Error("Transaction observer failed",
				zap.String("tx_hash", record.TxHash),
				zap.String("observer", fmt.Sprintf("%T", o)),
				zap.Error(err),
			)
		}
	}
}

func (s *DIDService) call(ctx context.Context, w wallet.Wallet, from string, data []byte) ([]byte, error) {
	return w.Call(ctx, wallet.CallParams{From: from, To: s.contract, Data: data})
}

func (s *DIDService) cachedLatest() *codec.DIDDocument {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cached == nil {
		return nil
	}
	doc := *s.cached
	return &doc
}

func (s *DIDService) setCache(doc *codec.DIDDocument) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cached = doc
}

// FetchLatestDID returns the caller's current DID, or nil when there is none
// or no usable wallet. A call made while another is in flight returns the
// last fetched value instead of querying again.
func (s *DIDService) FetchLatestDID(ctx context.Context) (*codec.DIDDocument, error) {
	if !s.fetching.CompareAndSwap(false, true) {
		s.logger.Debug("Latest DID fetch already in flight, returning cached value")
		return s.cachedLatest(), nil
	}
	defer s.fetching.Store(false)

	w, state, err := s.ready("fetchLatestDID")
	if err != nil {
		s.logger.Debug("Skipping latest DID fetch", zap.Error(err))
		return nil, nil
	}

	doc := s.latestFor(ctx, w, state.Account.Address)
	s.setCache(doc)
	if doc == nil {
		return nil, nil
	}
	out := *doc
	return &out, nil
}

// latestFor tries getLatestDID first and falls back to selecting from the
// full history, since the direct accessor is unreliable on the deployed
// registry.
func (s *DIDService) latestFor(ctx context.Context, w wallet.Wallet, address string) *codec.DIDDocument {
	if data, err := codec.EncodeLatestDID(address); err == nil {
		out, err := s.call(ctx, w, address, data)
		if err == nil {
			doc, derr := codec.DecodeDIDDocument(codec.MethodGetLatestDID, out)
			if derr == nil && doc != nil {
				return doc
			}
			if derr != nil {
				s.logger.Debug("Undecodable getLatestDID result", zap.Error(derr))
			}
		} else {
			s.logger.Debug("getLatestDID failed, falling back to history", zap.Error(err))
		}
	}

	history, err := s.history(ctx, w, address, address)
	if err != nil {
		s.logger.Debug("History fallback failed", zap.Error(err))
		return nil
	}
	return SelectLatestDocument(history)
}

// SelectLatestDocument picks the highest-version active document, or the
// highest version overall when none is active. It returns nil for an empty
// history.
func SelectLatestDocument(docs []codec.DIDDocument) *codec.DIDDocument {
	var best, bestActive *codec.DIDDocument
	for i := range docs {
		d := &docs[i]
		if best == nil || d.Version > best.Version {
			best = d
		}
		if d.IsActive && (bestActive == nil || d.Version > bestActive.Version) {
			bestActive = d
		}
	}
	if bestActive != nil {
		best = bestActive
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func (s *DIDService) history(ctx context.Context, w wallet.Wallet, from, user string) ([]codec.DIDDocument, error) {
	data, err := codec.EncodeAllDIDHistory(user)
	if err != nil {
		return nil, err
	}
	out, err := s.call(ctx, w, from, data)
	if err != nil {
		return nil, err
	}
	return codec.DecodeDIDDocumentList(codec.MethodGetAllDIDHistory, out)
}

// resolveAddress defaults an empty address to the connected account.
func resolveAddress(op, address string, state wallet.WalletState) (string, error) {
	if address == "" {
		return state.Account.Address, nil
	}
	if !common.IsHexAddress(address) {
		return "", wallet.NewPreconditionError(op, wallet.ReasonInvalidInput, fmt.Sprintf("invalid address %q", address))
	}
	return common.HexToAddress(address).Hex(), nil
}

// FetchHistory returns every DID version of address, defaulting to the
// caller. Read failures degrade to an empty history.
func (s *DIDService) FetchHistory(ctx context.Context, address string) ([]codec.DIDDocument, error) {
	w, state, err := s.ready("fetchHistory")
	if err != nil {
		return nil, err
	}
	user, err := resolveAddress("fetchHistory", address, state)
	if err != nil {
		return nil, err
	}
	docs, err := s.history(ctx, w, state.Account.Address, user)
	if err != nil {
		s.logger.Warn("Failed to fetch DID history", zap.String("address", user), zap.Error(err))
		return []codec.DIDDocument{}, nil
	}
	return docs, nil
}

// FetchMyHistory returns the caller's history through getMyAllDIDHistory,
// falling back to getAllDIDHistory for the caller's address.
func (s *DIDService) FetchMyHistory(ctx context.Context) ([]codec.DIDDocument, error) {
	w, state, err := s.ready("fetchMyHistory")
	if err != nil {
		return nil, err
	}
	self := state.Account.Address

	data, err := codec.EncodeMyAllDIDHistory()
	if err == nil {
		out, callErr := s.call(ctx, w, self, data)
		if callErr == nil {
			docs, decErr := codec.DecodeDIDDocumentList(codec.MethodGetMyAllDIDHistory, out)
			if decErr == nil {
				return docs, nil
			}
			err = decErr
		} else {
			err = callErr
		}
	}
	s.logger.Debug("getMyAllDIDHistory failed, falling back", zap.Error(err))

	docs, err := s.history(ctx, w, self, self)
	if err != nil {
		s.logger.Warn("Failed to fetch own DID history", zap.Error(err))
		return []codec.DIDDocument{}, nil
	}
	return docs, nil
}

// readScalar runs a view call for op and classifies failures.
func (s *DIDService) readScalar(ctx context.Context, op string, encode func(state wallet.WalletState) ([]byte, error)) ([]byte, wallet.WalletState, error) {
	w, state, err := s.ready(op)
	if err != nil {
		return nil, state, err
	}
	data, err := encode(state)
	if err != nil {
		var werr *wallet.Error
		if errors.As(err, &werr) {
			return nil, state, err
		}
		return nil, state, wallet.NewPreconditionError(op, wallet.ReasonInvalidInput, err.Error())
	}
	out, err := s.call(ctx, w, state.Account.Address, data)
	if err != nil {
		return nil, state, readError(op, err)
	}
	return out, state, nil
}

func readError(op string, err error) error {
	var werr *wallet.Error
	if errors.As(err, &werr) {
		return err
	}
	return &wallet.Error{Kind: wallet.Classify(err), Op: op, Message: err.Error(), Err: err}
}

func decodeFailure(op string, err error) error {
	return &wallet.Error{Kind: wallet.KindUnknown, Op: op, Message: "unexpected registry response", Err: err}
}

// HasActiveDID reports whether address (default: caller) has an active DID.
func (s *DIDService) HasActiveDID(ctx context.Context, address string) (bool, error) {
	const op = "hasActiveDID"
	out, _, err := s.readScalar(ctx, op, func(state wallet.WalletState) ([]byte, error) {
		user, err := resolveAddress(op, address, state)
		if err != nil {
			return nil, err
		}
		return codec.EncodeHasActiveDID(user)
	})
	if err != nil {
		return false, err
	}
	active, err := codec.DecodeBool(out)
	if err != nil {
		return false, decodeFailure(op, err)
	}
	return active, nil
}

// HasRegistered reports whether address (default: caller) ever held a DID.
func (s *DIDService) HasRegistered(ctx context.Context, address string) (bool, error) {
	const op = "hasRegistered"
	out, _, err := s.readScalar(ctx, op, func(state wallet.WalletState) ([]byte, error) {
		user, err := resolveAddress(op, address, state)
		if err != nil {
			return nil, err
		}
		return codec.EncodeHasRegistered(user)
	})
	if err != nil {
		return false, err
	}
	registered, err := codec.DecodeBool(out)
	if err != nil {
		return false, decodeFailure(op, err)
	}
	return registered, nil
}

// VersionCount returns how many DID versions address (default: caller) has.
func (s *DIDService) VersionCount(ctx context.Context, address string) (uint64, error) {
	const op = "versionCount"
	out, _, err := s.readScalar(ctx, op, func(state wallet.WalletState) ([]byte, error) {
		user, err := resolveAddress(op, address, state)
		if err != nil {
			return nil, err
		}
		return codec.EncodeVersionCount(user)
	})
	if err != nil {
		return 0, err
	}
	n, err := codec.DecodeUint64(codec.MethodGetDIDVersionCount, out)
	if err != nil {
		return 0, decodeFailure(op, err)
	}
	return n, nil
}

// DIDByVersion returns one version of address's DID, or nil when it does not
// exist.
func (s *DIDService) DIDByVersion(ctx context.Context, address string, version uint64) (*codec.DIDDocument, error) {
	const op = "didByVersion"
	out, _, err := s.readScalar(ctx, op, func(state wallet.WalletState) ([]byte, error) {
		user, err := resolveAddress(op, address, state)
		if err != nil {
			return nil, err
		}
		return codec.EncodeDIDByVersion(user, version)
	})
	if err != nil {
		if wallet.IsKind(err, wallet.KindPrecondition) {
			return nil, err
		}
		s.logger.Debug("DID version lookup failed", zap.Uint64("version", version), zap.Error(err))
		return nil, nil
	}
	doc, err := codec.DecodeDIDDocument(codec.MethodGetDIDByVersion, out)
	if err != nil {
		return nil, nil
	}
	return doc, nil
}

// HistoryEntry reads didDocumentHistory(address, index), or nil when absent.
func (s *DIDService) HistoryEntry(ctx context.Context, address string, index uint64) (*codec.DIDDocument, error) {
	const op = "historyEntry"
	out, _, err := s.readScalar(ctx, op, func(state wallet.WalletState) ([]byte, error) {
		user, err := resolveAddress(op, address, state)
		if err != nil {
			return nil, err
		}
		return codec.EncodeHistoryEntry(user, index)
	})
	if err != nil {
		if wallet.IsKind(err, wallet.KindPrecondition) {
			return nil, err
		}
		s.logger.Debug("History entry lookup failed", zap.Uint64("index", index), zap.Error(err))
		return nil, nil
	}
	doc, err := codec.DecodeHistoryEntry(out)
	if err != nil {
		return nil, nil
	}
	return doc, nil
}

// RegisteredAddressAt returns registeredAddresses(index).
func (s *DIDService) RegisteredAddressAt(ctx context.Context, index uint64) (string, error) {
	const op = "registeredAddressAt"
	out, _, err := s.readScalar(ctx, op, func(wallet.WalletState) ([]byte, error) {
		return codec.EncodeRegisteredAddress(index)
	})
	if err != nil {
		return "", err
	}
	addr, err := codec.DecodeAddress(codec.MethodRegisteredAddresses, out)
	if err != nil {
		return "", decodeFailure(op, err)
	}
	return addr, nil
}

// Owner returns the registry owner.
func (s *DIDService) Owner(ctx context.Context) (string, error) {
	const op = "owner"
	out, _, err := s.readScalar(ctx, op, func(wallet.WalletState) ([]byte, error) {
		return codec.EncodeOwner()
	})
	if err != nil {
		return "", err
	}
	owner, err := codec.DecodeAddress(codec.MethodOwner, out)
	if err != nil {
		return "", decodeFailure(op, err)
	}
	return owner, nil
}

func (s *DIDService) readCount(ctx context.Context, op, method string, encode func() ([]byte, error)) (uint64, error) {
	out, _, err := s.readScalar(ctx, op, func(wallet.WalletState) ([]byte, error) {
		return encode()
	})
	if err != nil {
		return 0, err
	}
	n, err := codec.DecodeUint64(method, out)
	if err != nil {
		return 0, decodeFailure(op, err)
	}
	return n, nil
}

// Stats reads the registry counters and owner concurrently.
func (s *DIDService) Stats(ctx context.Context) (*RegistryStats, error) {
	var stats RegistryStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.readCount(gctx, "totalActiveDIDs", codec.MethodGetTotalActiveDIDs, codec.EncodeTotalActiveDIDs)
		stats.TotalActiveDIDs = n
		return err
	})
	g.Go(func() error {
		n, err := s.readCount(gctx, "totalRegisteredAddresses", codec.MethodGetTotalRegisteredAddresses, codec.EncodeTotalRegisteredAddresses)
		stats.TotalRegisteredAddresses = n
		return err
	})
	g.Go(func() error {
		owner, err := s.Owner(gctx)
		stats.Owner = owner
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// requireOwner fails unless the connected account owns the registry.
func (s *DIDService) requireOwner(ctx context.Context, op string) error {
	owner, err := s.Owner(ctx)
	if err != nil {
		return err
	}
	_, state, err := s.ready(op)
	if err != nil {
		return err
	}
	if !strings.EqualFold(owner, state.Account.Address) {
		return wallet.NewPreconditionError(op, wallet.ReasonOwnerOnly, "only the registry owner may list addresses")
	}
	return nil
}

func (s *DIDService) ownerList(ctx context.Context, op, method string, encode func() ([]byte, error)) ([]string, error) {
	if err := s.requireOwner(ctx, op); err != nil {
		return nil, err
	}
	out, _, err := s.readScalar(ctx, op, func(wallet.WalletState) ([]byte, error) {
		return encode()
	})
	if err != nil {
		return nil, err
	}
	list, err := codec.DecodeAddressList(method, out)
	if err != nil {
		return nil, decodeFailure(op, err)
	}
	return list, nil
}

// AllRegisteredAddresses lists every address that ever held a DID. Owner
// only.
func (s *DIDService) AllRegisteredAddresses(ctx context.Context) ([]string, error) {
	return s.ownerList(ctx, "allRegisteredAddresses", codec.MethodGetAllRegisteredAddresses, codec.EncodeAllRegisteredAddresses)
}

// AllActiveDIDAddresses lists addresses with an active DID. Owner only.
func (s *DIDService) AllActiveDIDAddresses(ctx context.Context) ([]string, error) {
	return s.ownerList(ctx, "allActiveDIDAddresses", codec.MethodGetAllActiveDIDAddresses, codec.EncodeAllActiveDIDAddresses)
}

// ContractDeployed reports whether the registry has code on the wallet's
// chain.
func (s *DIDService) ContractDeployed(ctx context.Context) (bool, error) {
	const op = "contractDeployed"
	w := s.wallets.CurrentWallet()
	if w == nil || !w.State().IsConnected() {
		return false, wallet.NewPreconditionError(op, wallet.ReasonNotConnected, "wallet is not connected")
	}
	code, err := w.CodeAt(ctx, s.contract)
	if err != nil {
		return false, readError(op, err)
	}
	return len(code) > 0, nil
}
