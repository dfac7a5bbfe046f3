package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/gas"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// DefaultQRSize is the PNG edge length of identity QR codes.
const DefaultQRSize = 256

// DIDURI renders the DID of address on chainID.
func DIDURI(chainID uint64, address string) string {
	return fmt.Sprintf("did:kaia:%d:%s", chainID, address)
}

// estimator picks the connected wallet when it is on the expected chain, then
// the configured gas backend. It returns nil when neither is usable.
func (s *DIDService) estimator() (*gas.Estimator, string) {
	network := s.expectedNetwork()
	if w := s.wallets.CurrentWallet(); w != nil {
		state := w.State()
		if state.IsConnected() && state.Network.ChainID == s.expectedChainID {
			return gas.NewEstimator(w, network), state.Account.Address
		}
	}
	if s.gasBackend != nil {
		return gas.NewEstimator(s.gasBackend, network), ""
	}
	return nil, ""
}

func (s *DIDService) expectedNetwork() networks.Network {
	return s.networks.Resolve(s.expectedChainID)
}

// EstimateIssueGas estimates createDID for info from the connected account.
// It never fails: without a usable backend the static default is returned.
func (s *DIDService) EstimateIssueGas(ctx context.Context, info codec.IdentityInfo) gas.GasEstimate {
	data, err := codec.EncodeCreate(info)
	if err != nil {
		return gas.DefaultEstimate(gas.OperationIssue)
	}
	return s.EstimateGas(ctx, gas.OperationIssue, data)
}

// EstimateGas estimates a registry call of kind op with call data.
func (s *DIDService) EstimateGas(ctx context.Context, op gas.Operation, data []byte) gas.GasEstimate {
	est, from := s.estimator()
	if est == nil {
		s.logger.Debug("No gas backend available, using defaults", zap.String("operation", string(op)))
		return gas.DefaultEstimate(op)
	}
	return est.Estimate(ctx, gas.CallRequest{From: from, To: s.contract, Data: data}, op)
}

// NetworkGasStats reports fee conditions on the expected chain.
func (s *DIDService) NetworkGasStats(ctx context.Context) gas.NetworkStats {
	est, _ := s.estimator()
	if est == nil {
		est = gas.NewEstimator(unavailableBackend{}, s.expectedNetwork())
	}
	return est.NetworkStats(ctx)
}

// AdjustedGasPrice returns the optimal price scaled by percent.
func (s *DIDService) AdjustedGasPrice(ctx context.Context, percent int64) string {
	est, _ := s.estimator()
	if est == nil {
		est = gas.NewEstimator(unavailableBackend{}, s.expectedNetwork())
	}
	return est.AdjustedGasPrice(ctx, percent).String()
}

// IdentityQRCode renders the DID URI of address (default: caller) as a PNG.
func (s *DIDService) IdentityQRCode(address string, size int) ([]byte, string, error) {
	const op = "identityQRCode"
	if address == "" {
		w := s.wallets.CurrentWallet()
		if w == nil {
			return nil, "", wallet.NewPreconditionError(op, wallet.ReasonNotConnected, "no wallet is connected")
		}
		state := w.State()
		if !state.IsConnected() {
			return nil, "", wallet.NewPreconditionError(op, wallet.ReasonNotConnected, "wallet is not connected")
		}
		address = state.Account.Address
	}
	if !common.IsHexAddress(address) {
		return nil, "", wallet.NewPreconditionError(op, wallet.ReasonInvalidInput, fmt.Sprintf("invalid address %q", address))
	}
	if size <= 0 {
		size = DefaultQRSize
	}

	uri := DIDURI(s.expectedChainID, common.HexToAddress(address).Hex())
	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, uri, nil
}

var errNoGasBackend = errors.New("no gas backend configured")

// unavailableBackend makes an estimator fall back to its static defaults.
type unavailableBackend struct{}

func (unavailableBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errNoGasBackend
}

func (unavailableBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errNoGasBackend
}
