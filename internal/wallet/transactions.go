package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/gas"
	"github.com/kaiacity/kaiapass/internal/networks"
	"go.uber.org/zap"
)

var errReceiptPending = errors.New("receipt not yet available")

// rpcTransaction is the eth_sendTransaction request object.
type rpcTransaction struct {
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Data     string `json:"data,omitempty"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

type rpcReceipt struct {
	TransactionHash string          `json:"transactionHash"`
	BlockNumber     *hexutil.Uint64 `json:"blockNumber"`
	GasUsed         *hexutil.Big    `json:"gasUsed"`
	Status          *hexutil.Uint64 `json:"status"`
}

// retryPlan is the pure part of the send loop: which params attempt n uses and
// whether a failure at attempt n is retried.
type retryPlan struct {
	base       TransactionParams
	maxRetries int
	delay      time.Duration
}

func (p retryPlan) paramsFor(attempt int) TransactionParams {
	if attempt == 0 {
		return p.base
	}
	escalated := gas.RetryGasSettings(gas.GasEstimate{GasLimit: p.base.Gas, GasPrice: p.base.GasPrice}, attempt)
	params := p.base
	params.Gas = escalated.GasLimit
	params.GasPrice = escalated.GasPrice
	return params
}

// next reports whether to retry after attempt failed with err and how long to
// wait first. A first failure that is not gas related is final.
func (p retryPlan) next(attempt int, err error) (bool, time.Duration) {
	if attempt >= p.maxRetries-1 {
		return false, 0
	}
	if attempt == 0 && !IsGasRelated(err) {
		return false, 0
	}
	return true, p.delay * time.Duration(attempt+1)
}

// SendTransaction submits params and waits for the receipt. A gas-related
// first failure is retried up to maxRetries attempts in total, escalating gas
// each time. Failures are returned as classified *Error values.
func (a *ProviderAdapter) SendTransaction(ctx context.Context, params TransactionParams, maxRetries int) (*TransactionResult, error) {
	const op = "sendTransaction"
	handle, account, err := a.connectedHandle(op)
	if err != nil {
		return nil, err
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	plan := retryPlan{base: params, maxRetries: maxRetries, delay: a.retryDelay}
	var lastErr error
	var lastHash string
	for attempt := 0; attempt < maxRetries; attempt++ {
		attemptParams := plan.paramsFor(attempt)
		a.logger.Info("Sending transaction",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.String("to", attemptParams.To),
			zap.String("gas", attemptParams.Gas),
			zap.String("gas_price", attemptParams.GasPrice),
		)

		result, hash, err := a.sendOnce(ctx, handle, account.Address, attemptParams)
		if err == nil {
			a.logger.Info("Transaction confirmed", zap.String("hash", result.Hash), zap.Int("attempt", attempt+1))
			return result, nil
		}
		lastErr = err
		if hash != "" {
			lastHash = hash
		}
		a.logger.Warn("Transaction attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))

		retry, delay := plan.next(attempt, err)
		if !retry {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	classified := &Error{
		Kind:    Classify(lastErr),
		Op:      op,
		Message: Describe(lastErr),
		TxHash:  lastHash,
		Err:     lastErr,
	}
	return nil, classified
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sendOnce broadcasts one attempt. The returned hash is set whenever the
// wallet accepted the transaction, even if it later failed.
func (a *ProviderAdapter) sendOnce(ctx context.Context, handle InjectedProvider, from string, params TransactionParams) (*TransactionResult, string, error) {
	tx, err := toRPCTransaction(from, params)
	if err != nil {
		return nil, "", err
	}

	var hash string
	if err := a.request(ctx, handle, "eth_sendTransaction", &hash, tx); err != nil {
		return nil, "", err
	}

	receipt, err := a.waitForReceipt(ctx, handle, hash)
	if err != nil {
		return nil, hash, err
	}
	if receipt.Status != nil && uint64(*receipt.Status) == 0 {
		return nil, hash, fmt.Errorf("transaction %s reverted", hash)
	}

	result := &TransactionResult{Hash: hash}
	if receipt.BlockNumber != nil {
		n := uint64(*receipt.BlockNumber)
		result.BlockNumber = &n
	}
	if receipt.GasUsed != nil {
		result.GasUsed = receipt.GasUsed.ToInt().String()
	}
	return result, hash, nil
}

func toRPCTransaction(from string, params TransactionParams) (rpcTransaction, error) {
	tx := rpcTransaction{From: from, To: params.To, Data: params.Data}
	fields := []struct {
		raw string
		dst *string
	}{
		{params.Value, &tx.Value},
		{params.Gas, &tx.Gas},
		{params.GasPrice, &tx.GasPrice},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		n, err := gas.ParseQuantity(f.raw)
		if err != nil {
			return rpcTransaction{}, err
		}
		*f.dst = hexutil.EncodeBig(n)
	}
	return tx, nil
}

func (a *ProviderAdapter) waitForReceipt(ctx context.Context, handle InjectedProvider, hash string) (*rpcReceipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.receiptInitialInterval
	b.MaxInterval = a.receiptMaxInterval
	b.MaxElapsedTime = a.receiptTimeout

	var receipt *rpcReceipt
	operation := func() error {
		var r *rpcReceipt
		if err := a.request(ctx, handle, "eth_getTransactionReceipt", &r, hash); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r == nil {
			return errReceiptPending
		}
		receipt = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errReceiptPending) {
			return nil, fmt.Errorf("timed out waiting for receipt of %s", hash)
		}
		return nil, fmt.Errorf("failed to get receipt of %s: %w", hash, err)
	}
	return receipt, nil
}

// SignMessage asks the wallet for a personal_sign signature over message.
func (a *ProviderAdapter) SignMessage(ctx context.Context, message string) (string, error) {
	const op = "signMessage"
	handle, account, err := a.connectedHandle(op)
	if err != nil {
		return "", err
	}
	var signature string
	if err := a.request(ctx, handle, "personal_sign", &signature, hexutil.Encode([]byte(message)), account.Address); err != nil {
		return "", classify(op, err)
	}
	return signature, nil
}

// SwitchNetwork asks the wallet to switch to chainID, adding the chain first
// when the wallet does not know it.
func (a *ProviderAdapter) SwitchNetwork(ctx context.Context, chainID uint64) error {
	const op = "switchNetwork"
	network, ok := a.registry.Lookup(chainID)
	if !ok {
		return NewPreconditionError(op, ReasonUnsupportedNetwork, fmt.Sprintf("unsupported network %d", chainID))
	}
	handle, err := a.liveHandle(op)
	if err != nil {
		return err
	}

	switchParams := networks.SwitchChainParams{ChainID: network.ChainIDHex()}
	err = a.request(ctx, handle, "wallet_switchEthereumChain", nil, switchParams)
	if code, ok := ProviderErrorCode(err); ok && code == constants.ProviderCodeUnrecognizedChain {
		a.logger.Info("Wallet does not know the chain, adding it", zap.Uint64("chain_id", chainID))
		if addErr := a.request(ctx, handle, "wallet_addEthereumChain", nil, networks.AddChainParamsFor(network)); addErr != nil {
			return classify(op, addErr)
		}
		err = a.request(ctx, handle, "wallet_switchEthereumChain", nil, switchParams)
	}
	if err != nil {
		return classify(op, err)
	}

	a.mu.Lock()
	if a.state.Status == StatusConnected {
		a.state.Network = &network
	}
	a.mu.Unlock()
	return nil
}

// weiString renders a balance quantity.
func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
