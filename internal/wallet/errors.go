package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kaiacity/kaiapass/internal/constants"
)

// ErrorKind classifies failures crossing the wallet boundary.
type ErrorKind string

const (
	KindAvailability        ErrorKind = "availability"
	KindUnsupportedProvider ErrorKind = "unsupported_provider"
	KindPrecondition        ErrorKind = "precondition"
	KindUserRejected        ErrorKind = "user_rejected"
	KindGas                 ErrorKind = "gas"
	KindNonce               ErrorKind = "nonce"
	KindNetwork             ErrorKind = "network"
	KindUnknown             ErrorKind = "unknown"
)

// Precondition reasons.
const (
	ReasonNotConnected       = "not_connected"
	ReasonWrongNetwork       = "wrong_network"
	ReasonConnectInProgress  = "connect_in_progress"
	ReasonUnsupportedNetwork = "unsupported_network"
	ReasonInvalidInput       = "invalid_input"
	ReasonOwnerOnly          = "owner_only"
)

// Error is the classified error returned by adapters, the façade and the DID
// service. TxHash is set when a transaction was broadcast before failing.
type Error struct {
	Kind    ErrorKind
	Op      string
	Reason  string
	Message string
	TxHash  string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewPreconditionError reports a call made in the wrong state.
func NewPreconditionError(op, reason, message string) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Reason: reason, Message: message}
}

// NewAvailabilityError reports that provider is not installed.
func NewAvailabilityError(op string, provider WalletProvider) *Error {
	return &Error{
		Kind:    KindAvailability,
		Op:      op,
		Message: fmt.Sprintf("%s wallet is not available", provider),
	}
}

// NewUnsupportedProviderError reports a provider with no registered adapter.
func NewUnsupportedProviderError(provider WalletProvider) *Error {
	return &Error{
		Kind:    KindUnsupportedProvider,
		Op:      "selectWallet",
		Message: fmt.Sprintf("unsupported wallet provider %q", provider),
	}
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a classified error of kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsPrecondition reports a precondition failure with the given reason.
func IsPrecondition(err error, reason string) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindPrecondition && e.Reason == reason
}

type errorCoder interface {
	ErrorCode() int
}

// ProviderErrorCode extracts an EIP-1193 / JSON-RPC error code.
func ProviderErrorCode(err error) (int, bool) {
	var coder errorCoder
	if errors.As(err, &coder) {
		return coder.ErrorCode(), true
	}
	return 0, false
}

var gasKeywords = []string{"gas", "intrinsic", "insufficient", "out of gas"}

// IsGasRelated reports whether err's message mentions a gas or funds problem.
func IsGasRelated(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range gasKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isUserRejection(err error) bool {
	if code, ok := ProviderErrorCode(err); ok && code == constants.ProviderCodeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "rejected by user")
}

// Classify maps a raw provider error to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if isUserRejection(err) {
		return KindUserRejected
	}
	if IsGasRelated(err) {
		return KindGas
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce"):
		return KindNonce
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "disconnected"):
		return KindNetwork
	}
	return KindUnknown
}

// Describe renders a human-readable message for a failed wallet operation.
func Describe(err error) string {
	if err == nil {
		return "An unknown error occurred."
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return "Insufficient balance. Make sure the wallet holds enough KAIA."
	case strings.Contains(msg, "gas") && strings.Contains(msg, "intrinsic"):
		return "Gas limit is too low to process the transaction."
	case strings.Contains(msg, "gas") && strings.Contains(msg, "limit"):
		return "Gas limit exceeded. Retry with a higher gas limit."
	case strings.Contains(msg, "nonce"):
		return "Nonce conflict. Wait for pending transactions and try again."
	case isUserRejection(err) || strings.Contains(msg, "rejected"):
		return "The request was rejected in the wallet."
	case strings.Contains(msg, "network"):
		return "Network problem. Check the connection and try again."
	}
	return "Transaction failed: " + err.Error()
}

// classify wraps a raw error into an *Error for op. Already classified errors
// pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Message: Describe(err), Err: err}
}
