// Package simulator is an in-memory Kaia node with an injected wallet on top.
// It runs the KaiaDID registry natively so the wallet and DID layers can be
// exercised without a browser or a live network.
package simulator

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaiacity/kaiapass/internal/codec"
)

// RevertError is a failed contract execution.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func revert(reason string) error {
	return &RevertError{Reason: reason}
}

// Gas consumed by each registry write.
var writeGas = map[string]uint64{
	codec.MethodCreateDID:           280_000,
	codec.MethodUpdateDID:           200_000,
	codec.MethodDeactivateLatestDID: 90_000,
	codec.MethodTransferOwnership:   40_000,
}

// Registry is the KaiaDID contract state.
type Registry struct {
	mu         sync.Mutex
	owner      common.Address
	histories  map[common.Address][]codec.DIDDocument
	registered []common.Address
	minGas     map[string]uint64
	failing    map[string]int
}

// NewRegistry deploys an empty registry owned by owner.
func NewRegistry(owner common.Address) *Registry {
	minGas := make(map[string]uint64, len(writeGas))
	for m, g := range writeGas {
		minGas[m] = g
	}
	return &Registry{
		owner:     owner,
		histories: make(map[common.Address][]codec.DIDDocument),
		minGas:    minGas,
		failing:   make(map[string]int),
	}
}

// Owner returns the contract owner.
func (r *Registry) Owner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// SetMinGas overrides the gas a write consumes. Transactions sent with a
// lower limit fail with "intrinsic gas too low".
func (r *Registry) SetMinGas(method string, gas uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minGas[method] = gas
}

// GasFor returns the gas a call to method consumes.
func (r *Registry) GasFor(method string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.minGas[method]; ok {
		return g
	}
	return 30_000
}

// FailMethod makes the next times calls to the read accessor method revert
// without a reason, the way a flaky node reports an opaque call failure.
func (r *Registry) FailMethod(method string, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[method] = times
}

// Seed replaces the history of user, registering the address if needed.
func (r *Registry) Seed(user common.Address, docs ...codec.DIDDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.histories[user]; !ok {
		r.registered = append(r.registered, user)
	}
	r.histories[user] = append([]codec.DIDDocument(nil), docs...)
}

// History returns a copy of the stored history of user.
func (r *Registry) History(user common.Address) []codec.DIDDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]codec.DIDDocument(nil), r.histories[user]...)
}

func (r *Registry) hasActiveLocked(user common.Address) bool {
	h := r.histories[user]
	return len(h) > 0 && h[len(h)-1].IsActive
}

// Execute runs a state-changing call from sender at blockTime. With commit
// false it only checks that the call would succeed.
func (r *Registry) Execute(sender common.Address, data []byte, blockTime uint64, commit bool) (string, error) {
	call, err := codec.DecodeCall(data)
	if err != nil {
		return "", revert("unknown function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.histories[sender]
	switch call.Method {
	case codec.MethodCreateDID:
		info, err := call.Identity()
		if err != nil {
			return "", revert(err.Error())
		}
		if info.Name == "" {
			return "", revert("Name is required")
		}
		if r.hasActiveLocked(sender) {
			return "", revert("Active DID already exists")
		}
		if !commit {
			return call.Method, nil
		}
		if len(history) == 0 {
			r.registered = append(r.registered, sender)
		}
		r.histories[sender] = append(history, codec.DIDDocument{
			IdentityInfo: info,
			IsActive:     true,
			CreatedAt:    blockTime,
			UpdatedAt:    blockTime,
			Version:      uint64(len(history)) + 1,
		})

	case codec.MethodUpdateDID:
		info, err := call.Identity()
		if err != nil {
			return "", revert(err.Error())
		}
		if !r.hasActiveLocked(sender) {
			return "", revert("No active DID found")
		}
		if !commit {
			return call.Method, nil
		}
		last := &history[len(history)-1]
		last.IsActive = false
		last.UpdatedAt = blockTime
		r.histories[sender] = append(history, codec.DIDDocument{
			IdentityInfo: info,
			IsActive:     true,
			CreatedAt:    history[0].CreatedAt,
			UpdatedAt:    blockTime,
			Version:      uint64(len(history)) + 1,
		})

	case codec.MethodDeactivateLatestDID:
		if !r.hasActiveLocked(sender) {
			return "", revert("No active DID found")
		}
		if !commit {
			return call.Method, nil
		}
		last := &history[len(history)-1]
		last.IsActive = false
		last.UpdatedAt = blockTime

	case codec.MethodTransferOwnership:
		if sender != r.owner {
			return "", revert("Only owner")
		}
		newOwner, err := call.AddressArg(0)
		if err != nil {
			return "", revert(err.Error())
		}
		if commit {
			r.owner = newOwner
		}

	default:
		return "", revert(fmt.Sprintf("%s is not a state-changing function", call.Method))
	}
	return call.Method, nil
}

// Call runs a read-only accessor as sender and returns the ABI-encoded result.
func (r *Registry) Call(sender common.Address, data []byte) ([]byte, error) {
	call, err := codec.DecodeCall(data)
	if err != nil {
		return nil, revert("unknown function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n := r.failing[call.Method]; n > 0 {
		r.failing[call.Method] = n - 1
		return nil, revert("")
	}

	switch call.Method {
	case codec.MethodHasActiveDIDPublic, codec.MethodHasRegistered:
		user, err := call.AddressArg(0)
		if err != nil {
			return nil, revert(err.Error())
		}
		if call.Method == codec.MethodHasRegistered {
			_, ok := r.histories[user]
			return codec.PackResult(call.Method, ok)
		}
		return codec.PackResult(call.Method, r.hasActiveLocked(user))

	case codec.MethodGetDIDVersionCount:
		user, err := call.AddressArg(0)
		if err != nil {
			return nil, revert(err.Error())
		}
		return codec.PackResult(call.Method, big.NewInt(int64(len(r.histories[user]))))

	case codec.MethodGetLatestDID, codec.MethodGetMyLatestDID:
		user := sender
		if call.Method == codec.MethodGetLatestDID {
			if user, err = call.AddressArg(0); err != nil {
				return nil, revert(err.Error())
			}
		}
		h := r.histories[user]
		if len(h) == 0 {
			return nil, revert("No DID found")
		}
		return codec.PackDocumentResult(call.Method, h[len(h)-1])

	case codec.MethodGetAllDIDHistory, codec.MethodGetMyAllDIDHistory:
		user := sender
		if call.Method == codec.MethodGetAllDIDHistory {
			if user, err = call.AddressArg(0); err != nil {
				return nil, revert(err.Error())
			}
		}
		return codec.PackDocumentListResult(call.Method, r.histories[user])

	case codec.MethodGetDIDByVersion:
		user, err := call.AddressArg(0)
		if err != nil {
			return nil, revert(err.Error())
		}
		version, err := call.UintArg(1)
		if err != nil {
			return nil, revert(err.Error())
		}
		h := r.histories[user]
		if version == 0 || version > uint64(len(h)) {
			return nil, revert("Invalid version")
		}
		return codec.PackDocumentResult(call.Method, h[version-1])

	case codec.MethodDIDDocumentHistory:
		user, err := call.AddressArg(0)
		if err != nil {
			return nil, revert(err.Error())
		}
		index, err := call.UintArg(1)
		if err != nil {
			return nil, revert(err.Error())
		}
		h := r.histories[user]
		if index >= uint64(len(h)) {
			return nil, revert("index out of bounds")
		}
		return codec.PackHistoryEntryResult(h[index])

	case codec.MethodGetTotalActiveDIDs:
		var active int64
		for _, user := range r.registered {
			if r.hasActiveLocked(user) {
				active++
			}
		}
		return codec.PackResult(call.Method, big.NewInt(active))

	case codec.MethodGetTotalRegisteredAddresses:
		return codec.PackResult(call.Method, big.NewInt(int64(len(r.registered))))

	case codec.MethodRegisteredAddresses:
		index, err := call.UintArg(0)
		if err != nil {
			return nil, revert(err.Error())
		}
		if index >= uint64(len(r.registered)) {
			return nil, revert("index out of bounds")
		}
		return codec.PackResult(call.Method, r.registered[index])

	case codec.MethodGetAllRegisteredAddresses, codec.MethodGetAllActiveDIDAddresses:
		if sender != r.owner {
			return nil, revert("Only owner")
		}
		out := []common.Address{}
		for _, user := range r.registered {
			if call.Method == codec.MethodGetAllRegisteredAddresses || r.hasActiveLocked(user) {
				out = append(out, user)
			}
		}
		return codec.PackResult(call.Method, out)

	case codec.MethodOwner:
		return codec.PackResult(call.Method, r.owner)
	}
	return nil, revert(fmt.Sprintf("%s is not a view function", call.Method))
}
