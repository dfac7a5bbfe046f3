// Package codec encodes calls to and decodes results from the KaiaDID registry
// contract. All ABI work is delegated to go-ethereum's accounts/abi package;
// this package only adds typed wrappers and the registry's result conventions.
package codec

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed kaia_did.abi.json
var registryABIJSON string

var registryABI = mustParseABI(registryABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse KaiaDID ABI: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed registry ABI.
func ABI() abi.ABI {
	return registryABI
}

// Registry method names.
const (
	MethodCreateDID                   = "createDID"
	MethodUpdateDID                   = "updateDID"
	MethodDeactivateLatestDID         = "deactivateLatestDID"
	MethodTransferOwnership           = "transferOwnership"
	MethodHasActiveDIDPublic          = "hasActiveDIDPublic"
	MethodHasRegistered               = "hasRegistered"
	MethodGetDIDVersionCount          = "getDIDVersionCount"
	MethodGetLatestDID                = "getLatestDID"
	MethodGetMyLatestDID              = "getMyLatestDID"
	MethodGetAllDIDHistory            = "getAllDIDHistory"
	MethodGetMyAllDIDHistory          = "getMyAllDIDHistory"
	MethodGetDIDByVersion             = "getDIDByVersion"
	MethodGetTotalActiveDIDs          = "getTotalActiveDIDs"
	MethodGetTotalRegisteredAddresses = "getTotalRegisteredAddresses"
	MethodGetAllRegisteredAddresses   = "getAllRegisteredAddresses"
	MethodGetAllActiveDIDAddresses    = "getAllActiveDIDAddresses"
	MethodOwner                       = "owner"
	MethodRegisteredAddresses         = "registeredAddresses"
	MethodDIDDocumentHistory          = "didDocumentHistory"
)

// IdentityInfo is the user-supplied identity payload.
type IdentityInfo struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// DIDDocument is one version of an identity as stored on chain. Address holds
// the contract's homeAddress field.
type DIDDocument struct {
	IdentityInfo
	IsActive  bool   `json:"is_active"`
	CreatedAt uint64 `json:"created_at"`
	UpdatedAt uint64 `json:"updated_at"`
	Version   uint64 `json:"version"`
}

// didDocumentTuple mirrors the ABI-generated struct for KaiaDID3.DIDDocument so
// abi.ConvertType can convert between them.
type didDocumentTuple struct {
	Name        string
	BirthDate   string
	HomeAddress string
	Phone       string
	IsActive    bool
	CreatedAt   *big.Int
	UpdatedAt   *big.Int
	Version     *big.Int
}

// DecodeError reports a result that does not match the registry's ABI.
type DecodeError struct {
	Method string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decode %s result: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to decode %s result: %s", e.Method, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(method, reason string, err error) error {
	return &DecodeError{Method: method, Reason: reason, Err: err}
}

func pack(method string, args ...interface{}) ([]byte, error) {
	data, err := registryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}
	return data, nil
}

func parseAddress(method, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("failed to encode %s call: invalid address %q", method, raw)
	}
	return common.HexToAddress(raw), nil
}

func unpack(method string, data []byte, arity int) (values []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, decodeErr(method, fmt.Sprintf("malformed data: %v", r), nil)
		}
	}()
	values, err = registryABI.Unpack(method, data)
	if err != nil {
		return nil, decodeErr(method, "unpack failed", err)
	}
	if len(values) != arity {
		return nil, decodeErr(method, fmt.Sprintf("expected %d values, got %d", arity, len(values)), nil)
	}
	return values, nil
}

// emptyArrayResult is the ABI encoding of an empty dynamic array: offset 0x20
// followed by a zero length word.
var emptyArrayResult = append(common.LeftPadBytes([]byte{0x20}, 32), make([]byte, 32)...)

// IsEmptyArrayResult reports whether data is "0x" or the empty-array pattern.
func IsEmptyArrayResult(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, emptyArrayResult)
}

func uint64Of(method, field string, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, decodeErr(method, field+" overflows uint64", nil)
	}
	return v.Uint64(), nil
}

func (t didDocumentTuple) document(method string) (DIDDocument, error) {
	createdAt, err := uint64Of(method, "createdAt", t.CreatedAt)
	if err != nil {
		return DIDDocument{}, err
	}
	updatedAt, err := uint64Of(method, "updatedAt", t.UpdatedAt)
	if err != nil {
		return DIDDocument{}, err
	}
	version, err := uint64Of(method, "version", t.Version)
	if err != nil {
		return DIDDocument{}, err
	}
	return DIDDocument{
		IdentityInfo: IdentityInfo{
			Name:      t.Name,
			BirthDate: t.BirthDate,
			Address:   t.HomeAddress,
			Phone:     t.Phone,
		},
		IsActive:  t.IsActive,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Version:   version,
	}, nil
}

func tupleOf(doc DIDDocument) didDocumentTuple {
	return didDocumentTuple{
		Name:        doc.Name,
		BirthDate:   doc.BirthDate,
		HomeAddress: doc.Address,
		Phone:       doc.Phone,
		IsActive:    doc.IsActive,
		CreatedAt:   new(big.Int).SetUint64(doc.CreatedAt),
		UpdatedAt:   new(big.Int).SetUint64(doc.UpdatedAt),
		Version:     new(big.Int).SetUint64(doc.Version),
	}
}

func convert[T any](method string, in interface{}) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = decodeErr(method, fmt.Sprintf("unexpected result shape: %v", r), nil)
		}
	}()
	converted, ok := abi.ConvertType(in, new(T)).(*T)
	if !ok || converted == nil {
		return out, decodeErr(method, fmt.Sprintf("unexpected result type %T", in), nil)
	}
	return *converted, nil
}
