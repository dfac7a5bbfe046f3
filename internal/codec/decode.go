package codec

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var zeroWord = make([]byte, 32)

// DecodeBool decodes a single bool word. The all-zero word is false and any
// other 32-byte word is true.
func DecodeBool(data []byte) (bool, error) {
	if len(data) != 32 {
		return false, decodeErr("bool", fmt.Sprintf("expected 32 bytes, got %d", len(data)), nil)
	}
	return !bytes.Equal(data, zeroWord), nil
}

// DecodeUint decodes a uint256 result of method.
func DecodeUint(method string, data []byte) (*big.Int, error) {
	values, err := unpack(method, data, 1)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, decodeErr(method, fmt.Sprintf("expected uint256, got %T", values[0]), nil)
	}
	return v, nil
}

// DecodeUint64 decodes a uint256 result that must fit in 64 bits.
func DecodeUint64(method string, data []byte) (uint64, error) {
	v, err := DecodeUint(method, data)
	if err != nil {
		return 0, err
	}
	return uint64Of(method, "value", v)
}

// DecodeAddress decodes a single address result as a checksummed string.
func DecodeAddress(method string, data []byte) (string, error) {
	values, err := unpack(method, data, 1)
	if err != nil {
		return "", err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return "", decodeErr(method, fmt.Sprintf("expected address, got %T", values[0]), nil)
	}
	return addr.Hex(), nil
}

// DecodeAddressList decodes an address[] result. "0x" and the empty-array
// pattern decode to an empty list.
func DecodeAddressList(method string, data []byte) ([]string, error) {
	if IsEmptyArrayResult(data) {
		return []string{}, nil
	}
	values, err := unpack(method, data, 1)
	if err != nil {
		return nil, err
	}
	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, decodeErr(method, fmt.Sprintf("expected address[], got %T", values[0]), nil)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out, nil
}

// DecodeDIDDocument decodes a single DIDDocument tuple returned by method
// (getLatestDID, getMyLatestDID or getDIDByVersion). A nil document with a nil
// error means the registry holds no record: the call returned nothing or the
// stored name is empty.
func DecodeDIDDocument(method string, data []byte) (*DIDDocument, error) {
	if len(data) == 0 {
		return nil, nil
	}
	values, err := unpack(method, data, 1)
	if err != nil {
		return nil, err
	}
	tuple, err := convert[didDocumentTuple](method, values[0])
	if err != nil {
		return nil, err
	}
	if tuple.Name == "" {
		return nil, nil
	}
	doc, err := tuple.document(method)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeDIDDocumentList decodes a DIDDocument[] returned by getAllDIDHistory
// or getMyAllDIDHistory. Empty results decode to an empty list.
func DecodeDIDDocumentList(method string, data []byte) ([]DIDDocument, error) {
	if IsEmptyArrayResult(data) {
		return []DIDDocument{}, nil
	}
	values, err := unpack(method, data, 1)
	if err != nil {
		return nil, err
	}
	tuples, err := convert[[]didDocumentTuple](method, values[0])
	if err != nil {
		return nil, err
	}
	out := make([]DIDDocument, 0, len(tuples))
	for _, t := range tuples {
		doc, err := t.document(method)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// DecodeHistoryEntry decodes the eight flat values returned by
// didDocumentHistory(address, index).
func DecodeHistoryEntry(data []byte) (*DIDDocument, error) {
	const method = MethodDIDDocumentHistory
	values, err := unpack(method, data, 8)
	if err != nil {
		return nil, err
	}

	var tuple didDocumentTuple
	strs := []*string{&tuple.Name, &tuple.BirthDate, &tuple.HomeAddress, &tuple.Phone}
	for i, dst := range strs {
		s, ok := values[i].(string)
		if !ok {
			return nil, decodeErr(method, fmt.Sprintf("value %d: expected string, got %T", i, values[i]), nil)
		}
		*dst = s
	}
	active, ok := values[4].(bool)
	if !ok {
		return nil, decodeErr(method, fmt.Sprintf("value 4: expected bool, got %T", values[4]), nil)
	}
	tuple.IsActive = active
	nums := []**big.Int{&tuple.CreatedAt, &tuple.UpdatedAt, &tuple.Version}
	for i, dst := range nums {
		n, ok := values[5+i].(*big.Int)
		if !ok {
			return nil, decodeErr(method, fmt.Sprintf("value %d: expected uint256, got %T", 5+i, values[5+i]), nil)
		}
		*dst = n
	}

	doc, err := tuple.document(method)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
