package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Call is registry call data decoded back into its method and arguments.
type Call struct {
	Method string
	Args   []interface{}
}

// DecodeCall resolves the 4-byte selector of data and unpacks its arguments.
func DecodeCall(data []byte) (*Call, error) {
	if len(data) < 4 {
		return nil, decodeErr("call", "data shorter than a selector", nil)
	}
	method, err := registryABI.MethodById(data[:4])
	if err != nil {
		return nil, decodeErr("call", "unknown selector", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, decodeErr(method.Name, "unpack arguments failed", err)
	}
	return &Call{Method: method.Name, Args: args}, nil
}

// Identity returns the four string arguments of createDID and updateDID.
func (c *Call) Identity() (IdentityInfo, error) {
	if len(c.Args) != 4 {
		return IdentityInfo{}, decodeErr(c.Method, "expected 4 identity arguments", nil)
	}
	var fields [4]string
	for i := range fields {
		s, ok := c.Args[i].(string)
		if !ok {
			return IdentityInfo{}, decodeErr(c.Method, fmt.Sprintf("argument %d is %T, not string", i, c.Args[i]), nil)
		}
		fields[i] = s
	}
	return IdentityInfo{Name: fields[0], BirthDate: fields[1], Address: fields[2], Phone: fields[3]}, nil
}

// AddressArg returns argument i as an address.
func (c *Call) AddressArg(i int) (common.Address, error) {
	if i >= len(c.Args) {
		return common.Address{}, decodeErr(c.Method, fmt.Sprintf("missing argument %d", i), nil)
	}
	addr, ok := c.Args[i].(common.Address)
	if !ok {
		return common.Address{}, decodeErr(c.Method, fmt.Sprintf("argument %d is %T, not address", i, c.Args[i]), nil)
	}
	return addr, nil
}

// UintArg returns argument i as a uint64.
func (c *Call) UintArg(i int) (uint64, error) {
	if i >= len(c.Args) {
		return 0, decodeErr(c.Method, fmt.Sprintf("missing argument %d", i), nil)
	}
	n, ok := c.Args[i].(*big.Int)
	if !ok {
		return 0, decodeErr(c.Method, fmt.Sprintf("argument %d is %T, not uint256", i, c.Args[i]), nil)
	}
	return uint64Of(c.Method, fmt.Sprintf("argument %d", i), n)
}

func outputs(method string) (abi.Arguments, error) {
	m, ok := registryABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown registry method %q", method)
	}
	return m.Outputs, nil
}

// PackResult ABI-encodes return values of method. Values use go-ethereum's
// native types (bool, *big.Int, common.Address, []common.Address).
func PackResult(method string, values ...interface{}) ([]byte, error) {
	out, err := outputs(method)
	if err != nil {
		return nil, err
	}
	data, err := out.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s result: %w", method, err)
	}
	return data, nil
}

// PackDocumentResult encodes a single DIDDocument tuple return.
func PackDocumentResult(method string, doc DIDDocument) ([]byte, error) {
	return PackResult(method, tupleOf(doc))
}

// PackDocumentListResult encodes a DIDDocument[] return.
func PackDocumentListResult(method string, docs []DIDDocument) ([]byte, error) {
	tuples := make([]didDocumentTuple, len(docs))
	for i, d := range docs {
		tuples[i] = tupleOf(d)
	}
	return PackResult(method, tuples)
}

// PackHistoryEntryResult encodes the flat didDocumentHistory return.
func PackHistoryEntryResult(doc DIDDocument) ([]byte, error) {
	t := tupleOf(doc)
	return PackResult(MethodDIDDocumentHistory,
		t.Name, t.BirthDate, t.HomeAddress, t.Phone, t.IsActive, t.CreatedAt, t.UpdatedAt, t.Version)
}
