package codec_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "0x1111111111111111111111111111111111111111"

func sampleDocument(version uint64, active bool) codec.DIDDocument {
	return codec.DIDDocument{
		IdentityInfo: codec.IdentityInfo{
			Name:      "Kim Kaia",
			BirthDate: "1990-01-01",
			Address:   "Seoul, Gangnam-gu",
			Phone:     "010-1234-5678",
		},
		IsActive:  active,
		CreatedAt: 1_700_000_000,
		UpdatedAt: 1_700_000_500,
		Version:   version,
	}
}

func TestEncodeCreate_RoundTrip(t *testing.T) {
	info := sampleDocument(1, true).IdentityInfo

	data, err := codec.EncodeCreate(info)
	require.NoError(t, err)
	assert.Equal(t, codec.ABI().Methods[codec.MethodCreateDID].ID, data[:4])

	call, err := codec.DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, codec.MethodCreateDID, call.Method)

	decoded, err := call.Identity()
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestEncodeForUser_InvalidAddress(t *testing.T) {
	_, err := codec.EncodeLatestDID("not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}

func TestEncodeDIDByVersion(t *testing.T) {
	data, err := codec.EncodeDIDByVersion(user, 3)
	require.NoError(t, err)

	call, err := codec.DecodeCall(data)
	require.NoError(t, err)
	addr, err := call.AddressArg(0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(user), addr)
	version, err := call.UintArg(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
}

func TestDecodeDIDDocument_RoundTrip(t *testing.T) {
	for _, method := range []string{codec.MethodGetLatestDID, codec.MethodGetMyLatestDID, codec.MethodGetDIDByVersion} {
		t.Run(method, func(t *testing.T) {
			doc := sampleDocument(2, true)
			data, err := codec.PackDocumentResult(method, doc)
			require.NoError(t, err)

			decoded, err := codec.DecodeDIDDocument(method, data)
			require.NoError(t, err)
			require.NotNil(t, decoded)
			assert.Equal(t, doc, *decoded)
		})
	}
}

func TestDecodeDIDDocument_EmptyNameIsAbsent(t *testing.T) {
	data, err := codec.PackDocumentResult(codec.MethodGetLatestDID, codec.DIDDocument{})
	require.NoError(t, err)

	doc, err := codec.DecodeDIDDocument(codec.MethodGetLatestDID, data)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = codec.DecodeDIDDocument(codec.MethodGetLatestDID, nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDecodeDIDDocument_Malformed(t *testing.T) {
	_, err := codec.DecodeDIDDocument(codec.MethodGetLatestDID, []byte{0x01, 0x02, 0x03})
	require.Error(t, err)

	var decodeErr *codec.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, codec.MethodGetLatestDID, decodeErr.Method)
}

func TestDecodeDIDDocumentList(t *testing.T) {
	emptyPattern := hexutil.MustDecode("0x" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000000")

	tests := []struct {
		name    string
		data    []byte
		want    []codec.DIDDocument
		wantErr bool
	}{
		{name: "0x is empty", data: nil, want: []codec.DIDDocument{}},
		{name: "empty array pattern", data: emptyPattern, want: []codec.DIDDocument{}},
		{name: "truncated", data: emptyPattern[:40], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.DecodeDIDDocumentList(codec.MethodGetAllDIDHistory, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("round trip", func(t *testing.T) {
		docs := []codec.DIDDocument{sampleDocument(1, false), sampleDocument(2, true)}
		data, err := codec.PackDocumentListResult(codec.MethodGetMyAllDIDHistory, docs)
		require.NoError(t, err)

		got, err := codec.DecodeDIDDocumentList(codec.MethodGetMyAllDIDHistory, data)
		require.NoError(t, err)
		assert.Equal(t, docs, got)
	})
}

func TestDecodeHistoryEntry_RoundTrip(t *testing.T) {
	doc := sampleDocument(4, false)
	data, err := codec.PackHistoryEntryResult(doc)
	require.NoError(t, err)

	got, err := codec.DecodeHistoryEntry(data)
	require.NoError(t, err)
	assert.Equal(t, doc, *got)
}

func TestDecodeBool(t *testing.T) {
	trueWord := common.LeftPadBytes([]byte{1}, 32)

	tests := []struct {
		name    string
		data    []byte
		want    bool
		wantErr bool
	}{
		{name: "zero word is false", data: make([]byte, 32), want: false},
		{name: "one is true", data: trueWord, want: true},
		{name: "empty is malformed", data: nil, wantErr: true},
		{name: "short word is malformed", data: []byte{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.DecodeBool(tt.data)
			if tt.wantErr {
				var decodeErr *codec.DecodeError
				assert.True(t, errors.As(err, &decodeErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAddressAndCounts(t *testing.T) {
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data, err := codec.PackResult(codec.MethodOwner, owner)
	require.NoError(t, err)
	got, err := codec.DecodeAddress(codec.MethodOwner, data)
	require.NoError(t, err)
	assert.Equal(t, owner.Hex(), got)

	data, err = codec.PackResult(codec.MethodGetAllRegisteredAddresses, []common.Address{owner, common.HexToAddress(user)})
	require.NoError(t, err)
	list, err := codec.DecodeAddressList(codec.MethodGetAllRegisteredAddresses, data)
	require.NoError(t, err)
	assert.Equal(t, []string{owner.Hex(), common.HexToAddress(user).Hex()}, list)

	data, err = codec.PackResult(codec.MethodGetTotalActiveDIDs, big.NewInt(42))
	require.NoError(t, err)
	count, err := codec.DecodeUint64(codec.MethodGetTotalActiveDIDs, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), count)

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	data, err = codec.PackResult(codec.MethodGetDIDVersionCount, huge)
	require.NoError(t, err)
	_, err = codec.DecodeUint64(codec.MethodGetDIDVersionCount, data)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "overflows"))
}

func TestDecodeCall_UnknownSelector(t *testing.T) {
	_, err := codec.DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)

	_, err = codec.DecodeCall([]byte{0x01})
	assert.Error(t, err)
}
