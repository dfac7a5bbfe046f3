package codec

import "math/big"

// EncodeCreate builds createDID(name, birthDate, homeAddress, phone) call data.
func EncodeCreate(info IdentityInfo) ([]byte, error) {
	return pack(MethodCreateDID, info.Name, info.BirthDate, info.Address, info.Phone)
}

// EncodeUpdate builds updateDID call data.
func EncodeUpdate(info IdentityInfo) ([]byte, error) {
	return pack(MethodUpdateDID, info.Name, info.BirthDate, info.Address, info.Phone)
}

// EncodeDeactivate builds deactivateLatestDID call data.
func EncodeDeactivate() ([]byte, error) {
	return pack(MethodDeactivateLatestDID)
}

func encodeForUser(method, user string) ([]byte, error) {
	addr, err := parseAddress(method, user)
	if err != nil {
		return nil, err
	}
	return pack(method, addr)
}

func EncodeHasActiveDID(user string) ([]byte, error) {
	return encodeForUser(MethodHasActiveDIDPublic, user)
}

func EncodeHasRegistered(user string) ([]byte, error) {
	return encodeForUser(MethodHasRegistered, user)
}

func EncodeVersionCount(user string) ([]byte, error) {
	return encodeForUser(MethodGetDIDVersionCount, user)
}

func EncodeLatestDID(user string) ([]byte, error) {
	return encodeForUser(MethodGetLatestDID, user)
}

func EncodeAllDIDHistory(user string) ([]byte, error) {
	return encodeForUser(MethodGetAllDIDHistory, user)
}

// EncodeMyLatestDID reads the caller's latest document; the call must carry a
// from address.
func EncodeMyLatestDID() ([]byte, error) {
	return pack(MethodGetMyLatestDID)
}

// EncodeMyAllDIDHistory reads the caller's history; the call must carry a from
// address.
func EncodeMyAllDIDHistory() ([]byte, error) {
	return pack(MethodGetMyAllDIDHistory)
}

func EncodeDIDByVersion(user string, version uint64) ([]byte, error) {
	addr, err := parseAddress(MethodGetDIDByVersion, user)
	if err != nil {
		return nil, err
	}
	return pack(MethodGetDIDByVersion, addr, new(big.Int).SetUint64(version))
}

func EncodeHistoryEntry(user string, index uint64) ([]byte, error) {
	addr, err := parseAddress(MethodDIDDocumentHistory, user)
	if err != nil {
		return nil, err
	}
	return pack(MethodDIDDocumentHistory, addr, new(big.Int).SetUint64(index))
}

func EncodeRegisteredAddress(index uint64) ([]byte, error) {
	return pack(MethodRegisteredAddresses, new(big.Int).SetUint64(index))
}

func EncodeTotalActiveDIDs() ([]byte, error) {
	return pack(MethodGetTotalActiveDIDs)
}

func EncodeTotalRegisteredAddresses() ([]byte, error) {
	return pack(MethodGetTotalRegisteredAddresses)
}

// EncodeAllRegisteredAddresses is owner-only on chain.
func EncodeAllRegisteredAddresses() ([]byte, error) {
	return pack(MethodGetAllRegisteredAddresses)
}

// EncodeAllActiveDIDAddresses is owner-only on chain.
func EncodeAllActiveDIDAddresses() ([]byte, error) {
	return pack(MethodGetAllActiveDIDAddresses)
}

func EncodeOwner() ([]byte, error) {
	return pack(MethodOwner)
}
