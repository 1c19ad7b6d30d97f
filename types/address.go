package types

import (
	"bytes"

	"github.com/tendermint/tendermint/crypto"
)

type Address = crypto.Address

func GetAddress(key crypto.PubKey) Address {
	return key.Address()
}

func AddressEqual(a, b Address) bool {
	if a == nil || b == nil {
		return false
	}
	return bytes.Equal(a, b)
}
