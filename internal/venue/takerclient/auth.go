package takerclient

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// signPayload produces a hex-encoded ECDSA signature over a transaction
// payload hash. Unlike the maker venue, there is no L1-to-L2 key derivation
// here: the account's private key signs every transaction directly, and the
// account/API key indices (rather than a derived passphrase) identify the
// sub-account and signing slot to the venue.
func signPayload(key *ecdsa.PrivateKey, hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}
