// Package makerclient implements the VenueClient for the maker venue: an
// EdgeX-shaped perpetuals exchange authenticated via an EIP-712 L1 wallet
// signature that derives an L2 HMAC API key, trading with post-only resting
// limit orders.
package makerclient

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"arbitrage-bot/internal/config"
)

// credentials holds the L2 API key triplet derived from the L1 wallet
// signature (or configured directly, skipping derivation).
type credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// auth handles the two authentication layers the maker venue requires:
//
//   - L1 (EIP-712): signs a typed-data "ClobAuth" message once at startup
//     to prove wallet ownership and derive L2 credentials.
//   - L2 (HMAC-SHA256): signs "timestamp+method+path[+body]" with the
//     derived secret for every trading request.
type auth struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	creds      credentials
}

func newAuth(cfg config.MakerConfig) (*auth, error) {
	keyHex := cfg.PrivateKey
	if keyHex == "" {
		keyHex = cfg.StarkPrivateKey
	}
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse maker private key: %w", err)
	}

	return &auth{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(int64(cfg.ChainID)),
	}, nil
}

func (a *auth) hasCredentials() bool {
	return a.creds.APIKey != "" && a.creds.Secret != "" && a.creds.Passphrase != ""
}

func (a *auth) setCredentials(c credentials) {
	a.creds = c
}

// l1Headers signs the ClobAuth typed-data message for the derive-api-key
// endpoint.
func (a *auth) l1Headers() (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.signClobAuth(timestamp)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}

	return map[string]string{
		"EDGEX_ADDRESS":   a.address.Hex(),
		"EDGEX_SIGNATURE": sig,
		"EDGEX_TIMESTAMP": timestamp,
	}, nil
}

// l2Headers signs an HMAC header set for an authenticated trading request.
func (a *auth) l2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	return map[string]string{
		"EDGEX_ADDRESS":    a.address.Hex(),
		"EDGEX_SIGNATURE":  sig,
		"EDGEX_TIMESTAMP":  timestamp,
		"EDGEX_API_KEY":    a.creds.APIKey,
		"EDGEX_PASSPHRASE": a.creds.Passphrase,
	}, nil
}

func (a *auth) signClobAuth(timestamp string) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   a.address.Hex(),
			"timestamp": timestamp,
			"message":   "This message attests that I control the given wallet",
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + common.Bytes2Hex(sig), nil
}

func (a *auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
