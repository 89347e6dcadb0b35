package venue

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/arkin-run/arkin/pkg/types"
)

// Signer holds the EOA key used to authenticate with a DEX-style venue
// and to sign individual orders via EIP-712. Grounded on
// internal/exchange/auth.go's Auth, stripped of the L2 HMAC layer (which
// is CEX-specific) and generalized from Polymarket's ClobAuth typed data
// to a generic VenueOrderAuth message.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewSigner parses a hex-encoded private key (with or without 0x prefix).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    big.NewInt(int64(chainID)),
	}, nil
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address { return s.address }

// SignOrder produces an EIP-712 signature authenticating a VenueOrder
// submission to the venue, binding order id, side, price, quantity and
// a timestamp nonce.
func (s *Signer) SignOrder(order types.VenueOrder) (string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	price := "0"
	if order.Price != nil {
		price = order.Price.String()
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"VenueOrderAuth": {
				{Name: "address", Type: "address"},
				{Name: "orderId", Type: "string"},
				{Name: "side", Type: "string"},
				{Name: "price", Type: "string"},
				{Name: "quantity", Type: "string"},
				{Name: "timestamp", Type: "string"},
			},
		},
		PrimaryType: "VenueOrderAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ArkinVenueAuth",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(s.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   s.address.Hex(),
			"orderId":   order.ID.String(),
			"side":      string(order.Side),
			"price":     price,
			"quantity":  order.Quantity.String(),
			"timestamp": ts,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}
