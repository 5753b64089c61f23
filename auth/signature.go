// Package auth verifies that HTTP requests were signed by the wallet they claim to act for.
package auth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"attendance-backend/attendance"
)

// NormalizeAddress validates a hex address and returns its checksummed form.
func NormalizeAddress(s string) (attendance.Identity, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid wallet address: %s", s)
	}
	return attendance.Identity(common.HexToAddress(s).Hex()), nil
}

// Message builds the text a client signs with personal_sign for one request. domain
// names the deployment the signature is valid for.
func Message(domain, action string, address attendance.Identity, timestamp int64, body []byte) []byte {
	return []byte(fmt.Sprintf("attendance:%s:%s:%s:%d:%s", domain, action, address, timestamp, crypto.Keccak256Hash(body).Hex()))
}

// RecoverSigner returns the address that produced sig over msg as an EIP-191 personal message.
func RecoverSigner(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignedCaller is a request that claims an address and carries a signature over its message.
type SignedCaller struct {
	claimed   attendance.Identity
	message   []byte
	signature []byte
}

// NewSignedCaller parses a hex signature for msg on behalf of claimed.
func NewSignedCaller(claimed attendance.Identity, msg []byte, signatureHex string) (*SignedCaller, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return &SignedCaller{claimed: claimed, message: msg, signature: sig}, nil
}

func (c *SignedCaller) Identity() attendance.Identity {
	return c.claimed
}

func (c *SignedCaller) Is(id attendance.Identity) bool {
	return c.claimed == id
}

// AuthorizedAs recovers the signer and compares it with id.
func (c *SignedCaller) AuthorizedAs(id attendance.Identity) bool {
	if !common.IsHexAddress(string(id)) {
		return false
	}
	signer, err := RecoverSigner(c.message, c.signature)
	if err != nil {
		return false
	}
	return signer == common.HexToAddress(string(id))
}

// Sign produces a personal_sign signature over msg with v in {27, 28}.
func Sign(msg []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
