// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidHex is returned when a string contains a character that is not
// a lowercase hex digit.
var ErrInvalidHex = errors.New("invalid hex character")

// publicKeyLength is the length of an uncompressed secp256k1 public key in
// hex form: the 04 prefix followed by the X and Y coordinates.
const publicKeyLength = 130

// =============================================================================

// Hash returns the SHA-256 digest of the content as a lowercase hex string.
func Hash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return ToHexString(hash[:])
}

// ToHexString encodes the bytes as lowercase hex, two digits per byte.
func ToHexString(b []byte) string {
	return common.Bytes2Hex(b)
}

// binaryLookup maps a hex digit to its 4 bit binary form.
var binaryLookup = map[rune]string{
	'0': "0000", '1': "0001", '2': "0010", '3': "0011",
	'4': "0100", '5': "0101", '6': "0110", '7': "0111",
	'8': "1000", '9': "1001", 'a': "1010", 'b': "1011",
	'c': "1100", 'd': "1101", 'e': "1110", 'f': "1111",
}

// HexToBinary expands every hex digit into its 4 bit binary string. Any
// character outside of [0-9a-f] fails the conversion.
func HexToBinary(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) * 4)

	for i, r := range s {
		bits, exists := binaryLookup[r]
		if !exists {
			return "", fmt.Errorf("%w: %q at position %d", ErrInvalidHex, r, i)
		}
		b.WriteString(bits)
	}

	return b.String(), nil
}

// IsHash checks the string is a 32 byte lowercase hex value.
func IsHash(s string) bool {
	if len(s) != 64 {
		return false
	}

	_, err := HexToBinary(s)
	return err == nil
}

// =============================================================================

// IsValidPublicKey checks the value looks like an uncompressed secp256k1
// public key in hex form.
func IsValidPublicKey(publicKey string) bool {
	if len(publicKey) != publicKeyLength {
		return false
	}

	if !strings.HasPrefix(publicKey, "04") {
		return false
	}

	_, err := hex.DecodeString(publicKey)
	return err == nil
}

// PublicKey derives the uncompressed public key in hex form for the
// specified hex encoded private key.
func PublicKey(privateKey string) (string, error) {
	pk, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}

	return ToHexString(crypto.FromECDSAPub(&pk.PublicKey)), nil
}

// Sign signs the 32 byte digest provided in hex form with the hex encoded
// private key. The signature is returned DER encoded in hex form.
func Sign(digest string, privateKey string) (string, error) {
	data, err := hex.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("decoding digest: %w", err)
	}

	pk, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}

	key, _ := btcec.PrivKeyFromBytes(crypto.FromECDSA(pk))
	sig := ecdsa.Sign(key, data)

	return ToHexString(sig.Serialize()), nil
}

// Verify checks the DER encoded signature in hex form was produced over the
// digest by the owner of the public key.
func Verify(digest string, publicKey string, sig string) bool {
	data, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	pubBytes, err := hex.DecodeString(publicKey)
	if err != nil {
		return false
	}

	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	parsed, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}

	return parsed.Verify(data, pub)
}
