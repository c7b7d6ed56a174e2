// Package nameservice reads a folder of private key files and creates a name
// service lookup for the addresses they own.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	addresses map[string]string
	names     map[string]string
}

// New constructs a Name Service with the addresses of every .ecdsa key file
// found under the root folder. The file name becomes the name.
func New(root string) (*NameService, error) {
	ns := NameService{
		addresses: make(map[string]string),
		names:     make(map[string]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(path.Base(fileName), ".ecdsa")
		address := Address(privateKey)

		ns.addresses[address] = name
		ns.names[name] = address

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address.
func (ns *NameService) Lookup(address string) string {
	name, exists := ns.addresses[address]
	if !exists {
		return address
	}
	return name
}

// Resolve returns the address owned by the specified name.
func (ns *NameService) Resolve(name string) (string, bool) {
	address, exists := ns.names[name]
	return address, exists
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.addresses))
	for address, name := range ns.addresses {
		cpy[address] = name
	}
	return cpy
}

// Address returns the uncompressed public key in hex form that identifies
// the owner of the private key on the blockchain.
func Address(privateKey *ecdsa.PrivateKey) string {
	return signature.ToHexString(crypto.FromECDSAPub(&privateKey.PublicKey))
}
