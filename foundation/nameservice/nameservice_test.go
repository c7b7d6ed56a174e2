package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/nameservice"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func Test_NameService(t *testing.T) {
	t.Log("Given the need to name the addresses of known key files.")
	{
		dir := t.TempDir()

		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the private key: %v", failed, err)
		}
		if err := crypto.SaveECDSA(filepath.Join(dir, "kennedy.ecdsa"), pk); err != nil {
			t.Fatalf("\t%s\tShould be able to save the private key: %v", failed, err)
		}

		ns, err := nameservice.New(dir)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the name service: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the name service.", success)

		address, err := signature.PublicKey(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive the address: %v", failed, err)
		}

		if nameservice.Address(pk) != address {
			t.Fatalf("\t%s\tShould derive the same address as the signature package.", failed)
		}
		t.Logf("\t%s\tShould derive the same address as the signature package.", success)

		if ns.Lookup(address) != "kennedy" {
			t.Fatalf("\t%s\tShould name the address after the key file, got %q.", failed, ns.Lookup(address))
		}
		if got, exists := ns.Resolve("kennedy"); !exists || got != address {
			t.Fatalf("\t%s\tShould resolve the name back to the address.", failed)
		}
		t.Logf("\t%s\tShould map between names and addresses.", success)

		if ns.Lookup("04ff") != "04ff" {
			t.Fatalf("\t%s\tShould return an unknown address unchanged.", failed)
		}
		t.Logf("\t%s\tShould return an unknown address unchanged.", success)
	}
}
