package signature_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey  = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pkHexKey2 = "aed31b6b5a4ba3e9d5e7c1e3d0a2dd4c1e3e2ad9c3a1b0e45a4c3b4f2e1d0c9b"
	digest    = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
)

// =============================================================================

func Test_Hash(t *testing.T) {
	type table struct {
		name    string
		content string
		hash    string
	}

	tt := []table{
		{name: "empty", content: "", hash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{name: "abc", content: "abc", hash: digest},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			got := signature.Hash(tst.content)
			if got != tst.hash {
				t.Logf("Test %s:\tgot: %s", tst.name, got)
				t.Logf("Test %s:\texp: %s", tst.name, tst.hash)
				t.Fatalf("\t%s\tTest %s:\tShould get back the right hash.", failed, tst.name)
			}

			if again := signature.Hash(tst.content); again != got {
				t.Fatalf("\t%s\tTest %s:\tShould get the same hash twice.", failed, tst.name)
			}
			t.Logf("\t%s\tTest %s:\tShould get back the right hash.", success, tst.name)
		}

		t.Run(tst.name, f)
	}
}

func Test_HexToBinary(t *testing.T) {
	type table struct {
		name   string
		hex    string
		binary string
		err    bool
	}

	tt := []table{
		{name: "zero", hex: "0", binary: "0000"},
		{name: "mixed", hex: "0f", binary: "00001111"},
		{name: "all", hex: "0123456789abcdef", binary: "0000000100100011010001010110011110001001101010111100110111101111"},
		{name: "uppercase", hex: "0F", err: true},
		{name: "non-hex", hex: "0g", err: true},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			got, err := signature.HexToBinary(tst.hex)
			if tst.err {
				if !errors.Is(err, signature.ErrInvalidHex) {
					t.Fatalf("\t%s\tTest %s:\tShould fail the conversion: %v", failed, tst.name, err)
				}
				t.Logf("\t%s\tTest %s:\tShould fail the conversion.", success, tst.name)
				return
			}

			if err != nil {
				t.Fatalf("\t%s\tTest %s:\tShould be able to convert: %v", failed, tst.name, err)
			}

			if got != tst.binary {
				t.Logf("Test %s:\tgot: %s", tst.name, got)
				t.Logf("Test %s:\texp: %s", tst.name, tst.binary)
				t.Fatalf("\t%s\tTest %s:\tShould get back the right binary.", failed, tst.name)
			}
			t.Logf("\t%s\tTest %s:\tShould get back the right binary.", success, tst.name)
		}

		t.Run(tst.name, f)
	}
}

func Test_ToHexString(t *testing.T) {
	got := signature.ToHexString([]byte{0x00, 0x0a, 0xff})
	if got != "000aff" {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", "000aff")
		t.Fatalf("\t%s\tShould encode two lowercase digits per byte.", failed)
	}
	t.Logf("\t%s\tShould encode two lowercase digits per byte.", success)
}

func Test_Signing(t *testing.T) {
	publicKey, err := signature.PublicKey(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the public key: %v", failed, err)
	}

	if !signature.IsValidPublicKey(publicKey) || !strings.HasPrefix(publicKey, "04") {
		t.Logf("got: %s", publicKey)
		t.Fatalf("\t%s\tShould derive an uncompressed public key.", failed)
	}
	t.Logf("\t%s\tShould derive an uncompressed public key.", success)

	sig, err := signature.Sign(digest, pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the digest: %v", failed, err)
	}

	if !signature.Verify(digest, publicKey, sig) {
		t.Fatalf("\t%s\tShould be able to verify the signature.", failed)
	}
	t.Logf("\t%s\tShould be able to verify the signature.", success)

	otherKey, err := signature.PublicKey(pkHexKey2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the second public key: %v", failed, err)
	}

	if signature.Verify(digest, otherKey, sig) {
		t.Fatalf("\t%s\tShould reject the signature for another key.", failed)
	}
	t.Logf("\t%s\tShould reject the signature for another key.", success)

	tampered := signature.Hash("abd")
	if signature.Verify(tampered, publicKey, sig) {
		t.Fatalf("\t%s\tShould reject the signature for another digest.", failed)
	}
	t.Logf("\t%s\tShould reject the signature for another digest.", success)

	if signature.Verify(digest, publicKey, "3045") {
		t.Fatalf("\t%s\tShould reject a malformed signature.", failed)
	}
	t.Logf("\t%s\tShould reject a malformed signature.", success)
}

func Test_IsValidPublicKey(t *testing.T) {
	type table struct {
		name  string
		key   string
		valid bool
	}

	good, err := signature.PublicKey(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the public key: %v", failed, err)
	}

	tt := []table{
		{name: "valid", key: good, valid: true},
		{name: "short", key: good[:128], valid: false},
		{name: "compressed-prefix", key: "02" + good[2:], valid: false},
		{name: "not-hex", key: good[:128] + "zz", valid: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if got := signature.IsValidPublicKey(tst.key); got != tst.valid {
				t.Fatalf("\t%s\tTest %s:\tShould get validity %v, got %v.", failed, tst.name, tst.valid, got)
			}
			t.Logf("\t%s\tTest %s:\tShould get validity %v.", success, tst.name, tst.valid)
		}

		t.Run(tst.name, f)
	}
}
