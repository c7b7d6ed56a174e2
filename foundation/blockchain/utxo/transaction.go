// Package utxo implements the unspent transaction output ledger: transaction
// identity, coinbase issuance, signed transfers and the rules for folding a
// block's transactions into the set of spendable outputs.
package utxo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// CoinbaseAmount is the fixed reward a miner issues to itself per block.
const CoinbaseAmount uint64 = 50

// MaxCoinbaseHeight is the highest block index a coinbase input can carry.
const MaxCoinbaseHeight uint64 = math.MaxUint32

// Set of error variables for rejected transactions.
var (
	ErrStructure         = errors.New("invalid transaction structure")
	ErrTransactionID     = errors.New("transaction id does not match its content")
	ErrUnknownOutput     = errors.New("referenced output is not unspent")
	ErrOwnershipMismatch = errors.New("private key does not own the referenced output")
	ErrSignatureInvalid  = errors.New("input signature is invalid")
	ErrBalanceMismatch   = errors.New("input and output amounts do not balance")
	ErrDuplicateInput    = errors.New("output is spent more than once in the block")
	ErrCoinbaseInvalid   = errors.New("invalid coinbase transaction")
)

// =============================================================================

// TxIn references an unspent output being consumed by a transaction.
type TxIn struct {
	TxOutID    string `json:"txOutId"`
	TxOutIndex uint32 `json:"txOutIndex"`
	Signature  string `json:"signature"`
}

// TxOut assigns an amount of coins to an address. The address is the owner's
// uncompressed public key in hex form.
type TxOut struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Transaction moves coins from a set of unspent outputs to a set of new
// outputs.
type Transaction struct {
	ID     string  `json:"id"`
	TxIns  []TxIn  `json:"txIns"`
	TxOuts []TxOut `json:"txOuts"`
}

// NewTransaction constructs a transaction and stamps it with its id. The
// inputs are left unsigned.
func NewTransaction(txIns []TxIn, txOuts []TxOut) Transaction {
	tx := Transaction{
		TxIns:  txIns,
		TxOuts: txOuts,
	}
	tx.ID = TransactionID(tx)

	return tx
}

// NewCoinbase constructs the reward transaction for the block at the
// specified height. The height is carried in the single input so coinbase
// transactions for different blocks always have different ids.
func NewCoinbase(address string, blockIndex uint64) (Transaction, error) {
	if blockIndex > MaxCoinbaseHeight {
		return Transaction{}, fmt.Errorf("%w: height %d exceeds %d", ErrCoinbaseInvalid, blockIndex, MaxCoinbaseHeight)
	}

	txIn := TxIn{
		TxOutID:    "",
		TxOutIndex: uint32(blockIndex),
		Signature:  "",
	}

	txOut := TxOut{
		Address: address,
		Amount:  CoinbaseAmount,
	}

	return NewTransaction([]TxIn{txIn}, []TxOut{txOut}), nil
}

// TransactionID computes the id for the transaction from the inputs'
// references and the outputs. Signatures are not part of the id so the id
// can be signed.
func TransactionID(tx Transaction) string {
	var b strings.Builder

	for _, txIn := range tx.TxIns {
		b.WriteString(txIn.TxOutID)
		b.WriteString(strconv.FormatUint(uint64(txIn.TxOutIndex), 10))
	}

	for _, txOut := range tx.TxOuts {
		b.WriteString(txOut.Address)
		b.WriteString(strconv.FormatUint(txOut.Amount, 10))
	}

	return signature.Hash(b.String())
}

// ValidateStructure checks the transaction is well formed before any of the
// ledger rules are applied.
func ValidateStructure(tx Transaction) error {
	if !signature.IsHash(tx.ID) {
		return fmt.Errorf("%w: id %q is not a hash", ErrStructure, tx.ID)
	}

	if len(tx.TxIns) == 0 {
		return fmt.Errorf("%w: tx[%s]: no inputs", ErrStructure, tx.ID)
	}

	if len(tx.TxOuts) == 0 {
		return fmt.Errorf("%w: tx[%s]: no outputs", ErrStructure, tx.ID)
	}

	for i, txOut := range tx.TxOuts {
		if !signature.IsValidPublicKey(txOut.Address) {
			return fmt.Errorf("%w: tx[%s]: output[%d]: invalid address %q", ErrStructure, tx.ID, i, txOut.Address)
		}
	}

	return nil
}
