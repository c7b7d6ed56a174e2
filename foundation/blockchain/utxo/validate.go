package utxo

import (
	"fmt"
	"math/bits"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// ValidateTxIn checks the input references an unspent output and carries a
// valid signature from that output's owner over the transaction id.
func ValidateTxIn(txIn TxIn, tx Transaction, set Set) error {
	referenced, exists := set.Find(txIn.TxOutID, txIn.TxOutIndex)
	if !exists {
		return fmt.Errorf("%w: tx[%s]: txOut[%s:%d]", ErrUnknownOutput, tx.ID, txIn.TxOutID, txIn.TxOutIndex)
	}

	if !signature.Verify(tx.ID, referenced.Address, txIn.Signature) {
		return fmt.Errorf("%w: tx[%s]: txOut[%s:%d]", ErrSignatureInvalid, tx.ID, txIn.TxOutID, txIn.TxOutIndex)
	}

	return nil
}

// ValidateTransaction checks a regular transfer against the set of unspent
// outputs. The amounts consumed must equal the amounts created.
func ValidateTransaction(tx Transaction, set Set) error {
	if id := TransactionID(tx); id != tx.ID {
		return fmt.Errorf("%w: got %s, exp %s", ErrTransactionID, tx.ID, id)
	}

	for _, txIn := range tx.TxIns {
		if err := ValidateTxIn(txIn, tx, set); err != nil {
			return err
		}
	}

	var totalIn uint64
	for _, txIn := range tx.TxIns {
		referenced, _ := set.Find(txIn.TxOutID, txIn.TxOutIndex)

		var carry uint64
		totalIn, carry = bits.Add64(totalIn, referenced.Amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: tx[%s]: input total overflows", ErrBalanceMismatch, tx.ID)
		}
	}

	var totalOut uint64
	for _, txOut := range tx.TxOuts {
		var carry uint64
		totalOut, carry = bits.Add64(totalOut, txOut.Amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: tx[%s]: output total overflows", ErrBalanceMismatch, tx.ID)
		}
	}

	if totalIn != totalOut {
		return fmt.Errorf("%w: tx[%s]: in %d, out %d", ErrBalanceMismatch, tx.ID, totalIn, totalOut)
	}

	return nil
}

// ValidateCoinbase checks the reward transaction for the block at the
// specified height.
func ValidateCoinbase(tx Transaction, blockIndex uint64) error {
	if blockIndex > MaxCoinbaseHeight {
		return fmt.Errorf("%w: height %d exceeds %d", ErrCoinbaseInvalid, blockIndex, MaxCoinbaseHeight)
	}

	if id := TransactionID(tx); id != tx.ID {
		return fmt.Errorf("%w: id got %s, exp %s", ErrCoinbaseInvalid, tx.ID, id)
	}

	if len(tx.TxIns) != 1 {
		return fmt.Errorf("%w: must have exactly one input, got %d", ErrCoinbaseInvalid, len(tx.TxIns))
	}

	if uint64(tx.TxIns[0].TxOutIndex) != blockIndex {
		return fmt.Errorf("%w: input index %d must match block height %d", ErrCoinbaseInvalid, tx.TxIns[0].TxOutIndex, blockIndex)
	}

	if len(tx.TxOuts) != 1 {
		return fmt.Errorf("%w: must have exactly one output, got %d", ErrCoinbaseInvalid, len(tx.TxOuts))
	}

	if tx.TxOuts[0].Amount != CoinbaseAmount {
		return fmt.Errorf("%w: amount got %d, exp %d", ErrCoinbaseInvalid, tx.TxOuts[0].Amount, CoinbaseAmount)
	}

	return nil
}

// ValidateBlockTransactions checks the full list of transactions carried by
// the block at the specified height. The first transaction must be the
// coinbase and no output may be consumed twice anywhere in the block.
func ValidateBlockTransactions(txs []Transaction, set Set, blockIndex uint64) error {
	if len(txs) == 0 {
		return fmt.Errorf("%w: block has no coinbase", ErrCoinbaseInvalid)
	}

	if err := ValidateCoinbase(txs[0], blockIndex); err != nil {
		return err
	}

	seen := make(map[OutPoint]struct{})
	for _, tx := range txs {
		for _, txIn := range tx.TxIns {
			op := OutPoint{TxOutID: txIn.TxOutID, TxOutIndex: txIn.TxOutIndex}
			if _, exists := seen[op]; exists {
				return fmt.Errorf("%w: txOut[%s:%d]", ErrDuplicateInput, txIn.TxOutID, txIn.TxOutIndex)
			}
			seen[op] = struct{}{}
		}
	}

	for _, tx := range txs[1:] {
		if err := ValidateTransaction(tx, set); err != nil {
			return err
		}
	}

	return nil
}

// ProcessTransactions validates the block's transactions against the set and
// returns the set that results from applying them. On any failure the prior
// set is returned untouched along with the cause.
func ProcessTransactions(txs []Transaction, set Set, blockIndex uint64) (Set, error) {
	for _, tx := range txs {
		if err := ValidateStructure(tx); err != nil {
			return set, err
		}
	}

	if err := ValidateBlockTransactions(txs, set, blockIndex); err != nil {
		return set, err
	}

	return ApplyTransactions(txs, set), nil
}
