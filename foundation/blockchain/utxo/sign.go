package utxo

import (
	"errors"
	"fmt"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// ErrInsufficientFunds is returned when the unspent outputs of an address
// can't cover a requested transfer.
var ErrInsufficientFunds = errors.New("insufficient funds")

// SignTxIn signs the input at the specified position with the hex encoded
// private key. The key must own the output the input references.
func SignTxIn(tx Transaction, inputIndex int, privateKey string, set Set) (string, error) {
	if inputIndex < 0 || inputIndex >= len(tx.TxIns) {
		return "", fmt.Errorf("%w: input index %d out of range", ErrStructure, inputIndex)
	}
	txIn := tx.TxIns[inputIndex]

	referenced, exists := set.Find(txIn.TxOutID, txIn.TxOutIndex)
	if !exists {
		return "", fmt.Errorf("%w: txOut[%s:%d]", ErrUnknownOutput, txIn.TxOutID, txIn.TxOutIndex)
	}

	address, err := signature.PublicKey(privateKey)
	if err != nil {
		return "", err
	}

	if address != referenced.Address {
		return "", fmt.Errorf("%w: txOut[%s:%d]", ErrOwnershipMismatch, txIn.TxOutID, txIn.TxOutIndex)
	}

	return signature.Sign(tx.ID, privateKey)
}

// FindTxOutsForAmount selects unspent outputs in order until their sum covers
// the amount. The amount left over is returned so change can be sent back.
func FindTxOutsForAmount(amount uint64, unspent []UnspentTxOut) ([]UnspentTxOut, uint64, error) {
	var total uint64
	var selected []UnspentTxOut

	for _, u := range unspent {
		selected = append(selected, u)
		total += u.Amount
		if total >= amount {
			return selected, total - amount, nil
		}
	}

	return nil, 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, amount)
}

// NewTransfer builds and signs a transaction sending the amount from the
// owner of the private key to the receiver. Any change goes back to the
// sender as a second output.
func NewTransfer(privateKey string, receiver string, amount uint64, set Set) (Transaction, error) {
	if !signature.IsValidPublicKey(receiver) {
		return Transaction{}, fmt.Errorf("%w: invalid receiver address %q", ErrStructure, receiver)
	}

	sender, err := signature.PublicKey(privateKey)
	if err != nil {
		return Transaction{}, err
	}

	selected, leftover, err := FindTxOutsForAmount(amount, set.ForAddress(sender))
	if err != nil {
		return Transaction{}, err
	}

	txIns := make([]TxIn, len(selected))
	for i, u := range selected {
		txIns[i] = TxIn{
			TxOutID:    u.TxOutID,
			TxOutIndex: u.TxOutIndex,
		}
	}

	txOuts := []TxOut{{Address: receiver, Amount: amount}}
	if leftover > 0 {
		txOuts = append(txOuts, TxOut{Address: sender, Amount: leftover})
	}

	tx := NewTransaction(txIns, txOuts)

	for i := range tx.TxIns {
		sig, err := SignTxIn(tx, i, privateKey, set)
		if err != nil {
			return Transaction{}, err
		}
		tx.TxIns[i].Signature = sig
	}

	return tx, nil
}
