package utxo

import (
	"sort"
)

// OutPoint identifies an output by the transaction that created it and its
// position in that transaction.
type OutPoint struct {
	TxOutID    string
	TxOutIndex uint32
}

// UnspentTxOut is an output that has been created and not yet consumed.
type UnspentTxOut struct {
	TxOutID    string `json:"txOutId"`
	TxOutIndex uint32 `json:"txOutIndex"`
	Address    string `json:"address"`
	Amount     uint64 `json:"amount"`
}

// Set is the collection of unspent outputs keyed by their out point. A Set
// is treated as immutable once published; ApplyTransactions returns a new one.
type Set map[OutPoint]TxOut

// NewSet constructs an empty set.
func NewSet() Set {
	return make(Set)
}

// NewSetFromList constructs a set from a list of unspent outputs.
func NewSetFromList(unspent []UnspentTxOut) Set {
	set := make(Set, len(unspent))
	for _, u := range unspent {
		set[OutPoint{TxOutID: u.TxOutID, TxOutIndex: u.TxOutIndex}] = TxOut{
			Address: u.Address,
			Amount:  u.Amount,
		}
	}

	return set
}

// Find looks up the unspent output for the specified reference.
func (s Set) Find(txOutID string, txOutIndex uint32) (UnspentTxOut, bool) {
	txOut, exists := s[OutPoint{TxOutID: txOutID, TxOutIndex: txOutIndex}]
	if !exists {
		return UnspentTxOut{}, false
	}

	u := UnspentTxOut{
		TxOutID:    txOutID,
		TxOutIndex: txOutIndex,
		Address:    txOut.Address,
		Amount:     txOut.Amount,
	}

	return u, true
}

// Copy returns a copy of the set.
func (s Set) Copy() Set {
	cpy := make(Set, len(s))
	for op, txOut := range s {
		cpy[op] = txOut
	}

	return cpy
}

// Values returns the unspent outputs ordered by transaction id and index.
func (s Set) Values() []UnspentTxOut {
	unspent := make([]UnspentTxOut, 0, len(s))
	for op, txOut := range s {
		unspent = append(unspent, UnspentTxOut{
			TxOutID:    op.TxOutID,
			TxOutIndex: op.TxOutIndex,
			Address:    txOut.Address,
			Amount:     txOut.Amount,
		})
	}

	sort.Slice(unspent, func(i, j int) bool {
		if unspent[i].TxOutID != unspent[j].TxOutID {
			return unspent[i].TxOutID < unspent[j].TxOutID
		}
		return unspent[i].TxOutIndex < unspent[j].TxOutIndex
	})

	return unspent
}

// ForAddress returns the unspent outputs owned by the address.
func (s Set) ForAddress(address string) []UnspentTxOut {
	var unspent []UnspentTxOut
	for _, u := range s.Values() {
		if u.Address == address {
			unspent = append(unspent, u)
		}
	}

	return unspent
}

// Balance sums the unspent outputs owned by the address.
func (s Set) Balance(address string) uint64 {
	var balance uint64
	for _, txOut := range s {
		if txOut.Address == address {
			balance += txOut.Amount
		}
	}

	return balance
}

// Total sums every unspent output in the set.
func (s Set) Total() uint64 {
	var total uint64
	for _, txOut := range s {
		total += txOut.Amount
	}

	return total
}

// =============================================================================

// ApplyTransactions produces the set that results from consuming every input
// and creating every output of the transactions. The prior set is not
// modified. The transactions are expected to have been validated.
func ApplyTransactions(txs []Transaction, s Set) Set {
	next := s.Copy()

	for _, tx := range txs {
		for _, txIn := range tx.TxIns {
			delete(next, OutPoint{TxOutID: txIn.TxOutID, TxOutIndex: txIn.TxOutIndex})
		}
	}

	for _, tx := range txs {
		for i, txOut := range tx.TxOuts {
			next[OutPoint{TxOutID: tx.ID, TxOutIndex: uint32(i)}] = txOut
		}
	}

	return next
}
