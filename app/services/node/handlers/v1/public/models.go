package public

import (
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

type txIn struct {
	TxOutID    string `json:"txOutId" validate:"omitempty,len=64,hexadecimal"`
	TxOutIndex uint32 `json:"txOutIndex"`
	Signature  string `json:"signature" validate:"omitempty,hexadecimal"`
}

type txOut struct {
	Address string `json:"address" validate:"required,address"`
	Amount  uint64 `json:"amount"`
}

type tx struct {
	ID     string  `json:"id" validate:"required,len=64,hexadecimal"`
	TxIns  []txIn  `json:"txIns" validate:"required,dive"`
	TxOuts []txOut `json:"txOuts" validate:"required,dive"`
}

// toTransaction converts the request form into a blockchain transaction.
func toTransaction(t tx) utxo.Transaction {
	ins := make([]utxo.TxIn, len(t.TxIns))
	for i, in := range t.TxIns {
		ins[i] = utxo.TxIn{
			TxOutID:    in.TxOutID,
			TxOutIndex: in.TxOutIndex,
			Signature:  in.Signature,
		}
	}

	outs := make([]utxo.TxOut, len(t.TxOuts))
	for i, out := range t.TxOuts {
		outs[i] = utxo.TxOut{
			Address: out.Address,
			Amount:  out.Amount,
		}
	}

	return utxo.Transaction{
		ID:     t.ID,
		TxIns:  ins,
		TxOuts: outs,
	}
}

type mineRequest struct {
	Transactions []tx `json:"transactions" validate:"dive"`
}

type peerRequest struct {
	Peer string `json:"peer" validate:"required"`
}

type unspent struct {
	TxOutID    string `json:"txOutId"`
	TxOutIndex uint32 `json:"txOutIndex"`
	Address    string `json:"address"`
	Name       string `json:"name"`
	Amount     uint64 `json:"amount"`
}

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
}
