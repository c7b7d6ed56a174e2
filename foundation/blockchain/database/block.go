package database

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// Block represents a group of transactions linked to its parent by hash.
type Block struct {
	Index        uint64             `json:"index"`
	Hash         string             `json:"hash"`
	PreviousHash string             `json:"previousHash"`
	Timestamp    int64              `json:"timestamp"`
	Transactions []utxo.Transaction `json:"transactions"`
	Difficulty   uint32             `json:"difficulty"`
	Nonce        uint64             `json:"nonce"`
}

// genesisBlock is the fixed first block every node starts from. Its hash is
// a constant and is never recomputed.
var genesisBlock = Block{
	Index:        0,
	Hash:         "816534932c2b7154836da6afc367695e6337db8a921823784c14378abed4f7d7",
	PreviousHash: "0",
	Timestamp:    1588310945,
	Transactions: []utxo.Transaction{},
	Difficulty:   0,
	Nonce:        0,
}

// Genesis returns a copy of the genesis block.
func Genesis() Block {
	b := genesisBlock
	b.Transactions = []utxo.Transaction{}
	return b
}

// IsGenesis reports whether the block is structurally equal to the
// genesis block.
func (b Block) IsGenesis() bool {
	return b.Index == genesisBlock.Index &&
		b.Hash == genesisBlock.Hash &&
		b.PreviousHash == genesisBlock.PreviousHash &&
		b.Timestamp == genesisBlock.Timestamp &&
		len(b.Transactions) == 0 &&
		b.Difficulty == genesisBlock.Difficulty &&
		b.Nonce == genesisBlock.Nonce
}

// CalculateHash returns the hash for the block's content.
func (b Block) CalculateHash() string {
	return CalculateHash(b.Index, b.PreviousHash, b.Timestamp, b.Transactions, b.Difficulty, b.Nonce)
}

// CalculateHash hashes the concatenation of the canonical string form of
// every block field. Transactions are in their JSON array form where an
// empty list is always written as [].
func CalculateHash(index uint64, previousHash string, timestamp int64, txs []utxo.Transaction, difficulty uint32, nonce uint64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(index, 10))
	b.WriteString(previousHash)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(transactionsString(txs))
	b.WriteString(strconv.FormatUint(uint64(difficulty), 10))
	b.WriteString(strconv.FormatUint(nonce, 10))

	return signature.Hash(b.String())
}

// transactionsString returns the canonical form of the transactions.
func transactionsString(txs []utxo.Transaction) string {
	if len(txs) == 0 {
		return "[]"
	}

	data, err := json.Marshal(txs)
	if err != nil {
		return "[]"
	}

	return string(data)
}
