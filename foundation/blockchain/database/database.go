// Package database maintains the in memory blockchain: the ordered list of
// blocks starting at genesis and the set of unspent transaction outputs that
// results from folding every block's transactions.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// ErrNotFound is returned when a block is requested that is not part of
// the chain.
var ErrNotFound = errors.New("block not found")

// Database manages the chain of blocks and the unspent outputs it implies.
type Database struct {
	mu        sync.RWMutex
	blocks    []Block
	utxos     utxo.Set
	evHandler func(v string, args ...any)
}

// New constructs a database holding only the genesis block.
func New(evHandler func(v string, args ...any)) *Database {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &Database{
		blocks:    []Block{Genesis()},
		utxos:     utxo.NewSet(),
		evHandler: evHandler,
	}
}

// LatestBlock returns the block at the head of the chain. The chain always
// holds at least the genesis block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks in the chain.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cpy := make([]Block, len(db.blocks))
	copy(cpy, db.blocks)

	return cpy
}

// GetBlock returns the block at the specified index.
func (db *Database) GetBlock(index uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if index >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: blk[%d]", ErrNotFound, index)
	}

	return db.blocks[index], nil
}

// Difficulty returns the difficulty the next block should be mined at.
func (db *Database) Difficulty() uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return Difficulty(db.blocks)
}

// UnspentOutputs returns a copy of the current set of unspent outputs.
func (db *Database) UnspentOutputs() utxo.Set {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.utxos.Copy()
}

// =============================================================================

// Append validates the block against the head of the chain and, if it carries
// transactions, folds them into the unspent outputs. The chain and the set
// are only updated when every check passes.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	latest := db.blocks[len(db.blocks)-1]
	if err := block.ValidateBlock(latest, db.evHandler); err != nil {
		return err
	}

	utxos := db.utxos
	if len(block.Transactions) > 0 {
		db.evHandler("database: Append: blk[%d]: process transactions: txs[%d]", block.Index, len(block.Transactions))

		var err error
		utxos, err = utxo.ProcessTransactions(block.Transactions, db.utxos, block.Index)
		if err != nil {
			return err
		}
	}

	db.blocks = append(db.blocks, block)
	db.utxos = utxos

	db.evHandler("database: Append: blk[%d]: appended: hash[%s]", block.Index, block.Hash)

	return nil
}

// Replace swaps the local chain for the specified one when it is valid and
// strictly longer. The unspent outputs are rebuilt from genesis. Nothing
// changes when the replacement is rejected.
func (db *Database) Replace(blocks []Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(blocks) <= len(db.blocks) {
		return fmt.Errorf("%w: got %d blocks, have %d", ErrChainTooShort, len(blocks), len(db.blocks))
	}

	if err := ValidateChain(blocks, db.evHandler); err != nil {
		return err
	}

	utxos, err := BuildUnspentOutputs(blocks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChainInvalid, err)
	}

	cpy := make([]Block, len(blocks))
	copy(cpy, blocks)

	db.blocks = cpy
	db.utxos = utxos

	db.evHandler("database: Replace: chain replaced: blocks[%d]: head[%s]", len(cpy), cpy[len(cpy)-1].Hash)

	return nil
}

// BuildUnspentOutputs folds every block's transactions in order to produce
// the set of unspent outputs for the chain. Blocks without transactions
// leave the set as is.
func BuildUnspentOutputs(blocks []Block) (utxo.Set, error) {
	utxos := utxo.NewSet()

	for _, block := range blocks {
		if len(block.Transactions) == 0 {
			continue
		}

		var err error
		utxos, err = utxo.ProcessTransactions(block.Transactions, utxos, block.Index)
		if err != nil {
			return nil, fmt.Errorf("blk[%d]: %w", block.Index, err)
		}
	}

	return utxos, nil
}
