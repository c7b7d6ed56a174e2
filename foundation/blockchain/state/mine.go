package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// ErrStaleBlock is returned when a mined block is no longer on top of the
// chain because another block was accepted while mining.
var ErrStaleBlock = errors.New("mined block is no longer on top of the chain")

// ErrNoWorker is returned when mining is requested before a worker has
// been registered.
var ErrNoWorker = errors.New("no worker registered")

// =============================================================================

// Mine asks the worker to mine a block carrying the transactions. The call
// blocks until the block is accepted or mining fails.
func (s *State) Mine(ctx context.Context, trans []utxo.Transaction) (database.Block, error) {
	if s.Worker == nil {
		return database.Block{}, ErrNoWorker
	}

	return s.Worker.Mine(ctx, trans)
}

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The chain is only locked to sample
// the head and to submit the result.
func (s *State) MineNewBlock(ctx context.Context, trans []utxo.Transaction) (database.Block, error) {
	s.mu.Lock()
	prevBlock := s.db.LatestBlock()
	difficulty := s.db.Difficulty()
	utxos := s.db.UnspentOutputs()
	s.mu.Unlock()

	index := prevBlock.Index + 1

	txs := trans
	if s.beneficiary != "" {
		coinbase, err := utxo.NewCoinbase(s.beneficiary, index)
		if err != nil {
			return database.Block{}, err
		}
		txs = append([]utxo.Transaction{coinbase}, trans...)
	}

	s.evHandler("state: MineNewBlock: MINING: blk[%d]: check transactions: txs[%d]", index, len(txs))

	// Don't spend the work on a block that can't be accepted.
	if len(txs) > 0 {
		if _, err := utxo.ProcessTransactions(txs, utxos, index); err != nil {
			return database.Block{}, err
		}
	}

	s.evHandler("state: MineNewBlock: MINING: blk[%d]: perform POW: difficulty[%d]", index, difficulty)

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:    prevBlock,
		Transactions: txs,
		Difficulty:   difficulty,
		EvHandler:    s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: blk[%d]: validate and update database", index)

	if err := s.acceptMinedBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// acceptMinedBlock commits a locally mined block and announces it. A block
// mined on top of a head that has since moved is reported as stale.
func (s *State) acceptMinedBlock(block database.Block) error {
	s.mu.Lock()
	{
		latest := s.db.LatestBlock()
		if block.Index != latest.Index+1 || block.PreviousHash != latest.Hash {
			s.mu.Unlock()
			return fmt.Errorf("%w: blk[%d] on %s, head is blk[%d] %s", ErrStaleBlock, block.Index, block.PreviousHash, latest.Index, latest.Hash)
		}

		if err := s.db.Append(block); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.blockEvent(block)
	s.BroadcastLatest()

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
