package database

import (
	"context"
	"time"

	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// Difficulty is retargeted every DifficultyAdjustmentInterval blocks so that
// a block is found roughly every BlockGenerationInterval seconds.
const (
	BlockGenerationInterval      = 10
	DifficultyAdjustmentInterval = 10
)

// Difficulty returns the difficulty the next block on top of the chain
// should be mined at.
func Difficulty(blocks []Block) uint32 {
	latest := blocks[len(blocks)-1]

	if latest.Index%DifficultyAdjustmentInterval == 0 && latest.Index != 0 {
		return adjustedDifficulty(latest, blocks)
	}

	return latest.Difficulty
}

// adjustedDifficulty compares the time it took to mine the last interval of
// blocks with the expected time and moves the difficulty by one step.
func adjustedDifficulty(latest Block, blocks []Block) uint32 {
	prevAdjustment := blocks[latest.Index-DifficultyAdjustmentInterval]

	const expected = BlockGenerationInterval * DifficultyAdjustmentInterval
	taken := latest.Timestamp - prevAdjustment.Timestamp

	switch {
	case taken < expected/2:
		return prevAdjustment.Difficulty + 1

	case taken > expected*2:
		if prevAdjustment.Difficulty == 0 {
			return 0
		}
		return prevAdjustment.Difficulty - 1

	default:
		return prevAdjustment.Difficulty
	}
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock    Block
	Transactions []utxo.Transaction
	Difficulty   uint32
	Timestamp    int64
	EvHandler    func(v string, args ...any)
}

// POW constructs a new Block on top of the previous block and performs the
// work to find a nonce that solves the hash puzzle. The search only stops
// when a solution is found or the context is cancelled.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	timestamp := args.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	txs := args.Transactions
	if txs == nil {
		txs = []utxo.Transaction{}
	}

	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		PreviousHash: args.PrevBlock.Hash,
		Timestamp:    timestamp,
		Transactions: txs,
		Difficulty:   args.Difficulty,
		Nonce:        0,
	}

	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Index, b.Difficulty)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Index)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.CalculateHash()
		if !HashMatchesDifficulty(hash, b.Difficulty) {
			b.Nonce++
			continue
		}

		b.Hash = hash
		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PreviousHash, hash, attempts)

		return nil
	}
}
