package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
)

// Set of error variables for rejected blocks and chains.
var (
	ErrStructure     = errors.New("invalid block structure")
	ErrIndex         = errors.New("block index is not the next index")
	ErrLinkage       = errors.New("previous hash does not match the parent block")
	ErrTimestamp     = errors.New("block timestamp is out of range")
	ErrHash          = errors.New("block hash does not match its content")
	ErrDifficulty    = errors.New("block hash does not satisfy the difficulty")
	ErrChainTooShort = errors.New("chain is not longer than the local chain")
	ErrChainInvalid  = errors.New("chain is invalid")
)

// timestampTolerance is how far a block's timestamp may run behind its parent
// or ahead of the local clock.
const timestampTolerance = 60

// =============================================================================

// ValidateStructure checks every field of the block is well formed.
func (b Block) ValidateStructure() error {
	if !signature.IsHash(b.Hash) {
		return fmt.Errorf("%w: blk[%d]: hash %q", ErrStructure, b.Index, b.Hash)
	}

	if b.Index == 0 {
		if b.PreviousHash != genesisBlock.PreviousHash {
			return fmt.Errorf("%w: blk[0]: previous hash %q", ErrStructure, b.PreviousHash)
		}
	} else if !signature.IsHash(b.PreviousHash) {
		return fmt.Errorf("%w: blk[%d]: previous hash %q", ErrStructure, b.Index, b.PreviousHash)
	}

	if b.Timestamp <= 0 {
		return fmt.Errorf("%w: blk[%d]: timestamp %d", ErrStructure, b.Index, b.Timestamp)
	}

	return nil
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain on top of the previous block. The checks run in order and the
// first failure is returned.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: structure", b.Index)

	if err := b.ValidateStructure(); err != nil {
		return err
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block index is the next index", b.Index)

	if b.Index != previousBlock.Index+1 {
		return fmt.Errorf("%w: got %d, exp %d", ErrIndex, b.Index, previousBlock.Index+1)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: previous hash does match parent block", b.Index)

	if b.PreviousHash != previousBlock.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrLinkage, b.PreviousHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: timestamp is within range", b.Index)

	if !isValidTimestamp(b, previousBlock, time.Now()) {
		return fmt.Errorf("%w: parent %d, block %d", ErrTimestamp, previousBlock.Timestamp, b.Timestamp)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: hash does match content", b.Index)

	if hash := b.CalculateHash(); hash != b.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHash, b.Hash, hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: hash satisfies difficulty %d", b.Index, b.Difficulty)

	if !HashMatchesDifficulty(b.Hash, b.Difficulty) {
		return fmt.Errorf("%w: hash %s, difficulty %d", ErrDifficulty, b.Hash, b.Difficulty)
	}

	return nil
}

// ValidateChain checks a complete chain starting from the genesis block.
func ValidateChain(blocks []Block, evHandler func(v string, args ...any)) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: empty chain", ErrChainInvalid)
	}

	if !blocks[0].IsGenesis() {
		return fmt.Errorf("%w: first block is not the genesis block", ErrChainInvalid)
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1], evHandler); err != nil {
			return fmt.Errorf("%w: %w", ErrChainInvalid, err)
		}
	}

	return nil
}

// HashMatchesDifficulty checks the binary form of the hash starts with at
// least difficulty zero bits.
func HashMatchesDifficulty(hash string, difficulty uint32) bool {
	binary, err := signature.HexToBinary(hash)
	if err != nil {
		return false
	}

	if uint64(difficulty) > uint64(len(binary)) {
		return false
	}

	return strings.HasPrefix(binary, strings.Repeat("0", int(difficulty)))
}

// isValidTimestamp allows a block to be up to a minute older than its parent
// and up to a minute ahead of the local clock.
func isValidTimestamp(b Block, previousBlock Block, now time.Time) bool {
	return previousBlock.Timestamp-timestampTolerance < b.Timestamp &&
		b.Timestamp-timestampTolerance < now.Unix()
}
