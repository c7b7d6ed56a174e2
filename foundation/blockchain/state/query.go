package state

import (
	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// RetrieveBlocks returns a copy of the whole chain.
func (s *State) RetrieveBlocks() []database.Block {
	return s.db.Blocks()
}

// RetrieveLatestBlock returns the block at the head of the chain.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlock returns the block at the specified index.
func (s *State) RetrieveBlock(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// RetrieveDifficulty returns the difficulty the next block will be mined at.
func (s *State) RetrieveDifficulty() uint32 {
	return s.db.Difficulty()
}

// RetrieveBeneficiary returns the address mined blocks pay their reward to.
func (s *State) RetrieveBeneficiary() string {
	return s.beneficiary
}

// RetrieveUnspentOutputs returns every unspent output.
func (s *State) RetrieveUnspentOutputs() []utxo.UnspentTxOut {
	return s.db.UnspentOutputs().Values()
}

// RetrieveSupply returns the number of coins held in unspent outputs.
func (s *State) RetrieveSupply() uint64 {
	return s.db.UnspentOutputs().Total()
}

// QueryUnspentOutputs returns the unspent outputs owned by the address.
func (s *State) QueryUnspentOutputs(address string) []utxo.UnspentTxOut {
	return s.db.UnspentOutputs().ForAddress(address)
}

// QueryBalance returns the sum of the unspent outputs owned by the address.
func (s *State) QueryBalance(address string) uint64 {
	return s.db.UnspentOutputs().Balance(address)
}

// RetrievePeers returns the host of every connected peer.
func (s *State) RetrievePeers() []string {
	return s.peers.Hosts()
}
