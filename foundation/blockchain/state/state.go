// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/peer"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and peer synchronization.
type Worker interface {
	Shutdown()
	Mine(ctx context.Context, trans []utxo.Transaction) (database.Block, error)
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Beneficiary    string
	PeerQueue      int
	MaxMessageSize int64
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	beneficiary string
	peerQueue   int
	readLimit   int64
	evHandler   EventHandler

	db    *database.Database
	peers *peer.PeerSet

	Worker Worker
}

// New constructs a new blockchain for data management. When a beneficiary
// address is configured every mined block pays it the coinbase reward.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Beneficiary != "" && !signature.IsValidPublicKey(cfg.Beneficiary) {
		return nil, fmt.Errorf("invalid beneficiary address %q", cfg.Beneficiary)
	}

	readLimit := cfg.MaxMessageSize
	if readLimit <= 0 {
		readLimit = peer.DefaultReadLimit
	}

	state := State{
		beneficiary: cfg.Beneficiary,
		peerQueue:   cfg.PeerQueue,
		readLimit:   readLimit,
		evHandler:   ev,
		db:          database.New(ev),
		peers:       peer.NewPeerSet(),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Drop every peer connection.
	s.peers.CloseAll()

	return nil
}
