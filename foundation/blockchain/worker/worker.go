// Package worker implements mining and peer synchronization for the
// blockchain.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
)

// ErrShutdown is returned for mining requests made while the worker is
// shutting down.
var ErrShutdown = errors.New("worker is shutting down")

// defaultSyncInterval represents the interval of asking connected peers for
// their latest block.
const defaultSyncInterval = time.Minute

// dialTimeout bounds the time spent connecting to a known peer.
const dialTimeout = 5 * time.Second

// =============================================================================

// Config represents the configuration required to run the worker.
type Config struct {
	KnownPeers   []string
	SyncInterval time.Duration
	EvHandler    state.EventHandler
}

// mineRequest carries a caller's request to mine a block.
type mineRequest struct {
	ctx    context.Context
	trans  []utxo.Transaction
	result chan mineResult
}

type mineResult struct {
	block database.Block
	err   error
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	shutOnce     sync.Once
	mineRequests chan mineRequest
	cancelMining chan bool
	knownPeers   []string
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	w := Worker{
		state:        st,
		ticker:       time.NewTicker(interval),
		shut:         make(chan struct{}),
		mineRequests: make(chan mineRequest),
		cancelMining: make(chan bool, 1),
		knownPeers:   cfg.KnownPeers,
		evHandler:    ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Connect to the known peers before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work. Only the first call
// does anything.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: signal cancel mining")
		w.SignalCancelMining()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// Mine hands a mining request to the mining G and waits for the result.
// Only one block is mined at a time; concurrent callers wait their turn.
func (w *Worker) Mine(ctx context.Context, trans []utxo.Transaction) (database.Block, error) {
	req := mineRequest{
		ctx:    ctx,
		trans:  trans,
		result: make(chan mineResult, 1),
	}

	select {
	case w.mineRequests <- req:
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	case <-w.shut:
		return database.Block{}, ErrShutdown
	}

	res := <-req.result
	return res.block, res.err
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to abandon the current attempt and start over on the new head.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
