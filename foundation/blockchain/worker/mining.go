package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
)

// errRestart is returned by an attempt that was cancelled because the head
// of the chain moved.
var errRestart = errors.New("head of the chain moved")

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case req := <-w.mineRequests:
			w.runMiningOperation(req)
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines a block for the request, starting over every
// time another block is accepted first. The result is always delivered.
func (w *Worker) runMiningOperation(req mineRequest) {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	for attempt := 1; ; attempt++ {
		block, err := w.mineAttempt(req)

		switch {
		case err == nil:
			req.result <- mineResult{block: block}
			return

		case errors.Is(err, errRestart), errors.Is(err, state.ErrStaleBlock):
			if w.isShutdown() {
				req.result <- mineResult{err: ErrShutdown}
				return
			}
			w.evHandler("worker: runMiningOperation: MINING: RESTART: attempt[%d]: %s", attempt, err)

		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			req.result <- mineResult{err: err}
			return
		}
	}
}

// mineAttempt runs a single cancellable mining attempt against the current
// head of the chain.
func (w *Worker) mineAttempt(req mineRequest) (database.Block, error) {

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: mineAttempt: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(req.ctx)
	defer cancel()

	// Can't return from this function until this G is complete.
	var restart bool
	var wg sync.WaitGroup
	wg.Add(1)

	// This G exists to cancel the mining operation.
	go func() {
		defer wg.Done()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: mineAttempt: MINING: CANCEL: requested")
			restart = true
			cancel()
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	t := time.Now()
	block, err := w.state.MineNewBlock(ctx, req.trans)
	w.evHandler("worker: mineAttempt: MINING: mining duration[%v]", time.Since(t))

	cancel()
	wg.Wait()

	if err != nil {
		switch {
		case w.isShutdown():
			return database.Block{}, ErrShutdown
		case restart && req.ctx.Err() == nil:
			return database.Block{}, errRestart
		}
		return database.Block{}, err
	}

	return block, nil
}
