package worker

import (
	"context"
)

// Sync connects to every known peer. Once connected a peer is asked for its
// latest block and the chains reconcile from there.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, host := range w.knownPeers {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		err := w.state.ConnectToPeer(ctx, host)
		cancel()

		if err != nil {
			w.evHandler("worker: sync: connectToPeer: %s: ERROR: %s", host, err)
			continue
		}

		w.evHandler("worker: sync: connectToPeer: %s: connected", host)
	}
}

// peerOperations periodically asks the connected peers for their latest
// block so a missed broadcast doesn't leave the node behind.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.state.QueryPeersLatest()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}
