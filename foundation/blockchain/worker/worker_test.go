package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/peer"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
	"github.com/ledgerlab/minichain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerKey = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	otherKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// =============================================================================

// nopConn is a peer connection that never delivers anything.
type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("closed") }
func (nopConn) WriteMessage(int, []byte) error { return nil }
func (nopConn) SetWriteDeadline(t time.Time) error { return nil }
func (nopConn) Close() error { return nil }

// =============================================================================

func Test_Mine(t *testing.T) {
	t.Log("Given the need to mine blocks through the worker.")
	{
		miner, err := signature.PublicKey(minerKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive the miner address: %v", failed, err)
		}

		st, err := state.New(state.Config{Beneficiary: miner})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		worker.Run(st, worker.Config{SyncInterval: time.Hour})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for i := 1; i <= 3; i++ {
			block, err := st.Mine(ctx, nil)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, i, err)
			}
			if block.Index != uint64(i) || st.RetrieveLatestBlock().Hash != block.Hash {
				t.Fatalf("\t%s\tShould make block %d the head of the chain.", failed, i)
			}
		}
		t.Logf("\t%s\tShould be able to mine 3 blocks in a row.", success)

		if got := st.QueryBalance(miner); got != 3*utxo.CoinbaseAmount {
			t.Fatalf("\t%s\tShould pay the miner 150 coins, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould pay the miner a coinbase per block.", success)

		other, err := signature.PublicKey(otherKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive the receiver address: %v", failed, err)
		}

		tx, err := utxo.NewTransfer(minerKey, other, 70, utxo.NewSetFromList(st.QueryUnspentOutputs(miner)))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a transfer: %v", failed, err)
		}

		if _, err := st.Mine(ctx, []utxo.Transaction{tx}); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block with a transfer: %v", failed, err)
		}
		if got := st.QueryBalance(other); got != 70 {
			t.Fatalf("\t%s\tShould credit the receiver 70 coins, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould be able to mine a block with a transfer.", success)

		if _, err := st.Mine(ctx, []utxo.Transaction{tx}); !errors.Is(err, utxo.ErrUnknownOutput) {
			t.Fatalf("\t%s\tShould refuse to mine a spent transfer again: %v", failed, err)
		}
		if st.RetrieveLatestBlock().Index != 4 {
			t.Fatalf("\t%s\tShould not add a block for a refused request.", failed)
		}
		t.Logf("\t%s\tShould refuse to mine a spent transfer again.", success)

		cancelled, stop := context.WithCancel(context.Background())
		stop()
		if _, err := st.Mine(cancelled, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop for a cancelled request: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop for a cancelled request.", success)

		if got := st.RetrieveSupply(); got != 4*utxo.CoinbaseAmount {
			t.Fatalf("\t%s\tShould hold a supply of 200 coins, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould hold a supply of one coinbase per block.", success)

		st.Shutdown()
		if _, err := st.Mine(ctx, nil); !errors.Is(err, worker.ErrShutdown) {
			t.Fatalf("\t%s\tShould refuse to mine after shutdown: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse to mine after shutdown.", success)

		st.Shutdown()
		t.Logf("\t%s\tShould be able to shut down more than once.", success)
	}
}

func Test_MineEmptyBlock(t *testing.T) {
	st, err := state.New(state.Config{})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	worker.Run(st, worker.Config{SyncInterval: time.Hour})
	defer st.Shutdown()

	block, err := st.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine an empty block: %v", failed, err)
	}

	if block.Index != 1 || block.Difficulty != 0 || len(block.Transactions) != 0 {
		t.Fatalf("\t%s\tShould mine block 1 at difficulty 0 with no transactions: %+v", failed, block)
	}
	t.Logf("\t%s\tShould mine block 1 at difficulty 0 with no transactions.", success)

	if len(st.RetrieveUnspentOutputs()) != 0 {
		t.Fatalf("\t%s\tShould not create outputs for an empty block.", failed)
	}
	t.Logf("\t%s\tShould not create outputs for an empty block.", success)
}

func Test_MineRestartsOnPeerBlock(t *testing.T) {
	type table struct {
		name  string
		event string
	}

	tt := []table{
		{name: "during-pow", event: "database: PerformPOW: MINING: started"},
		{name: "after-pow", event: "state: MineNewBlock: MINING: blk[%d]: validate and update database"},
	}

	t.Log("Given the need to start mining over when a peer block wins the race.")
	{
		for _, tst := range tt {
			f := func(t *testing.T) {
				miner, err := signature.PublicKey(minerKey)
				if err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould be able to derive the miner address: %v", failed, tst.name, err)
				}

				remote, err := database.POW(context.Background(), database.POWArgs{PrevBlock: database.Genesis()})
				if err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould be able to mine the peer block: %v", failed, tst.name, err)
				}

				p := peer.New("remote", nopConn{}, 1, nil)
				defer p.Close()

				var st *state.State
				var injected atomic.Bool
				var restarted atomic.Bool
				injectErr := make(chan error, 1)

				// The peer block is delivered from inside the mining G at
				// the specified point of the first attempt.
				ev := func(v string, args ...any) {
					if strings.Contains(v, "RESTART") {
						restarted.Store(true)
					}
					if strings.HasPrefix(v, tst.event) && injected.CompareAndSwap(false, true) {
						injectErr <- st.ProcessPeerChain(p, []database.Block{remote})
					}
				}

				st, err = state.New(state.Config{Beneficiary: miner, EvHandler: ev})
				if err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould be able to construct the state: %v", failed, tst.name, err)
				}

				worker.Run(st, worker.Config{SyncInterval: time.Hour, EvHandler: ev})
				defer st.Shutdown()

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				block, err := st.Mine(ctx, nil)
				if err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould be able to mine a block: %v", failed, tst.name, err)
				}

				if !injected.Load() {
					t.Fatalf("\t%s\tTest %s:\tShould deliver the peer block while mining.", failed, tst.name)
				}
				if err := <-injectErr; err != nil {
					t.Fatalf("\t%s\tTest %s:\tShould accept the peer block: %v", failed, tst.name, err)
				}
				t.Logf("\t%s\tTest %s:\tShould accept the peer block while mining.", success, tst.name)

				if !restarted.Load() {
					t.Fatalf("\t%s\tTest %s:\tShould start the mining attempt over.", failed, tst.name)
				}
				t.Logf("\t%s\tTest %s:\tShould start the mining attempt over.", success, tst.name)

				if block.Index != 2 || block.PreviousHash != remote.Hash {
					t.Logf("Test %s:\tgot: blk[%d] on %s", tst.name, block.Index, block.PreviousHash)
					t.Logf("Test %s:\texp: blk[2] on %s", tst.name, remote.Hash)
					t.Fatalf("\t%s\tTest %s:\tShould mine on top of the peer block.", failed, tst.name)
				}
				if st.RetrieveLatestBlock().Hash != block.Hash {
					t.Fatalf("\t%s\tTest %s:\tShould make the mined block the head.", failed, tst.name)
				}
				t.Logf("\t%s\tTest %s:\tShould mine on top of the peer block.", success, tst.name)

				if got := st.QueryBalance(miner); got != utxo.CoinbaseAmount {
					t.Fatalf("\t%s\tTest %s:\tShould pay the miner for one block only, got %d.", failed, tst.name, got)
				}
				t.Logf("\t%s\tTest %s:\tShould pay the miner for one block only.", success, tst.name)
			}

			t.Run(tst.name, f)
		}
	}
}
