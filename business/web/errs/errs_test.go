package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ledgerlab/minichain/business/web/errs"
	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
	"github.com/ledgerlab/minichain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_FromBlockchain(t *testing.T) {
	type table struct {
		name   string
		err    error
		status int
	}

	tt := []table{
		{name: "not-found", err: fmt.Errorf("block 9: %w", database.ErrNotFound), status: http.StatusNotFound},
		{name: "double-spend", err: fmt.Errorf("tx[0]: %w", utxo.ErrUnknownOutput), status: http.StatusBadRequest},
		{name: "funds", err: utxo.ErrInsufficientFunds, status: http.StatusBadRequest},
		{name: "no-worker", err: state.ErrNoWorker, status: http.StatusServiceUnavailable},
		{name: "shutdown", err: worker.ErrShutdown, status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("disk on fire"), status: 0},
	}

	t.Log("Given the need to map blockchain errors to web errors.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s error.", testID, tst.name)
				{
					err := errs.FromBlockchain(tst.err)

					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould keep the original error in the chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould keep the original error in the chain.", success, testID)

					trs := errs.GetTrusted(err)
					switch {
					case tst.status == 0 && trs != nil:
						t.Fatalf("\t%s\tTest %d:\tShould not trust an unknown error.", failed, testID)
					case tst.status != 0 && (trs == nil || trs.Status != tst.status):
						t.Fatalf("\t%s\tTest %d:\tShould map to status %d: %v", failed, testID, tst.status, trs)
					}
					t.Logf("\t%s\tTest %d:\tShould map to the expected status.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}

	if errs.FromBlockchain(nil) != nil {
		t.Fatalf("\t%s\tShould map a nil error to nil.", failed)
	}
}
