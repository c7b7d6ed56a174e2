// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ledgerlab/minichain/app/services/node/handlers/v1/p2p"
	"github.com/ledgerlab/minichain/app/services/node/handlers/v1/public"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/events"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/ledgerlab/minichain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/latest", pbl.LatestBlock)
	app.Handle(http.MethodGet, version, "/blocks/:index", pbl.BlockByIndex)
	app.Handle(http.MethodPost, version, "/blocks/mine", pbl.MineBlock)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodPost, version, "/peers", pbl.AddPeer)
	app.Handle(http.MethodGet, version, "/utxos", pbl.UnspentOutputs)
	app.Handle(http.MethodGet, version, "/utxos/:address", pbl.UnspentOutputs)
	app.Handle(http.MethodGet, version, "/balance/:address", pbl.Balance)
}

// P2PRoutes binds the route peers use to connect to this node.
func P2PRoutes(app *web.App, cfg Config) {
	p := p2p.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, "", "/", p.Connect)
}
