// Package p2p maintains the handler peers connect to.
package p2p

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of peer endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
}

// Connect upgrades the request to a websocket and serves it as a peer
// until the connection drops.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	// The upgrade wrote the response.
	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	h.Log.Infow("peer connected", "traceid", v.TraceID, "remoteaddr", r.RemoteAddr)
	h.State.ServePeer(r.RemoteAddr, c)
	h.Log.Infow("peer disconnected", "traceid", v.TraceID, "remoteaddr", r.RemoteAddr)

	return nil
}
