// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ledgerlab/minichain/business/sys/validate"
	"github.com/ledgerlab/minichain/business/web/errs"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
	"github.com/ledgerlab/minichain/foundation/events"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/ledgerlab/minichain/foundation/web"
	"go.uber.org/zap"
)

// dialTimeout bounds the time spent connecting to a peer added through
// the api.
const dialTimeout = 5 * time.Second

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	h.Log.Infow("events subscribed", "traceid", v.TraceID, "subscribers", h.Evts.Len())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Blocks returns the full chain starting with the genesis block.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveBlocks(), http.StatusOK)
}

// LatestBlock returns the head of the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveLatestBlock(), http.StatusOK)
}

// BlockByIndex returns the block at the specified index.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block index: %w", err), http.StatusBadRequest)
	}

	block, err := h.State.RetrieveBlock(index)
	if err != nil {
		return errs.FromBlockchain(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// MineBlock mines a block holding the submitted transactions and returns it
// once it's part of the chain.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req mineRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	trans := make([]utxo.Transaction, len(req.Transactions))
	for i, t := range req.Transactions {
		trans[i] = toTransaction(t)
	}

	h.Log.Infow("mine block", "traceid", v.TraceID, "transactions", len(trans))

	block, err := h.State.Mine(ctx, trans)
	if err != nil {
		return errs.FromBlockchain(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Peers returns the hosts of the connected peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrievePeers(), http.StatusOK)
}

// AddPeer connects the node to a new peer.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req peerRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("add peer", "traceid", v.TraceID, "peer", req.Peer)

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := h.State.ConnectToPeer(ctx, req.Peer); err != nil {
		return errs.NewTrusted(err, http.StatusBadGateway)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "connected to " + req.Peer,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UnspentOutputs returns the unspent outputs of the chain or, when an
// address is provided, the ones owned by that address.
func (h Handlers) UnspentOutputs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var list []utxo.UnspentTxOut
	switch param := web.Param(r, "address"); param {
	case "":
		list = h.State.RetrieveUnspentOutputs()

	default:
		address, err := h.resolve(param)
		if err != nil {
			return err
		}
		list = h.State.QueryUnspentOutputs(address)
	}

	unspents := make([]unspent, len(list))
	for i, u := range list {
		unspents[i] = unspent{
			TxOutID:    u.TxOutID,
			TxOutIndex: u.TxOutIndex,
			Address:    u.Address,
			Name:       h.NS.Lookup(u.Address),
			Amount:     u.Amount,
		}
	}

	return web.Respond(ctx, w, unspents, http.StatusOK)
}

// Balance returns the sum of the unspent outputs owned by an address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address, err := h.resolve(web.Param(r, "address"))
	if err != nil {
		return err
	}

	bal := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: h.State.QueryBalance(address),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// resolve accepts either an address or a name known to the name service.
func (h Handlers) resolve(param string) (string, error) {
	if signature.IsValidPublicKey(param) {
		return param, nil
	}

	if address, exists := h.NS.Resolve(param); exists {
		return address, nil
	}

	return "", errs.NewTrusted(fmt.Errorf("invalid address or unknown name %q", param), http.StatusBadRequest)
}
