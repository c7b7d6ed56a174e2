package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/peer"
)

// ConnectToPeer dials the peer's websocket endpoint and starts serving the
// connection in the background.
func (s *State) ConnectToPeer(ctx context.Context, host string) error {
	url := host
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing peer %s: %w", host, err)
	}

	go s.ServePeer(host, conn)

	return nil
}

// ServePeer registers the connection as a peer, asks it for its latest
// block and then handles its messages until the connection fails. The peer
// is removed from the set when ServePeer returns. A message larger than
// the configured limit ends the connection.
func (s *State) ServePeer(host string, conn peer.Conn) {
	if rl, ok := conn.(peer.ReadLimiter); ok {
		rl.SetReadLimit(s.readLimit)
	}

	p := peer.New(host, conn, s.peerQueue, s.evHandler)

	s.peers.Add(p)
	s.evHandler("state: ServePeer: %s: connected: peers[%d]", host, s.peers.Len())

	defer func() {
		s.peers.Remove(p)
		p.Close()
		s.evHandler("state: ServePeer: %s: disconnected: peers[%d]", host, s.peers.Len())
	}()

	s.sendMessage(p, peer.NewQueryLatest())

	for {
		data, err := p.Read()
		if err != nil {
			s.evHandler("state: ServePeer: %s: read: %s", host, err)
			return
		}

		s.handleMessage(p, data)
	}
}

// handleMessage dispatches a single message received from a peer.
func (s *State) handleMessage(p *peer.Peer, data []byte) {
	msg, err := peer.Decode(data)
	if err != nil {
		s.evHandler("state: handleMessage: %s: WARNING: dropped: %s", p.Host, err)
		return
	}

	s.evHandler("state: handleMessage: %s: received: %s", p.Host, msg.Type)

	switch msg.Type {
	case peer.QueryLatest:
		s.sendBlocks(p, []database.Block{s.db.LatestBlock()})

	case peer.QueryAll:
		s.sendBlocks(p, s.db.Blocks())

	case peer.ResponseBlockchain:
		blocks, err := msg.Blocks()
		if err != nil {
			s.evHandler("state: handleMessage: %s: WARNING: dropped: %s", p.Host, err)
			return
		}

		if err := s.ProcessPeerChain(p, blocks); err != nil {
			s.evHandler("state: handleMessage: %s: WARNING: rejected: %s", p.Host, err)
		}
	}
}

// ProcessPeerChain reconciles the local chain with blocks received from a
// peer. Only the last block is looked at to decide what to do: nothing when
// it is not ahead, append when it builds on the local head, ask for the
// whole chain when a single block does not connect, otherwise try to
// replace the local chain.
func (s *State) ProcessPeerChain(p *peer.Peer, blocks []database.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	received := blocks[len(blocks)-1]
	if err := received.ValidateStructure(); err != nil {
		return err
	}

	s.mu.Lock()

	latest := s.db.LatestBlock()

	switch {
	case received.Index <= latest.Index:
		s.mu.Unlock()
		s.evHandler("state: ProcessPeerChain: %s: received blk[%d] not ahead of blk[%d]: no action", p.Host, received.Index, latest.Index)
		return nil

	case received.PreviousHash == latest.Hash:
		err := s.db.Append(received)
		s.mu.Unlock()

		if err != nil {
			return err
		}

		s.evHandler("state: ProcessPeerChain: %s: appended blk[%d]", p.Host, received.Index)
		s.blockAccepted(received)
		return nil

	case len(blocks) == 1:
		s.mu.Unlock()
		s.evHandler("state: ProcessPeerChain: %s: blk[%d] does not connect: query all", p.Host, received.Index)
		s.sendMessage(p, peer.NewQueryAll())
		return nil

	default:
		err := s.db.Replace(blocks)
		s.mu.Unlock()

		if err != nil {
			return err
		}

		s.evHandler("state: ProcessPeerChain: %s: replaced chain: blocks[%d]", p.Host, len(blocks))
		s.blockAccepted(received)
		return nil
	}
}

// BroadcastLatest sends the latest block to every connected peer.
func (s *State) BroadcastLatest() {
	msg, err := peer.NewResponseBlockchain([]database.Block{s.db.LatestBlock()})
	if err != nil {
		s.evHandler("state: BroadcastLatest: ERROR: %s", err)
		return
	}

	s.broadcast(msg)
}

// QueryPeersLatest asks every connected peer for its latest block.
func (s *State) QueryPeersLatest() {
	s.broadcast(peer.NewQueryLatest())
}

// =============================================================================

// blockAccepted announces a block that came from a peer and makes any
// mining in progress start over on top of it.
func (s *State) blockAccepted(block database.Block) {
	if s.Worker != nil {
		s.Worker.SignalCancelMining()
	}

	s.blockEvent(block)
	s.BroadcastLatest()
}

func (s *State) broadcast(msg peer.Message) {
	data, err := msg.Encode()
	if err != nil {
		s.evHandler("state: broadcast: ERROR: %s", err)
		return
	}

	s.evHandler("state: broadcast: %s: peers[%d]", msg.Type, s.peers.Len())
	s.peers.Broadcast(data)
}

func (s *State) sendBlocks(p *peer.Peer, blocks []database.Block) {
	msg, err := peer.NewResponseBlockchain(blocks)
	if err != nil {
		s.evHandler("state: sendBlocks: %s: ERROR: %s", p.Host, err)
		return
	}

	s.sendMessage(p, msg)
}

func (s *State) sendMessage(p *peer.Peer, msg peer.Message) {
	data, err := msg.Encode()
	if err != nil {
		s.evHandler("state: sendMessage: %s: ERROR: %s", p.Host, err)
		return
	}

	p.Send(data)
}
