package state_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/peer"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

// fakeConn is a scripted peer connection.
type fakeConn struct {
	reads     chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 10),
		writes: make(chan []byte, 10),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case c.writes <- data:
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// next waits for the next message the node writes to the connection.
func (c *fakeConn) next(t *testing.T) peer.Message {
	select {
	case data := <-c.writes:
		msg, err := peer.Decode(data)
		if err != nil {
			t.Fatalf("\t%s\tShould write a valid message: %v", failed, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("\t%s\tShould write a message to the peer.", failed)
	}
	return peer.Message{}
}

func (c *fakeConn) push(t *testing.T, msg peer.Message) {
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode a message: %v", failed, err)
	}
	c.reads <- data
}

// =============================================================================

func newState(t *testing.T) *state.State {
	s, err := state.New(state.Config{PeerQueue: 10})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	return s
}

// chain mines length-1 empty blocks on top of genesis.
func chain(t *testing.T, length int, start int64) []database.Block {
	blocks := []database.Block{database.Genesis()}
	for i := 1; i < length; i++ {
		block, err := database.POW(context.Background(), database.POWArgs{
			PrevBlock: blocks[i-1],
			Timestamp: start + int64(i),
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		blocks = append(blocks, block)
	}

	return blocks
}

func response(t *testing.T, blocks ...database.Block) peer.Message {
	msg, err := peer.NewResponseBlockchain(blocks)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a response: %v", failed, err)
	}
	return msg
}

// connect serves a fake peer and consumes the initial query.
func connect(t *testing.T, s *state.State) *fakeConn {
	conn := newFakeConn()
	go s.ServePeer("fake", conn)

	if msg := conn.next(t); msg.Type != peer.QueryLatest {
		t.Fatalf("\t%s\tShould ask a new peer for its latest block, got %s.", failed, msg.Type)
	}

	return conn
}

// roundTrip pushes a query and waits for the reply, which proves every earlier
// message from the peer has been handled.
func roundTrip(t *testing.T, conn *fakeConn) []database.Block {
	conn.push(t, peer.NewQueryLatest())

	msg := conn.next(t)
	if msg.Type != peer.ResponseBlockchain {
		t.Fatalf("\t%s\tShould reply to a query with blocks, got %s.", failed, msg.Type)
	}

	blocks, err := msg.Blocks()
	if err != nil {
		t.Fatalf("\t%s\tShould reply with valid blocks: %v", failed, err)
	}
	return blocks
}

func Test_Queries(t *testing.T) {
	t.Log("Given the need to answer peers asking for blocks.")
	{
		s := newState(t)
		defer s.Shutdown()

		conn := connect(t, s)

		latest := roundTrip(t, conn)
		if len(latest) != 1 || !latest[0].IsGenesis() {
			t.Fatalf("\t%s\tShould reply with the latest block only: %+v", failed, latest)
		}
		t.Logf("\t%s\tShould reply to QueryLatest with the latest block.", success)

		conn.push(t, peer.NewQueryAll())
		blocks, err := conn.next(t).Blocks()
		if err != nil || len(blocks) != 1 {
			t.Fatalf("\t%s\tShould reply to QueryAll with the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould reply to QueryAll with the chain.", success)

		conn.reads <- []byte("not json")
		conn.reads <- []byte(`{"type":9,"data":null}`)
		if blocks := roundTrip(t, conn); len(blocks) != 1 {
			t.Fatalf("\t%s\tShould keep serving after unparseable messages.", failed)
		}
		t.Logf("\t%s\tShould drop unparseable messages without a reply.", success)

		if hosts := s.RetrievePeers(); len(hosts) != 1 || hosts[0] != "fake" {
			t.Fatalf("\t%s\tShould list the connected peer: %v", failed, hosts)
		}
		t.Logf("\t%s\tShould list the connected peer.", success)

		close(conn.reads)
		deadline := time.Now().Add(2 * time.Second)
		for len(s.RetrievePeers()) != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould remove the peer once the connection closes.", failed)
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Logf("\t%s\tShould remove the peer once the connection closes.", success)
	}
}

func Test_Reconcile(t *testing.T) {
	now := time.Now().Unix()

	t.Log("Given the need to reconcile with blocks received from peers.")
	{
		t.Log("\tWhen a peer sends a block that extends the local head.")
		{
			s := newState(t)
			defer s.Shutdown()

			conn := connect(t, s)
			blocks := chain(t, 2, now)

			conn.push(t, response(t, blocks[1]))

			msg := conn.next(t)
			got, err := msg.Blocks()
			if err != nil || len(got) != 1 || got[0].Hash != blocks[1].Hash {
				t.Fatalf("\t%s\tShould broadcast the new head: %v", failed, err)
			}
			if s.RetrieveLatestBlock().Hash != blocks[1].Hash {
				t.Fatalf("\t%s\tShould append the block.", failed)
			}
			t.Logf("\t%s\tShould append the block and broadcast the new head.", success)
		}

		t.Log("\tWhen a peer sends a block at the same height.")
		{
			s := newState(t)
			defer s.Shutdown()

			local := chain(t, 2, now)
			if err := s.ProcessPeerChain(peer.New("local", newFakeConn(), 1, nil), local); err != nil {
				t.Fatalf("\t%s\tShould be able to seed the local chain: %v", failed, err)
			}

			conn := connect(t, s)
			fork := chain(t, 2, now-30)

			conn.push(t, response(t, fork[1]))
			latest := roundTrip(t, conn)
			if latest[0].Hash != local[1].Hash {
				t.Fatalf("\t%s\tShould keep the local head on an equal height fork.", failed)
			}
			t.Logf("\t%s\tShould take no action on an equal height fork.", success)
		}

		t.Log("\tWhen a peer sends a single block that does not connect.")
		{
			s := newState(t)
			defer s.Shutdown()

			conn := connect(t, s)
			remote := chain(t, 4, now)

			conn.push(t, response(t, remote[3]))
			if msg := conn.next(t); msg.Type != peer.QueryAll {
				t.Fatalf("\t%s\tShould ask the peer for its whole chain, got %s.", failed, msg.Type)
			}
			t.Logf("\t%s\tShould ask the peer for its whole chain.", success)

			conn.push(t, response(t, remote...))
			got, err := conn.next(t).Blocks()
			if err != nil || got[0].Hash != remote[3].Hash {
				t.Fatalf("\t%s\tShould broadcast the new head after replacing: %v", failed, err)
			}
			if len(s.RetrieveBlocks()) != 4 {
				t.Fatalf("\t%s\tShould replace the local chain.", failed)
			}
			t.Logf("\t%s\tShould replace the local chain with the longer one.", success)
		}
	}
}

func Test_ProcessPeerChain(t *testing.T) {
	now := time.Now().Unix()

	s := newState(t)
	defer s.Shutdown()

	p := peer.New("direct", newFakeConn(), 10, nil)
	defer p.Close()

	short := chain(t, 5, now-200)
	if err := s.ProcessPeerChain(p, short); err != nil {
		t.Fatalf("\t%s\tShould take a 5 block chain: %v", failed, err)
	}

	type table struct {
		name   string
		blocks func(t *testing.T) []database.Block
		err    error
		length int
	}

	tt := []table{
		{
			name:   "empty",
			blocks: func(t *testing.T) []database.Block { return nil },
			length: 5,
		},
		{
			name: "bad-structure",
			blocks: func(t *testing.T) []database.Block {
				b := chain(t, 7, now-100)
				b[6].Hash = "nope"
				return b
			},
			err:    database.ErrStructure,
			length: 5,
		},
		{
			name: "invalid-longer",
			blocks: func(t *testing.T) []database.Block {
				b := chain(t, 7, now-100)
				b[2].Timestamp++
				return b
			},
			err:    database.ErrChainInvalid,
			length: 5,
		},
		{
			name:   "shorter",
			blocks: func(t *testing.T) []database.Block { return chain(t, 4, now-100) },
			length: 5,
		},
		{
			name:   "longer",
			blocks: func(t *testing.T) []database.Block { return chain(t, 7, now-100) },
			length: 7,
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			err := s.ProcessPeerChain(p, tst.blocks(t))
			if tst.err == nil && err != nil {
				t.Fatalf("\t%s\tTest %s:\tShould not fail: %v", failed, tst.name, err)
			}
			if tst.err != nil && !errors.Is(err, tst.err) {
				t.Logf("Test %s:\tgot: %v", tst.name, err)
				t.Logf("Test %s:\texp: %v", tst.name, tst.err)
				t.Fatalf("\t%s\tTest %s:\tShould reject with the right error.", failed, tst.name)
			}

			if got := len(s.RetrieveBlocks()); got != tst.length {
				t.Logf("Test %s:\tgot: %d", tst.name, got)
				t.Logf("Test %s:\texp: %d", tst.name, tst.length)
				t.Fatalf("\t%s\tTest %s:\tShould hold the right chain.", failed, tst.name)
			}
			t.Logf("\t%s\tTest %s:\tShould hold a %d block chain.", success, tst.name, tst.length)
		}

		t.Run(tst.name, f)
	}
}

func Test_WebsocketSync(t *testing.T) {
	t.Log("Given the need to synchronize two nodes over websockets.")
	{
		a := newState(t)
		b := newState(t)

		blocks := chain(t, 4, time.Now().Unix()-10)
		if err := a.ProcessPeerChain(peer.New("seed", newFakeConn(), 1, nil), blocks); err != nil {
			t.Fatalf("\t%s\tShould be able to seed node a: %v", failed, err)
		}

		var upgrader websocket.Upgrader
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			b.ServePeer(r.RemoteAddr, conn)
		}))

		defer func() {
			a.Shutdown()
			b.Shutdown()
			srv.Close()
		}()

		host := strings.TrimPrefix(srv.URL, "http://")
		if err := a.ConnectToPeer(context.Background(), host); err != nil {
			t.Fatalf("\t%s\tShould be able to connect to node b: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to connect to node b.", success)

		deadline := time.Now().Add(5 * time.Second)
		for b.RetrieveLatestBlock().Hash != blocks[3].Hash {
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould sync node b to node a's chain.", failed)
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Logf("\t%s\tShould sync node b to node a's chain.", success)
	}
}

func Test_MineNewBlockStale(t *testing.T) {
	t.Log("Given the need to refuse a mined block when a peer block was accepted first.")
	{
		remote := chain(t, 2, time.Now().Unix()-10)[1]

		p := peer.New("remote", newFakeConn(), 1, nil)
		defer p.Close()

		var s *state.State
		var injected bool
		injectErr := make(chan error, 1)

		// MineNewBlock runs on this G so the handler needs no locking.
		ev := func(v string, args ...any) {
			if strings.HasPrefix(v, "state: MineNewBlock: MINING: blk[%d]: validate and update database") && !injected {
				injected = true
				injectErr <- s.ProcessPeerChain(p, []database.Block{remote})
			}
		}

		s, err := state.New(state.Config{EvHandler: ev})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}
		defer s.Shutdown()

		_, err = s.MineNewBlock(context.Background(), nil)
		if !injected {
			t.Fatalf("\t%s\tShould deliver the peer block after the work is done.", failed)
		}
		if perr := <-injectErr; perr != nil {
			t.Fatalf("\t%s\tShould accept the peer block: %v", failed, perr)
		}

		if !errors.Is(err, state.ErrStaleBlock) {
			t.Logf("got: %v", err)
			t.Logf("exp: %v", state.ErrStaleBlock)
			t.Fatalf("\t%s\tShould report the mined block as stale.", failed)
		}
		t.Logf("\t%s\tShould report the mined block as stale.", success)

		if s.RetrieveLatestBlock().Hash != remote.Hash {
			t.Fatalf("\t%s\tShould keep the peer block as the head.", failed)
		}
		t.Logf("\t%s\tShould keep the peer block as the head.", success)
	}
}

func Test_ReadLimit(t *testing.T) {
	t.Log("Given the need to drop peers sending oversized messages.")
	{
		b, err := state.New(state.Config{PeerQueue: 10, MaxMessageSize: 1024})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		var upgrader websocket.Upgrader
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			b.ServePeer(r.RemoteAddr, conn)
		}))

		defer func() {
			b.Shutdown()
			srv.Close()
		}()

		url := "ws://" + strings.TrimPrefix(srv.URL, "http://")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to connect to the node: %v", failed, err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		read := func() (peer.Message, error) {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return peer.Message{}, err
			}
			return peer.Decode(data)
		}

		if msg, err := read(); err != nil || msg.Type != peer.QueryLatest {
			t.Fatalf("\t%s\tShould be asked for the latest block: %v", failed, err)
		}

		data, err := peer.NewQueryLatest().Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode a query: %v", failed, err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("\t%s\tShould be able to send a query: %v", failed, err)
		}
		if msg, err := read(); err != nil || msg.Type != peer.ResponseBlockchain {
			t.Fatalf("\t%s\tShould answer a message under the limit: %v", failed, err)
		}
		t.Logf("\t%s\tShould answer a message under the limit.", success)

		oversized := []byte(`{"type":2,"data":"` + strings.Repeat("a", 4096) + `"}`)
		if err := conn.WriteMessage(websocket.TextMessage, oversized); err != nil {
			t.Fatalf("\t%s\tShould be able to send the oversized message: %v", failed, err)
		}

		if _, err := read(); err == nil {
			t.Fatalf("\t%s\tShould close the connection after an oversized message.", failed)
		}
		t.Logf("\t%s\tShould close the connection after an oversized message.", success)

		deadline := time.Now().Add(5 * time.Second)
		for len(b.RetrievePeers()) != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould remove the peer from the set.", failed)
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Logf("\t%s\tShould remove the peer from the set.", success)
	}
}
