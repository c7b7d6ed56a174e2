// Package peer maintains the peer related information such as the set
// of connected peers and the messages exchanged with them.
package peer

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait is the time allowed to write a message to a peer.
const writeWait = 10 * time.Second

// DefaultQueueSize is the number of outbound messages buffered per peer
// before new messages for that peer are dropped.
const DefaultQueueSize = 64

// DefaultReadLimit is the largest message in bytes accepted from a peer.
const DefaultReadLimit int64 = 32 << 20

// Conn represents the behavior required of a peer's connection. A
// *websocket.Conn satisfies this interface.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ReadLimiter is implemented by connections that can cap the size of the
// messages they read. A *websocket.Conn satisfies this interface.
type ReadLimiter interface {
	SetReadLimit(limit int64)
}

// Peer represents an open connection to another node in the network. Every
// peer has its own outbound queue so a slow peer can't hold up the others.
type Peer struct {
	Host string

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	evHandler func(v string, args ...any)
}

// New constructs a peer for the connection and starts its writer.
func New(host string, conn Conn, queueSize int, evHandler func(v string, args ...any)) *Peer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	p := Peer{
		Host:      host,
		conn:      conn,
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
		evHandler: evHandler,
	}

	go p.writer()

	return &p
}

// Send queues the message for delivery to the peer. Send never blocks; if
// the peer's queue is full the message is dropped and false is returned.
func (p *Peer) Send(msg []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- msg:
		return true
	default:
		p.evHandler("peer: Send: %s: queue full, message dropped", p.Host)
		return false
	}
}

// Read blocks until the next message arrives from the peer.
func (p *Peer) Read() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	return data, err
}

// Close terminates the connection and the writer. Close is safe to call
// more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Done returns a channel that is closed once the peer has been closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// writer delivers the queued messages to the connection until the peer is
// closed or a write fails.
func (p *Peer) writer() {
	for {
		select {
		case msg := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.evHandler("peer: writer: %s: ERROR: %s", p.Host, err)
				p.Close()
				return
			}

		case <-p.done:
			return
		}
	}
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of
// connected peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[*Peer]struct{}
}

// NewPeerSet constructs a new set to manage connected peers.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[*Peer]struct{}),
	}
}

// Add adds a new peer to the set.
func (ps *PeerSet) Add(peer *Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a peer from the set.
func (ps *PeerSet) Remove(peer *Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Copy returns a list of the connected peers.
func (ps *PeerSet) Copy() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]*Peer, 0, len(ps.set))
	for peer := range ps.set {
		peers = append(peers, peer)
	}

	return peers
}

// Hosts returns the host of every connected peer.
func (ps *PeerSet) Hosts() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	hosts := make([]string, 0, len(ps.set))
	for peer := range ps.set {
		hosts = append(hosts, peer.Host)
	}

	return hosts
}

// Len returns the number of connected peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Broadcast queues the message for every connected peer.
func (ps *PeerSet) Broadcast(msg []byte) {
	for _, peer := range ps.Copy() {
		peer.Send(msg)
	}
}

// CloseAll closes and removes every peer in the set.
func (ps *PeerSet) CloseAll() {
	for _, peer := range ps.Copy() {
		peer.Close()
		ps.Remove(peer)
	}
}
