package p2p

import (
	"sync"

	libpeer "github.com/libp2p/go-libp2p/core/peer"
)

// Registry issues peer IDs and resolves them to live peers. IDs are
// monotonically increasing and never reused, so a stale ID simply fails
// to resolve.
type Registry struct {
	mu     sync.RWMutex
	nextID PeerID
	peers  map[PeerID]*SharedPeer
	byLib  map[libpeer.ID]PeerID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[PeerID]*SharedPeer),
		byLib: make(map[libpeer.ID]PeerID),
	}
}

// Register creates a peer record for a new connection and returns it.
func (r *Registry) Register(remote libpeer.ID, addr string, send func(Message) error) *SharedPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p := &SharedPeer{
		ID:        r.nextID,
		Remote:    remote,
		Addr:      addr,
		Handshake: NewHandshake(),
		send:      send,
	}
	r.peers[p.ID] = p
	r.byLib[remote] = p.ID
	return p
}

// Lookup resolves a peer ID.
func (r *Registry) Lookup(id PeerID) (*SharedPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// LookupRemote resolves a libp2p peer identity.
func (r *Registry) LookupRemote(remote libpeer.ID) (*SharedPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLib[remote]
	if !ok {
		return nil, false
	}
	p, ok := r.peers[id]
	return p, ok
}

// Remove drops a peer record.
func (r *Registry) Remove(id PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[id]; ok {
		delete(r.byLib, p.Remote)
		delete(r.peers, id)
	}
}

// ForEach visits every registered peer.
func (r *Registry) ForEach(fn func(*SharedPeer)) {
	r.mu.RLock()
	snapshot := make([]*SharedPeer, 0, len(r.peers))
	for _, p := range r.peers {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()
	for _, p := range snapshot {
		fn(p)
	}
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
