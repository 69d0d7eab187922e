// Package types defines the identity and value model shared by every
// replidoc container: peer and operation identifiers, container identifiers,
// tree node identifiers, and the tagged value union carried by containers.
package types

import "fmt"

// PeerID identifies a replica. Each replica picks a random 64-bit peer ID;
// two replicas editing the same document must never share one.
type PeerID uint64

// Counter is a per-peer, monotonically increasing operation sequence number.
type Counter int32

// ID is a globally unique operation identifier. A peer never reuses a
// counter value, so (Peer, Counter) pairs identify operations forever.
type ID struct {
	Peer    PeerID
	Counter Counter
}

// NewID creates an ID from a peer and counter.
func NewID(peer PeerID, counter Counter) ID {
	return ID{Peer: peer, Counter: counter}
}

// Compare orders IDs lexicographically by (peer, counter).
// It returns -1, 0, or 1.
func (id ID) Compare(other ID) int {
	if id.Peer != other.Peer {
		if id.Peer < other.Peer {
			return -1
		}
		return 1
	}
	if id.Counter != other.Counter {
		if id.Counter < other.Counter {
			return -1
		}
		return 1
	}
	return 0
}

// String returns the canonical "counter@peer" form.
func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Counter, id.Peer)
}
