// Package accountstore defines the narrow account interface the table state
// machine consumes for buy-ins and settlement, plus two implementations: an
// in-memory store for tests and single-process use, and a durable one
// backed by one JSON file per peer.
package accountstore

import (
	"context"
	"errors"

	"github.com/lox/freezeout/internal/protocol"
)

// ErrUnknownPlayer is returned by Credit when the peer has no record yet.
var ErrUnknownPlayer = errors.New("accountstore: unknown player")

// PlayerRecord is the durable state tracked per peer.
type PlayerRecord struct {
	PeerID   protocol.PeerId
	Nickname string
	Chips    protocol.Chips
}

// Store is the interface the table state machine consumes. Implementations
// must make every method safe for concurrent use and each operation atomic
// with respect to concurrent calls for the same peer.
type Store interface {
	// JoinServer returns the existing record for peerID, topping its chips
	// up to joinChips if its balance is lower and updating the nickname if
	// it changed; it creates a new record with joinChips if none exists.
	JoinServer(ctx context.Context, peerID protocol.PeerId, nickname string, joinChips protocol.Chips) (PlayerRecord, error)

	// Debit subtracts amount from peerID's balance and reports true, or
	// reports false without mutating anything if the balance is insufficient.
	Debit(ctx context.Context, peerID protocol.PeerId, amount protocol.Chips) (bool, error)

	// Credit adds amount to peerID's balance. It fails with ErrUnknownPlayer
	// if the peer has no record.
	Credit(ctx context.Context, peerID protocol.PeerId, amount protocol.Chips) error

	// Get returns peerID's current record.
	Get(ctx context.Context, peerID protocol.PeerId) (PlayerRecord, error)
}
