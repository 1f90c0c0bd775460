package table

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/freezeout/internal/accountstore"
	"github.com/lox/freezeout/internal/protocol"
)

// Table is a single fixed-seat table running its own cooperative command
// loop. All interaction happens through Join/Leave/Message/Run; the
// internal state is never touched from any other goroutine.
type Table struct {
	id       uint32
	seats    int
	commands chan command
	st       *state
	clock    quartz.Clock
}

type command interface{ isCommand() }

type joinCmd struct {
	peerID   protocol.PeerId
	nickname string
	result   chan joinResult
}

func (joinCmd) isCommand() {}

type joinResult struct {
	messages <-chan TableMessage
	// full reports whether this join filled the last open seat, so the
	// pool can move this table to the back of its try-join order.
	full bool
	err  error
}

type leaveCmd struct{ peerID protocol.PeerId }

func (leaveCmd) isCommand() {}

type messageCmd struct {
	peerID protocol.PeerId
	msg    protocol.Message
}

func (messageCmd) isCommand() {}

// New creates a table with the given seat count, signing key, and account
// store, ready to be driven by Run. rng seeds both seat shuffling and deck
// shuffling; clock drives action timeouts and interstitial waits.
func New(tableID uint32, seats int, sk protocol.SigningKey, store accountstore.Store, clock quartz.Clock, rng *rand.Rand, log Logger) *Table {
	return &Table{
		id:       tableID,
		seats:    seats,
		commands: make(chan command, 128),
		st:       newState(tableID, seats, sk, clock, store, rng, log),
		clock:    clock,
	}
}

// ID returns this table's process-wide identifier.
func (t *Table) ID() uint32 { return t.id }

// Seats returns this table's fixed seat count.
func (t *Table) Seats() int { return t.seats }

// Run drives the table's command loop until ctx is canceled. It must be
// called exactly once, typically from its own goroutine; in-flight hand
// state is discarded on cancellation without payout, per SPEC_FULL.md §5.
func (t *Table) Run(ctx context.Context) {
	t.st.ctx = ctx

	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.st.handleTick()
		case cmd := <-t.commands:
			switch c := cmd.(type) {
			case joinCmd:
				ch, err := t.st.join(c.peerID, c.nickname)
				c.result <- joinResult{messages: ch, full: err == nil && len(t.st.players) == t.st.seats, err: err}
			case leaveCmd:
				t.st.leave(c.peerID)
			case messageCmd:
				t.st.handleMessage(c.peerID, c.msg)
			}
		}
	}
}

// Join seats peerID at this table, returning the channel its connection
// should forward outbound TableMessages from, and whether the join filled
// the table's last seat.
func (t *Table) Join(ctx context.Context, peerID protocol.PeerId, nickname string) (messages <-chan TableMessage, full bool, err error) {
	result := make(chan joinResult, 1)
	select {
	case t.commands <- joinCmd{peerID: peerID, nickname: nickname, result: result}:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	select {
	case r := <-result:
		return r.messages, r.full, r.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Leave removes peerID from this table, if seated.
func (t *Table) Leave(ctx context.Context, peerID protocol.PeerId) {
	select {
	case t.commands <- leaveCmd{peerID: peerID}:
	case <-ctx.Done():
	}
}

// Message forwards a verified application message from peerID to the
// table's state machine.
func (t *Table) Message(ctx context.Context, peerID protocol.PeerId, msg protocol.Message) {
	select {
	case t.commands <- messageCmd{peerID: peerID, msg: msg}:
	case <-ctx.Done():
	}
}
