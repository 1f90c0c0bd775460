// Package table implements the per-table state machine: the betting rounds
// of a single freezeout hand, side-pot construction and payout, and the
// command loop a table runs as its own cooperative task.
package table

import (
	"time"

	"github.com/lox/freezeout/internal/protocol"
)

// TableMessageKind discriminates a TableMessage.
type TableMessageKind uint8

const (
	// TableMessageSend carries a signed envelope to deliver to the player's
	// connection.
	TableMessageSend TableMessageKind = iota
	// TableMessageLeaveTable hints that the connection should drop this
	// player's table seat (sent once before a busted-out player is removed).
	TableMessageLeaveTable
)

// TableMessage is sent from a table's state machine to the task driving a
// seated player's connection.
type TableMessage struct {
	Kind     TableMessageKind
	Envelope protocol.SignedEnvelope
}

// player is one occupied seat. It is never exposed outside this package;
// callers interact with a table only through Table's command methods.
type player struct {
	peerID   protocol.PeerId
	nickname string
	outbound chan TableMessage

	chips protocol.Chips
	bet   protocol.Chips
	action protocol.PlayerAction

	publicCards protocol.PlayerCards
	holeCards   protocol.PlayerCards

	active    bool
	hasButton bool

	// actionDeadline is the wall-clock time this player's action timer
	// expires. The zero Time means no timer is running.
	actionDeadline time.Time
}

// send delivers msg to this player's connection task without blocking the
// table's single state-machine goroutine. A seat's outbound channel is sized
// generously (see newPlayer); if it is ever full the connection is already
// wedged and about to be torn down by its own read/write error handling, so
// the message is dropped rather than stalling every other seat at the table.
func (p *player) send(msg TableMessage) {
	select {
	case p.outbound <- msg:
	default:
	}
}

func newPlayer(peerID protocol.PeerId, nickname string, chips protocol.Chips) *player {
	return &player{
		peerID:   peerID,
		nickname: nickname,
		outbound: make(chan TableMessage, 128),
		chips:    chips,
		action:   protocol.ActionNone,
		active:   true,
	}
}

// startHand resets this player's per-hand state, activating them if they
// still have chips.
func (p *player) startHand() {
	p.active = p.chips > 0
	p.bet = 0
	p.action = protocol.ActionNone
	p.publicCards = protocol.PlayerCards{}
	p.holeCards = protocol.PlayerCards{}
	p.hasButton = false
	p.actionDeadline = time.Time{}
}

// startRound resets this player's per-round betting state.
func (p *player) startRound() {
	p.bet = 0
	p.action = protocol.ActionNone
}

// endHand clears this player's action bookkeeping once a hand is settled.
func (p *player) endHand() {
	p.action = protocol.ActionNone
	p.actionDeadline = time.Time{}
}

// fold removes this player from the current hand.
func (p *player) fold() {
	p.active = false
	p.action = protocol.ActionFold
	p.publicCards = protocol.PlayerCards{}
	p.holeCards = protocol.PlayerCards{}
	p.actionDeadline = time.Time{}
}

// placeBet updates the player's total bet-this-round to amount, clamping to
// an all-in if the player does not have enough chips left. amount is the
// total bet-to target, not an increment.
func (p *player) placeBet(action protocol.PlayerAction, amount protocol.Chips) {
	remainder := amount - p.bet
	if p.chips < remainder {
		p.bet += p.chips
		p.chips = 0
	} else {
		p.bet += remainder
		p.chips -= remainder
	}
	p.action = action
}

func (p *player) update() protocol.PlayerUpdate {
	var timer uint16
	if !p.actionDeadline.IsZero() {
		if remaining := time.Until(p.actionDeadline); remaining > 0 {
			timer = uint16((remaining + time.Second - 1) / time.Second)
		} else {
			timer = 0
		}
	}
	return protocol.PlayerUpdate{
		PeerID:      p.peerID,
		Nickname:    p.nickname,
		Chips:       p.chips,
		Bet:         p.bet,
		LastAction:  p.action,
		Active:      p.active,
		Button:      p.hasButton,
		Cards:       p.publicCards,
		ActionTimer: timer,
	}
}
