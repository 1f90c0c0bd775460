// Package protocol defines the application message set exchanged between
// server and clients, and the signed-envelope wire format that carries it.
package protocol

import "github.com/lox/freezeout/poker"

// MessageTag discriminates the wire-level union of application messages.
// Values are part of the wire format; do not renumber existing tags.
type MessageTag uint8

const (
	TagJoinServer MessageTag = iota
	TagServerJoined
	TagJoinTable
	TagTableJoined
	TagPlayerJoined
	TagPlayerLeft
	TagLeaveTable
	TagStartGame
	TagStartHand
	TagDealCards
	TagGameUpdate
	TagActionRequest
	TagActionResponse
	TagEndHand
	TagShowAccount
	TagNotEnoughChips
	TagNoTablesLeft
	TagErrorMessage
)

// Message is implemented by every application message. Tag identifies which
// concrete type is on the wire so the codec can dispatch without reflection.
type Message interface {
	Tag() MessageTag
}

// PlayerAction enumerates the actions a player may take, plus the two forced
// bets that are reported through the same field so clients render one timeline.
type PlayerAction uint8

const (
	ActionNone PlayerAction = iota
	ActionSmallBlind
	ActionBigBlind
	ActionCall
	ActionCheck
	ActionBet
	ActionRaise
	ActionFold
)

func (a PlayerAction) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSmallBlind:
		return "small_blind"
	case ActionBigBlind:
		return "big_blind"
	case ActionCall:
		return "call"
	case ActionCheck:
		return "check"
	case ActionBet:
		return "bet"
	case ActionRaise:
		return "raise"
	case ActionFold:
		return "fold"
	default:
		return "unknown"
	}
}

// PlayerCardsKind discriminates the PlayerCards variant.
type PlayerCardsKind uint8

const (
	PlayerCardsNone PlayerCardsKind = iota
	PlayerCardsCovered
	PlayerCardsKnown
)

// PlayerCards is what a peer is shown of another player's hole cards: nothing
// (they have not been dealt in, or the hand is over and they mucked), a
// covered indicator (cards exist but are hidden), or the two known cards
// (own hand, or a showdown reveal).
type PlayerCards struct {
	Kind  PlayerCardsKind
	Card1 poker.Card
	Card2 poker.Card
}

// PlayerUpdate is the public view of one seated player, as broadcast in a
// GameUpdate.
type PlayerUpdate struct {
	PeerID     PeerId
	Nickname   string
	Chips      Chips
	Bet        Chips
	LastAction PlayerAction
	Active     bool
	Button     bool
	Cards      PlayerCards
	// ActionTimer is the number of seconds left on this player's action
	// clock, or 0 if they have none running.
	ActionTimer uint16
}

// HandPayoff reports one player's result at the end of a hand. BestHand is
// empty when the player won without a showdown (every opponent folded).
type HandPayoff struct {
	PeerID   PeerId
	Amount   Chips
	BestHand []poker.Card
}

// JoinServer requests a server-wide session under nickname; it must be the
// first message sent on a new connection.
type JoinServer struct {
	Nickname string
}

func (JoinServer) Tag() MessageTag { return TagJoinServer }

// ServerJoined acknowledges JoinServer with the player's current balance.
type ServerJoined struct {
	Nickname string
	Chips    Chips
}

func (ServerJoined) Tag() MessageTag { return TagServerJoined }

// JoinTable requests assignment to a table via the pool.
type JoinTable struct{}

func (JoinTable) Tag() MessageTag { return TagJoinTable }

// TableJoined acknowledges a successful JoinTable.
type TableJoined struct {
	TableID uint32
	Chips   Chips
	Seats   int
}

func (TableJoined) Tag() MessageTag { return TagTableJoined }

// PlayerJoined is broadcast to a table when a new player takes a seat.
type PlayerJoined struct {
	PeerID   PeerId
	Nickname string
	Chips    Chips
}

func (PlayerJoined) Tag() MessageTag { return TagPlayerJoined }

// PlayerLeft is broadcast to a table when a seated player departs.
type PlayerLeft struct {
	PeerID PeerId
}

func (PlayerLeft) Tag() MessageTag { return TagPlayerLeft }

// LeaveTable is sent to a connection to signal it should drop its table seat
// and return to the unseated state (e.g. after busting out).
type LeaveTable struct{}

func (LeaveTable) Tag() MessageTag { return TagLeaveTable }

// StartGame announces the shuffled seat order at the start of a game.
type StartGame struct {
	Seats []PeerId
}

func (StartGame) Tag() MessageTag { return TagStartGame }

// StartHand announces the beginning of a new hand.
type StartHand struct{}

func (StartHand) Tag() MessageTag { return TagStartHand }

// DealCards privately delivers a player's two hole cards.
type DealCards struct {
	Card1 poker.Card
	Card2 poker.Card
}

func (DealCards) Tag() MessageTag { return TagDealCards }

// GameUpdate is a full snapshot of table state, broadcast after every
// transition and on each action-timer tick.
type GameUpdate struct {
	Players []PlayerUpdate
	Board   []poker.Card
	Pot     Chips
}

func (GameUpdate) Tag() MessageTag { return TagGameUpdate }

// ActionRequest prompts the named peer to act, listing legal actions.
type ActionRequest struct {
	PeerID   PeerId
	MinRaise Chips
	BigBlind Chips
	Actions  []PlayerAction
}

func (ActionRequest) Tag() MessageTag { return TagActionRequest }

// ActionResponse is a player's reply to an ActionRequest.
type ActionResponse struct {
	Action PlayerAction
	Amount Chips
}

func (ActionResponse) Tag() MessageTag { return TagActionResponse }

// EndHand reports the outcome of a completed hand.
type EndHand struct {
	Payoffs []HandPayoff
}

func (EndHand) Tag() MessageTag { return TagEndHand }

// ShowAccount reports a player's current chip balance.
type ShowAccount struct {
	Chips Chips
}

func (ShowAccount) Tag() MessageTag { return TagShowAccount }

// NotEnoughChips is sent when a join's buy-in exceeds the player's balance.
type NotEnoughChips struct{}

func (NotEnoughChips) Tag() MessageTag { return TagNotEnoughChips }

// NoTablesLeft is sent when the pool has no seat to offer.
type NoTablesLeft struct{}

func (NoTablesLeft) Tag() MessageTag { return TagNoTablesLeft }

// ErrorMessage carries a human-readable failure description. It is the wire
// form named `Error(string)`.
type ErrorMessage struct {
	Text string
}

func (ErrorMessage) Tag() MessageTag { return TagErrorMessage }
