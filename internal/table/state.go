package table

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/lox/freezeout/internal/accountstore"
	"github.com/lox/freezeout/internal/protocol"
	"github.com/lox/freezeout/poker"
)

// clock is the subset of quartz.Clock the state machine consumes directly;
// Table.Run uses the full quartz.Clock for its ticker. Any quartz.Clock
// (real or mock) satisfies this narrower interface, and tests can supply a
// trivial fake without reimplementing quartz's ticker machinery.
type clock interface {
	Now() time.Time
}

// handState is one node of the table's hand lifecycle, per SPEC_FULL.md
// §4.6.
type handState uint8

const (
	stateWaitForPlayers handState = iota
	stateStartHand
	statePreflopBetting
	stateFlopBetting
	stateTurnBetting
	stateRiverBetting
	stateShowdown
	stateEndHand
	stateEndGame
)

const (
	actionTimeout  = 15 * time.Second
	interHandDelay = 5 * time.Second
)

var (
	errHandInProgress   = errors.New("table: hand in progress")
	errTableFull        = errors.New("table: table full")
	errAlreadyJoined    = errors.New("table: player has already joined")
)

// state is the table's internal FSM. It is driven exclusively by the single
// goroutine owning it (see table.go); none of its methods are safe for
// concurrent use.
type state struct {
	tableID    uint32
	seats      int
	joinChips  protocol.Chips
	smallBlind protocol.Chips
	bigBlind   protocol.Chips
	sk         protocol.SigningKey

	clock clock
	store accountstore.Store
	ctx   context.Context
	log   Logger

	hand         handState
	players      []*player
	activePlayer int // -1 means no one is active to act

	deck  *poker.Deck
	rng   *rand.Rand
	board []poker.Card

	pots     []pot
	lastBet  protocol.Chips
	minRaise protocol.Chips

	newHandAt time.Time
	endGameAt time.Time
}

// Logger is the narrow logging interface the table uses for best-effort,
// non-fatal failures (store errors at game end). A nil Logger discards.
type Logger interface {
	Error(msg string, args ...any)
}

func newState(tableID uint32, seats int, sk protocol.SigningKey, clk clock, store accountstore.Store, rng *rand.Rand, log Logger) *state {
	return &state{
		tableID:      tableID,
		seats:        seats,
		joinChips:    1_000_000,
		smallBlind:   10_000,
		bigBlind:     20_000,
		sk:           sk,
		clock:        clk,
		store:        store,
		ctx:          context.Background(),
		log:          log,
		hand:         stateWaitForPlayers,
		activePlayer: -1,
		rng:          rng,
		pots:         []pot{newPot()},
	}
}

// join seats a new player, returning the channel their connection should
// read outbound TableMessages from.
func (s *state) join(peerID protocol.PeerId, nickname string) (<-chan TableMessage, error) {
	if s.hand != stateWaitForPlayers {
		return nil, errHandInProgress
	}
	if len(s.players) == s.seats {
		return nil, errTableFull
	}
	for _, p := range s.players {
		if p.peerID == peerID {
			return nil, errAlreadyJoined
		}
	}

	np := newPlayer(peerID, nickname, s.joinChips)

	if env, err := protocol.Sign(s.sk, protocol.TableJoined{TableID: s.tableID, Chips: s.joinChips, Seats: s.seats}); err == nil {
		np.send(TableMessage{Kind: TableMessageSend, Envelope: env})
	}
	for _, p := range s.players {
		if env, err := protocol.Sign(s.sk, protocol.PlayerJoined{PeerID: p.peerID, Nickname: p.nickname, Chips: p.chips}); err == nil {
			np.send(TableMessage{Kind: TableMessageSend, Envelope: env})
		}
	}

	s.broadcast(protocol.PlayerJoined{PeerID: peerID, Nickname: nickname, Chips: s.joinChips})

	s.players = append(s.players, np)

	if len(s.players) == s.seats {
		s.enterStartGame()
	}

	return np.outbound, nil
}

// leave removes a seated player, folding their current bet into the open
// pot, and keeps the hand moving per SPEC_FULL.md §4.6's join/leave rules.
func (s *state) leave(peerID protocol.PeerId) {
	removed, wasActive, ok := s.removePlayer(peerID)
	if !ok {
		return
	}

	if removed.bet > 0 {
		if len(s.pots) == 0 {
			s.pots = []pot{newPot()}
		}
		current := &s.pots[len(s.pots)-1]
		current.chips += removed.bet
		current.eligible[removed.peerID] = struct{}{}
	}

	s.broadcast(protocol.PlayerLeft{PeerID: peerID})

	if len(s.players) == 0 {
		s.hand = stateWaitForPlayers
		return
	}
	if s.hand == stateWaitForPlayers {
		return
	}
	if s.countActive() < 2 {
		s.enterEndHand()
		return
	}
	if wasActive {
		s.requestAction()
	}
}

// removePlayer removes the seat for peerID and adjusts activePlayer exactly
// as the original PlayersState::leave index arithmetic does: a departure
// before the active seat shifts its index down by one; a departure of the
// active seat itself advances to the next still-active seat.
func (s *state) removePlayer(peerID protocol.PeerId) (removed *player, wasActive bool, ok bool) {
	pos := -1
	for i, p := range s.players {
		if p.peerID == peerID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, false, false
	}

	wasActive = pos == s.activePlayer
	removed = s.players[pos]
	s.players = append(s.players[:pos], s.players[pos+1:]...)

	switch countActive := s.countActive(); {
	case countActive == 0:
		s.activePlayer = -1
	case countActive == 1:
		for i, p := range s.players {
			if p.active {
				s.activePlayer = i
				break
			}
		}
	default:
		if s.activePlayer >= 0 {
			switch {
			case pos < s.activePlayer:
				s.activePlayer--
			case pos == s.activePlayer:
				if pos == len(s.players) {
					s.activePlayer = 0
				}
				for !s.players[s.activePlayer].active {
					s.activePlayer = (s.activePlayer + 1) % len(s.players)
				}
			}
		}
	}
	return removed, wasActive, true
}

// handleMessage applies an ActionResponse from peerID. Messages from any
// seat other than the currently active one, and any other message type at
// this layer, are silently ignored (IllegalAction / UnknownMessage policy,
// SPEC_FULL.md §7).
func (s *state) handleMessage(peerID protocol.PeerId, msg protocol.Message) {
	resp, ok := msg.(protocol.ActionResponse)
	if !ok {
		return
	}
	if s.activePlayer < 0 || s.players[s.activePlayer].peerID != peerID {
		return
	}

	p := s.players[s.activePlayer]
	switch resp.Action {
	case protocol.ActionFold:
		p.fold()
	case protocol.ActionCall:
		p.placeBet(resp.Action, s.lastBet)
	case protocol.ActionCheck:
		// No chip movement.
	case protocol.ActionBet, protocol.ActionRaise:
		amount := resp.Amount
		if max := p.bet + p.chips; amount > max {
			amount = max
		}
		if inc := amount - s.lastBet; inc > s.minRaise {
			s.minRaise = inc
		}
		if amount > s.lastBet {
			s.lastBet = amount
		}
		p.placeBet(resp.Action, amount)
	default:
		return
	}
	s.actionUpdate()
}

func (s *state) actionUpdate() {
	s.activateNextPlayer()
	if s.isRoundComplete() {
		s.nextRound()
	} else {
		s.broadcastGameUpdate()
		s.requestAction()
	}
}

// isRoundComplete follows the original round-complete predicate exactly:
// the round ends once fewer than 2 players remain active, or every active
// player either has matched last_bet or has no chips left to add to it,
// and no active player with chips still has an unexercised turn in this
// round (tracked via their last action still being None/SmallBlind/BigBlind).
func (s *state) isRoundComplete() bool {
	if s.countActive() < 2 {
		return true
	}
	for _, p := range s.players {
		if p.active && p.bet < s.lastBet && p.chips > 0 {
			return false
		}
	}
	if s.countActiveWithChips() < 2 {
		return true
	}
	for _, p := range s.players {
		if !p.active {
			continue
		}
		switch p.action {
		case protocol.ActionNone, protocol.ActionSmallBlind, protocol.ActionBigBlind:
			if p.chips > 0 {
				return false
			}
		}
	}
	return true
}

// nextRound advances to the next street, dealing board cards as needed, or
// to showdown once the river is complete.
func (s *state) nextRound() {
	switch s.hand {
	case statePreflopBetting:
		s.dealBoard(3)
		s.hand = stateFlopBetting
		s.startRound()
	case stateFlopBetting:
		s.dealBoard(1)
		s.hand = stateTurnBetting
		s.startRound()
	case stateTurnBetting:
		s.dealBoard(1)
		s.hand = stateRiverBetting
		s.startRound()
	case stateRiverBetting:
		s.enterShowdown()
	}
}

func (s *state) dealBoard(n int) {
	for i := 0; i < n; i++ {
		s.board = append(s.board, s.deck.Deal())
	}
}

// startRound collects the just-finished round's bets into the pots, resets
// per-round player state, and either requests the next action or — if
// nobody is left able to act (e.g. everyone is all-in) — recurses straight
// through to the next street or showdown, matching "Board is dealt to
// river without further action" (SPEC_FULL.md §8.2 scenario 2).
func (s *state) startRound() {
	s.updatePots()
	for _, p := range s.players {
		p.startRound()
	}
	s.lastBet = 0
	s.minRaise = s.bigBlind
	s.startRoundActivePlayer()
	s.broadcastGameUpdate()
	if s.isRoundComplete() {
		s.nextRound()
		return
	}
	s.requestAction()
}

func (s *state) startRoundActivePlayer() {
	s.activePlayer = -1
	for i, p := range s.players {
		if p.active && p.chips > 0 {
			s.activePlayer = i
			break
		}
	}
}

func (s *state) enterShowdown() {
	s.hand = stateShowdown
	s.updatePots()
	for _, p := range s.players {
		p.bet = 0
		p.action = protocol.ActionNone
		if p.active {
			p.publicCards = p.holeCards
		}
	}
	s.broadcastGameUpdate()
	s.enterEndHand()
}

func (s *state) enterEndHand() {
	s.hand = stateEndHand
	s.updatePots()
	payouts := s.payBets()
	for _, p := range s.players {
		p.endHand()
	}
	s.activePlayer = -1
	s.broadcastGameUpdate()

	wire := make([]protocol.HandPayoff, len(payouts))
	for i, po := range payouts {
		wire[i] = protocol.HandPayoff{PeerID: po.peerID, Amount: po.amount, BestHand: po.bestHand}
	}
	s.broadcast(protocol.EndHand{Payoffs: wire})

	if s.countWithChips() < 2 {
		s.enterEndGame()
		return
	}

	// Non-blocking interstitial: handleTick resumes play 5s from now,
	// instead of blocking this goroutine the way the original inline
	// time::sleep does, so Join/Leave/Message commands for this table keep
	// draining during the pause (see DESIGN.md).
	s.newHandAt = s.clock.Now().Add(interHandDelay)
}

func (s *state) enterEndGame() {
	s.hand = stateEndGame
	s.endGameAt = s.clock.Now().Add(interHandDelay)
}

// handleTick drives every time-based transition: action timeouts and the
// two post-hand interstitials.
func (s *state) handleTick() {
	switch s.hand {
	case stateEndHand:
		if !s.newHandAt.IsZero() && !s.clock.Now().Before(s.newHandAt) {
			s.newHandAt = time.Time{}
			s.removeBustedPlayers()
			s.enterStartHand()
		}
		return
	case stateEndGame:
		if !s.endGameAt.IsZero() && !s.clock.Now().Before(s.endGameAt) {
			s.endGameAt = time.Time{}
			s.finishEndGame()
		}
		return
	}

	if s.activePlayer < 0 {
		return
	}
	p := s.players[s.activePlayer]
	if p.actionDeadline.IsZero() {
		return
	}
	if !s.clock.Now().Before(p.actionDeadline) {
		p.fold()
		s.actionUpdate()
		return
	}
	s.broadcastGameUpdate()
}

func (s *state) removeBustedPlayers() {
	remaining := s.players[:0:0]
	for _, p := range s.players {
		if p.chips == 0 {
			p.send(TableMessage{Kind: TableMessageLeaveTable})
			s.broadcast(protocol.PlayerLeft{PeerID: p.peerID})
		} else {
			remaining = append(remaining, p)
		}
	}
	s.players = remaining
}

func (s *state) finishEndGame() {
	for _, p := range s.players {
		if p.chips > 0 {
			if err := s.store.Credit(s.ctx, p.peerID, p.chips); err != nil && s.log != nil {
				s.log.Error("credit survivor failed", "peer", p.peerID.String(), "err", err)
			}
		}
		p.send(TableMessage{Kind: TableMessageLeaveTable})
	}
	s.players = nil
	s.pots = nil
	s.board = nil
	s.activePlayer = -1
	s.hand = stateWaitForPlayers
}

// enterStartGame shuffles the seating order once, when the table first
// fills, and announces it before the first hand is dealt.
func (s *state) enterStartGame() {
	for i := len(s.players) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		s.players[i], s.players[j] = s.players[j], s.players[i]
	}
	seats := make([]protocol.PeerId, len(s.players))
	for i, p := range s.players {
		seats[i] = p.peerID
	}
	s.broadcast(protocol.StartGame{Seats: seats})
	s.enterStartHand()
}

// enterStartHand rotates the button, posts blinds, shuffles a new deck, and
// deals hole cards, per SPEC_FULL.md §4.6's StartHand sequence.
func (s *state) enterStartHand() {
	s.rotateButtonAndStartHand()
	if s.countActive() < 2 {
		s.enterEndHand()
		return
	}
	s.hand = stateStartHand

	sb := s.players[s.activePlayer]
	sb.placeBet(protocol.ActionSmallBlind, s.smallBlind)
	s.activateNextPlayer()
	bb := s.players[s.activePlayer]
	bb.placeBet(protocol.ActionBigBlind, s.bigBlind)

	s.lastBet = s.bigBlind
	s.minRaise = s.bigBlind

	s.deck = poker.NewDeck(s.rng)
	s.board = nil
	s.pots = []pot{newPot()}

	s.broadcast(protocol.StartHand{})

	for _, p := range s.players {
		if p.active {
			p.publicCards = protocol.PlayerCards{Kind: protocol.PlayerCardsCovered}
			p.holeCards = protocol.PlayerCards{Kind: protocol.PlayerCardsKnown, Card1: s.deck.Deal(), Card2: s.deck.Deal()}
		} else {
			p.publicCards = protocol.PlayerCards{}
			p.holeCards = protocol.PlayerCards{}
		}
	}

	s.broadcastGameUpdate()

	for _, p := range s.players {
		if p.holeCards.Kind == protocol.PlayerCardsKnown {
			if env, err := protocol.Sign(s.sk, protocol.DealCards{Card1: p.holeCards.Card1, Card2: p.holeCards.Card2}); err == nil {
				p.send(TableMessage{Kind: TableMessageSend, Envelope: env})
			}
		}
	}

	s.activateNextPlayer()
	s.hand = statePreflopBetting
	s.requestAction()
}

// rotateButtonAndStartHand resets every player for the new hand, then
// rotates the seating order left until the front seat is active — that
// seat becomes first to act — and hands the button to the last active
// seat in the rotated order, exactly matching the original
// PlayersState::start_hand algorithm.
func (s *state) rotateButtonAndStartHand() {
	for _, p := range s.players {
		p.startHand()
	}
	if s.countActive() <= 1 {
		s.activePlayer = -1
		return
	}
	for {
		rotateLeft(s.players)
		if s.players[0].active {
			for i := len(s.players) - 1; i >= 0; i-- {
				if s.players[i].active {
					s.players[i].hasButton = true
					break
				}
			}
			break
		}
	}
	s.activePlayer = 0
}

func rotateLeft(players []*player) {
	if len(players) == 0 {
		return
	}
	first := players[0]
	copy(players, players[1:])
	players[len(players)-1] = first
}

func (s *state) activateNextPlayer() {
	if s.countActive() == 0 || s.activePlayer < 0 {
		return
	}
	n := len(s.players)
	for {
		s.activePlayer = (s.activePlayer + 1) % n
		if s.players[s.activePlayer].active {
			return
		}
	}
}

// requestAction broadcasts a legal-action prompt for the active player to
// every seated player, so every client can render whose turn it is.
func (s *state) requestAction() {
	if s.countActive() < 2 || s.activePlayer < 0 {
		return
	}
	p := s.players[s.activePlayer]

	actions := []protocol.PlayerAction{protocol.ActionFold}
	if p.bet == s.lastBet {
		actions = append(actions, protocol.ActionCheck)
	}
	if p.bet < s.lastBet {
		actions = append(actions, protocol.ActionCall)
	}
	if s.lastBet == 0 {
		actions = append(actions, protocol.ActionBet)
	}
	if p.chips+p.bet > s.lastBet && s.lastBet > 0 {
		actions = append(actions, protocol.ActionRaise)
	}

	p.actionDeadline = s.clock.Now().Add(actionTimeout)

	s.broadcast(protocol.ActionRequest{
		PeerID:   p.peerID,
		MinRaise: s.minRaise + s.lastBet,
		BigBlind: s.bigBlind,
		Actions:  actions,
	})
}

func (s *state) broadcast(msg protocol.Message) {
	env, err := protocol.Sign(s.sk, msg)
	if err != nil {
		return
	}
	for _, p := range s.players {
		p.send(TableMessage{Kind: TableMessageSend, Envelope: env})
	}
}

func (s *state) broadcastGameUpdate() {
	updates := make([]protocol.PlayerUpdate, len(s.players))
	for i, p := range s.players {
		updates[i] = p.update()
	}
	var potTotal protocol.Chips
	for _, pt := range s.pots {
		potTotal += pt.chips
	}
	s.broadcast(protocol.GameUpdate{
		Players: updates,
		Board:   append([]poker.Card(nil), s.board...),
		Pot:     potTotal,
	})
}

func (s *state) countActive() int {
	n := 0
	for _, p := range s.players {
		if p.active {
			n++
		}
	}
	return n
}

func (s *state) countActiveWithChips() int {
	n := 0
	for _, p := range s.players {
		if p.active && p.chips > 0 {
			n++
		}
	}
	return n
}

func (s *state) countWithChips() int {
	n := 0
	for _, p := range s.players {
		if p.chips > 0 {
			n++
		}
	}
	return n
}
