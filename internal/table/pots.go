package table

import (
	"sort"

	"github.com/lox/freezeout/internal/protocol"
	"github.com/lox/freezeout/poker"
)

// pot is one (possibly side) pot: a chip total and the set of peers still
// eligible to win it.
type pot struct {
	chips    protocol.Chips
	eligible map[protocol.PeerId]struct{}
}

func newPot() pot {
	return pot{eligible: make(map[protocol.PeerId]struct{})}
}

// updatePots collects every player's current-round bet into the pots list,
// splitting off a new side pot each time a contributing player's bet brings
// their stack to zero. It is invoked at the end of every betting round and
// again at showdown, matching the original update_pots algorithm: repeatedly
// peel off the smallest positive bet across all contributors into the
// currently open (last) pot, opening a fresh pot whenever that peel-off
// exhausts a player's remaining chips.
func (s *state) updatePots() {
	for {
		minBet := protocol.Chips(0)
		for _, p := range s.players {
			if p.bet > 0 && (minBet == 0 || p.bet < minBet) {
				minBet = p.bet
			}
		}
		if minBet == 0 {
			return
		}

		current := &s.pots[len(s.pots)-1]
		wentAllIn := false
		for _, p := range s.players {
			if p.bet > 0 {
				p.bet -= minBet
				current.chips += minBet
				current.eligible[p.peerID] = struct{}{}
				if p.chips == 0 {
					wentAllIn = true
				}
			}
		}
		if wentAllIn {
			s.pots = append(s.pots, newPot())
		}
	}
}

// payout is one player's share of the pots at the end of a hand.
type payout struct {
	peerID   protocol.PeerId
	amount   protocol.Chips
	bestHand []poker.Card
}

// payBets awards every pot to its winner(s) and returns the accumulated
// per-player payouts. If exactly one player is still active they take
// everything uncontested. Otherwise each pot is awarded independently to
// the best hand(s) among the players eligible for it; SPEC_FULL.md requires
// splitting an exact tie evenly among the tied hands, with any odd chip
// going to the first tied player seated after the button (the original
// Rust `pay_bets` instead picks a single winner via `max_by`, an
// arbitrary pick on ties rather than a split — SPEC_FULL.md's split rule is
// implemented here instead, see DESIGN.md).
func (s *state) payBets() []payout {
	results := make(map[protocol.PeerId]*payout)
	order := func(peerID protocol.PeerId) {
		if _, ok := results[peerID]; !ok {
			results[peerID] = &payout{peerID: peerID}
		}
	}

	activeCount := 0
	var solePeerID protocol.PeerId
	for _, p := range s.players {
		if p.active {
			activeCount++
			solePeerID = p.peerID
		}
	}

	if activeCount == 1 {
		order(solePeerID)
		for _, pt := range s.pots {
			results[solePeerID].amount += pt.chips
		}
		s.pots = nil
		return payoutSlice(results, s.players)
	}

	buttonSeat := s.buttonSeatIndex()

	for _, pt := range s.pots {
		if pt.chips == 0 {
			continue
		}

		type contender struct {
			idx      int
			value    poker.HandValue
			bestHand []poker.Card
		}
		var contenders []contender
		for i, p := range s.players {
			if !p.active {
				continue
			}
			if _, ok := pt.eligible[p.peerID]; !ok {
				continue
			}
			if p.holeCards.Kind != protocol.PlayerCardsKnown {
				continue
			}
			cards := append([]poker.Card{p.holeCards.Card1, p.holeCards.Card2}, s.board...)
			value, best := poker.BestHand(cards)
			contenders = append(contenders, contender{idx: i, value: value, bestHand: best})
		}
		if len(contenders) == 0 {
			continue
		}

		best := contenders[0].value
		for _, c := range contenders[1:] {
			if c.value > best {
				best = c.value
			}
		}

		var winners []contender
		for _, c := range contenders {
			if c.value == best {
				winners = append(winners, c)
			}
		}

		// Order winners by seat distance clockwise from the button so the
		// odd-chip remainder lands on the first eligible seat after it.
		sort.Slice(winners, func(i, j int) bool {
			return seatDistance(buttonSeat, winners[i].idx, len(s.players)) <
				seatDistance(buttonSeat, winners[j].idx, len(s.players))
		})

		share := pt.chips / protocol.Chips(len(winners))
		remainder := pt.chips - share*protocol.Chips(len(winners))
		for i, w := range winners {
			peerID := s.players[w.idx].peerID
			order(peerID)
			amount := share
			if protocol.Chips(i) < remainder {
				amount++
			}
			results[peerID].amount += amount
			if len(results[peerID].bestHand) == 0 {
				results[peerID].bestHand = w.bestHand
			}
		}
	}

	s.pots = nil
	return payoutSlice(results, s.players)
}

// buttonSeatIndex returns the index of the current button holder, or 0 if
// none is set (should not happen once a hand has started).
func (s *state) buttonSeatIndex() int {
	for i, p := range s.players {
		if p.hasButton {
			return i
		}
	}
	return 0
}

// seatDistance is how many seats clockwise idx sits from button; the button
// itself counts as n seats away, so it comes after every other seat.
func seatDistance(button, idx, n int) int {
	d := idx - button
	if d <= 0 {
		d += n
	}
	return d
}

// payoutSlice renders the results map in table seating order so output is
// deterministic.
func payoutSlice(results map[protocol.PeerId]*payout, players []*player) []payout {
	out := make([]payout, 0, len(results))
	for _, p := range players {
		if r, ok := results[p.peerID]; ok {
			out = append(out, *r)
			delete(results, p.peerID)
		}
	}
	for _, r := range results {
		out = append(out, *r)
	}
	return out
}
