package poker

import "math/rand/v2"

// Deck is a standard 52-card deck dealt from a fixed backing array. size is
// the logical count of slots still eligible to be dealt or sampled; it
// starts at 52 and only shrinks when Remove excludes a card.
type Deck struct {
	cards [52]Card
	next  int
	size  int
	rng   *rand.Rand
}

// NewDeck creates a new shuffled deck using rng as its source of randomness.
// A nil rng is not valid; callers construct one via internal/randutil.New.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	copy(d.cards[:], AllCards())
	d.Shuffle()
	return d
}

// Shuffle resets the deck to full and reshuffles it with Fisher-Yates.
func (d *Deck) Shuffle() {
	d.next = 0
	d.size = len(d.cards)
	for i := d.size - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals a single card from the top of the deck. It panics if the deck
// is empty, since a correctly driven table never deals past 52 cards in a
// single hand.
func (d *Deck) Deal() Card {
	if d.next >= d.size {
		panic("poker: deal from empty deck")
	}
	c := d.cards[d.next]
	d.next++
	return c
}

// Remaining returns the number of cards left to deal.
func (d *Deck) Remaining() int {
	return d.size - d.next
}

// Dealt returns the cards dealt so far, in deal order.
func (d *Deck) Dealt() []Card {
	out := make([]Card, d.next)
	copy(out, d.cards[:d.next])
	return out
}

// Remove deletes card from the undealt portion of the deck by equality. It
// is used to exclude known cards (opponents' hole cards, the board) before
// odds sampling, so sampling draws only from genuinely unknown cards. A
// card that was already dealt or isn't present is left untouched.
func (d *Deck) Remove(card Card) {
	for i := d.next; i < d.size; i++ {
		if d.cards[i] == card {
			copy(d.cards[i:d.size-1], d.cards[i+1:d.size])
			d.cards[d.size-1] = card // keep it in the backing array for Shuffle
			d.size--
			return
		}
	}
}

// RemainingCards returns the undealt cards still eligible to be dealt or
// sampled, in their current (shuffled, minus any Removed cards) order.
func (d *Deck) RemainingCards() []Card {
	out := make([]Card, d.size-d.next)
	copy(out, d.cards[d.next:d.size])
	return out
}
