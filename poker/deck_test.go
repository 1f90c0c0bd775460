package poker

import (
	"testing"

	"github.com/lox/freezeout/internal/randutil"
)

func TestDeckConservation(t *testing.T) {
	t.Parallel()

	rng := randutil.New(1)
	d := NewDeck(rng)

	seen := make(map[Card]bool)
	for d.Remaining() > 0 {
		c := d.Deal()
		if seen[c] {
			t.Fatalf("card %v dealt twice", c)
		}
		seen[c] = true
	}

	if len(seen) != 52 {
		t.Fatalf("dealt %d distinct cards, want 52", len(seen))
	}
}

func TestDeckDealPastEmptyPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic dealing from an empty deck")
		}
	}()

	rng := randutil.New(2)
	d := NewDeck(rng)
	for i := 0; i < 52; i++ {
		d.Deal()
	}
	d.Deal()
}

func TestDeckShuffleIsDeterministic(t *testing.T) {
	t.Parallel()

	d1 := NewDeck(randutil.New(42))
	d2 := NewDeck(randutil.New(42))

	for i := 0; i < 52; i++ {
		if d1.Deal() != d2.Deal() {
			t.Fatalf("decks seeded identically diverged at card %d", i)
		}
	}
}
