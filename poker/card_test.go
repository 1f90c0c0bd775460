package poker

import "testing"

func TestCardEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rank Rank
		suit Suit
		want uint32
	}{
		{King, Diamonds, 0x08004b25},
		{Five, Spades, 0x00081307},
		{Jack, Clubs, 0x0200891d},
	}

	for _, tt := range tests {
		got := NewCard(tt.rank, tt.suit)
		if uint32(got) != tt.want {
			t.Errorf("NewCard(%v, %v) = 0x%08x, want 0x%08x", tt.rank, tt.suit, uint32(got), tt.want)
		}
	}
}

func TestCardRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Suit{Clubs, Diamonds, Hearts, Spades} {
		for r := Two; r <= Ace; r++ {
			c := NewCard(r, s)
			if c.Rank() != r {
				t.Fatalf("card %v rank = %v, want %v", c, c.Rank(), r)
			}
			if c.Suit() != s {
				t.Fatalf("card %v suit = %v, want %v", c, c.Suit(), s)
			}
			if c.Prime() != primes[r] {
				t.Fatalf("card %v prime = %d, want %d", c, c.Prime(), primes[r])
			}
			if c.RankBit() != 1<<(uint32(r)+16) {
				t.Fatalf("card %v rank bit = 0x%x, want 0x%x", c, c.RankBit(), 1<<(uint32(r)+16))
			}

			parsed, err := ParseCard(c.String())
			if err != nil {
				t.Fatalf("ParseCard(%s) error: %v", c.String(), err)
			}
			if parsed != c {
				t.Fatalf("ParseCard(%s) = %v, want %v", c.String(), parsed, c)
			}
		}
	}
}

func TestCardStrings(t *testing.T) {
	t.Parallel()

	cases := map[string]Card{
		"KD": NewCard(King, Diamonds),
		"5S": NewCard(Five, Spades),
		"JC": NewCard(Jack, Clubs),
		"TH": NewCard(Ten, Hearts),
		"AH": NewCard(Ace, Hearts),
	}
	for want, c := range cases {
		if c.String() != want {
			t.Errorf("card.String() = %s, want %s", c.String(), want)
		}
	}
}

func TestParseCardInvalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "X", "Xs", "As9", "9X"} {
		if _, err := ParseCard(s); err == nil {
			t.Errorf("ParseCard(%q) expected error, got nil", s)
		}
	}
}

func TestAllCardsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[Card]bool)
	all := AllCards()
	if len(all) != 52 {
		t.Fatalf("AllCards() returned %d cards, want 52", len(all))
	}
	for _, c := range all {
		if seen[c] {
			t.Fatalf("duplicate card %v", c)
		}
		seen[c] = true
	}
}
