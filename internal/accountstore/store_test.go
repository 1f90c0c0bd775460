package accountstore

import (
	"context"
	"testing"

	"github.com/lox/freezeout/internal/protocol"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestJoinServerCreatesThenTopsUp(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			peerID := protocol.PeerId{1}

			rec, err := s.JoinServer(ctx, peerID, "alice", 1_000_000)
			if err != nil {
				t.Fatalf("JoinServer: %v", err)
			}
			if rec.Chips != 1_000_000 || rec.Nickname != "alice" {
				t.Fatalf("rec = %+v", rec)
			}

			if _, err := s.Debit(ctx, peerID, 400_000); err != nil {
				t.Fatalf("Debit: %v", err)
			}

			// Re-joining with a lower buy-in must not reduce the balance,
			// but must update the nickname.
			rec, err = s.JoinServer(ctx, peerID, "alice2", 100_000)
			if err != nil {
				t.Fatalf("JoinServer (rejoin): %v", err)
			}
			if rec.Chips != 600_000 {
				t.Fatalf("rejoin chips = %d, want 600000 (no top-up below current balance)", rec.Chips)
			}
			if rec.Nickname != "alice2" {
				t.Fatalf("rejoin nickname = %q, want alice2", rec.Nickname)
			}

			// Re-joining with a higher buy-in tops up.
			rec, err = s.JoinServer(ctx, peerID, "alice2", 2_000_000)
			if err != nil {
				t.Fatalf("JoinServer (top-up): %v", err)
			}
			if rec.Chips != 2_000_000 {
				t.Fatalf("top-up chips = %d, want 2000000", rec.Chips)
			}
		})
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			peerID := protocol.PeerId{2}

			if _, err := s.JoinServer(ctx, peerID, "bob", 500_000); err != nil {
				t.Fatalf("JoinServer: %v", err)
			}

			ok, err := s.Debit(ctx, peerID, 1_000_000)
			if err != nil {
				t.Fatalf("Debit: %v", err)
			}
			if ok {
				t.Fatal("Debit succeeded despite insufficient balance")
			}

			rec, err := s.Get(ctx, peerID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if rec.Chips != 500_000 {
				t.Fatalf("balance mutated after failed debit: got %d, want 500000", rec.Chips)
			}
		})
	}
}

func TestCreditUnknownPlayer(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Credit(ctx, protocol.PeerId{3}, 100); err != ErrUnknownPlayer {
				t.Fatalf("err = %v, want ErrUnknownPlayer", err)
			}
		})
	}
}

func TestGetUnknownPlayer(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Get(ctx, protocol.PeerId{4}); err != ErrUnknownPlayer {
				t.Fatalf("err = %v, want ErrUnknownPlayer", err)
			}
		})
	}
}

func TestCreditAddsChips(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			peerID := protocol.PeerId{5}

			if _, err := s.JoinServer(ctx, peerID, "carol", 100_000); err != nil {
				t.Fatalf("JoinServer: %v", err)
			}
			if err := s.Credit(ctx, peerID, 50_000); err != nil {
				t.Fatalf("Credit: %v", err)
			}

			rec, err := s.Get(ctx, peerID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if rec.Chips != 150_000 {
				t.Fatalf("chips = %d, want 150000", rec.Chips)
			}
		})
	}
}
