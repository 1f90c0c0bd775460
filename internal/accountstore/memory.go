package accountstore

import (
	"context"
	"sync"

	"github.com/lox/freezeout/internal/protocol"
)

// MemoryStore is an in-memory Store. The zero value is not usable; use
// NewMemoryStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[protocol.PeerId]PlayerRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[protocol.PeerId]PlayerRecord)}
}

func (s *MemoryStore) JoinServer(_ context.Context, peerID protocol.PeerId, nickname string, joinChips protocol.Chips) (PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[peerID]
	if !ok {
		rec = PlayerRecord{PeerID: peerID, Nickname: nickname, Chips: joinChips}
		s.records[peerID] = rec
		return rec, nil
	}

	rec.Nickname = nickname
	if rec.Chips < joinChips {
		rec.Chips = joinChips
	}
	s.records[peerID] = rec
	return rec, nil
}

func (s *MemoryStore) Debit(_ context.Context, peerID protocol.PeerId, amount protocol.Chips) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[peerID]
	if !ok || rec.Chips < amount {
		return false, nil
	}
	rec.Chips -= amount
	s.records[peerID] = rec
	return true, nil
}

func (s *MemoryStore) Credit(_ context.Context, peerID protocol.PeerId, amount protocol.Chips) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[peerID]
	if !ok {
		return ErrUnknownPlayer
	}
	rec.Chips += amount
	s.records[peerID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, peerID protocol.PeerId) (PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[peerID]
	if !ok {
		return PlayerRecord{}, ErrUnknownPlayer
	}
	return rec, nil
}
