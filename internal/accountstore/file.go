package accountstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lox/freezeout/internal/fileutil"
	"github.com/lox/freezeout/internal/protocol"
)

// FileStore is a Store backed by one JSON file per peer in a data
// directory. Writes go through fileutil.WriteFileAtomic so a reader never
// observes a partially written record.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("accountstore: create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type fileRecord struct {
	Nickname string `json:"nickname"`
	Chips    uint64 `json:"chips"`
}

func (s *FileStore) path(peerID protocol.PeerId) string {
	return filepath.Join(s.dir, peerID.String()+".json")
}

func (s *FileStore) read(peerID protocol.PeerId) (PlayerRecord, bool, error) {
	data, err := os.ReadFile(s.path(peerID))
	if errors.Is(err, os.ErrNotExist) {
		return PlayerRecord{}, false, nil
	}
	if err != nil {
		return PlayerRecord{}, false, fmt.Errorf("accountstore: read record: %w", err)
	}

	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return PlayerRecord{}, false, fmt.Errorf("accountstore: decode record: %w", err)
	}
	return PlayerRecord{PeerID: peerID, Nickname: fr.Nickname, Chips: protocol.Chips(fr.Chips)}, true, nil
}

func (s *FileStore) write(rec PlayerRecord) error {
	data, err := json.MarshalIndent(fileRecord{Nickname: rec.Nickname, Chips: uint64(rec.Chips)}, "", "  ")
	if err != nil {
		return fmt.Errorf("accountstore: encode record: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path(rec.PeerID), data, 0o644); err != nil {
		return fmt.Errorf("accountstore: write record: %w", err)
	}
	return nil
}

func (s *FileStore) JoinServer(_ context.Context, peerID protocol.PeerId, nickname string, joinChips protocol.Chips) (PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(peerID)
	if err != nil {
		return PlayerRecord{}, err
	}
	if !ok {
		rec = PlayerRecord{PeerID: peerID, Nickname: nickname, Chips: joinChips}
	} else {
		rec.Nickname = nickname
		if rec.Chips < joinChips {
			rec.Chips = joinChips
		}
	}

	if err := s.write(rec); err != nil {
		return PlayerRecord{}, err
	}
	return rec, nil
}

func (s *FileStore) Debit(_ context.Context, peerID protocol.PeerId, amount protocol.Chips) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(peerID)
	if err != nil {
		return false, err
	}
	if !ok || rec.Chips < amount {
		return false, nil
	}

	rec.Chips -= amount
	if err := s.write(rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Credit(_ context.Context, peerID protocol.PeerId, amount protocol.Chips) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(peerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownPlayer
	}

	rec.Chips += amount
	return s.write(rec)
}

func (s *FileStore) Get(_ context.Context, peerID protocol.PeerId) (PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(peerID)
	if err != nil {
		return PlayerRecord{}, err
	}
	if !ok {
		return PlayerRecord{}, ErrUnknownPlayer
	}
	return rec, nil
}
