package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tTong32/Real-Time-Chess-sub000/internal/game"
)

// Key prefixes. The code index maps a live room code to its game id and is
// cleared when the game finishes or is abandoned, so a present index entry
// always names an unfinished game.
const (
	prefixGame   = "game:"
	prefixCode   = "gamecode:"
	prefixUser   = "user:"
	prefixBoard  = "board:"
	prefixFriend = "friend:"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps BadgerDB for persistent storage.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store in the given directory. An empty dir
// uses the platform data directory.
func Open(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = GetDatabaseDir()
		if err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable badger's own logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that never touches disk; used by tests and
// ephemeral deployments.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func gameKey(id string) []byte    { return []byte(prefixGame + id) }
func codeKey(code string) []byte  { return []byte(prefixCode + code) }
func userKey(id string) []byte    { return []byte(prefixUser + id) }
func boardKey(u, n string) []byte { return []byte(prefixBoard + u + ":" + n) }

// friendKey orders the pair canonically so each friendship is stored once.
func friendKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(prefixFriend + a + ":" + b)
}

// getJSON reads and unmarshals one key inside a transaction.
func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON marshals and writes one key inside a transaction.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// syncCodeIndex keeps the room-code index consistent with a game record.
func syncCodeIndex(txn *badger.Txn, rec *GameRecord) error {
	if rec.RoomCode == "" {
		return nil
	}
	key := codeKey(rec.RoomCode)
	if rec.Status == game.StatusFinished || rec.Status == game.StatusAbandoned {
		return txn.Delete(key)
	}
	return txn.Set(key, []byte(rec.ID))
}

// CreateGame persists a new game record and, when it carries a room code,
// the code index entry, atomically.
func (s *Store) CreateGame(rec *GameRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, gameKey(rec.ID), rec); err != nil {
			return err
		}
		return syncCodeIndex(txn, rec)
	})
}

// GetGame fetches a game record by id.
func (s *Store) GetGame(id string) (*GameRecord, error) {
	rec := &GameRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, gameKey(id), rec)
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetGameByRoomCode resolves a room code through the index. Finished and
// abandoned games have no index entry, so a hit is always an unfinished game.
func (s *Store) GetGameByRoomCode(code string) (*GameRecord, error) {
	rec := &GameRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(codeKey(code))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, gameKey(id), rec)
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateGame rewrites a game record and keeps the code index in step.
func (s *Store) UpdateGame(rec *GameRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(gameKey(rec.ID)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		if err := setJSON(txn, gameKey(rec.ID), rec); err != nil {
			return err
		}
		return syncCodeIndex(txn, rec)
	})
}

// DeleteGame removes a game record and its code index entry.
func (s *Store) DeleteGame(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec := &GameRecord{}
		err := getJSON(txn, gameKey(id), rec)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if rec.RoomCode != "" {
			if err := txn.Delete(codeKey(rec.RoomCode)); err != nil {
				return err
			}
		}
		return txn.Delete(gameKey(id))
	})
}

// GetUser fetches a user record, provisioning a fresh one at the initial
// rating on first sight. Authentication lives outside this server; all it
// needs per user is a rating and tallies.
func (s *Store) GetUser(id string) (*UserRecord, error) {
	rec := &UserRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), rec)
	})
	if err == nil {
		return rec, nil
	}
	if err != badger.ErrKeyNotFound {
		return nil, err
	}

	rec = &UserRecord{
		ID:        id,
		Rating:    InitialRating,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.PutUser(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// PutUser writes a user record.
func (s *Store) PutUser(rec *UserRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, userKey(rec.ID), rec)
	})
}

// UpdateUserRating rewrites one user's rating and win/loss tallies after a
// rated game.
func (s *Store) UpdateUserRating(id string, rating int, won bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec := &UserRecord{}
		err := getJSON(txn, userKey(id), rec)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec.Rating = rating
		rec.GamesPlayed++
		if won {
			rec.Wins++
		} else {
			rec.Losses++
		}
		return setJSON(txn, userKey(id), rec)
	})
}

// SaveCustomBoard validates and writes a user's board layout. Creation time
// is preserved across overwrites.
func (s *Store) SaveCustomBoard(rec *CustomBoardRecord) error {
	if rec.Name == "" || strings.Contains(rec.Name, ":") {
		return fmt.Errorf("invalid board name %q", rec.Name)
	}
	if err := game.ValidateLayout(rec.Layout); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := boardKey(rec.UserID, rec.Name)
		prev := &CustomBoardRecord{}
		switch err := getJSON(txn, key, prev); err {
		case nil:
			rec.CreatedAt = prev.CreatedAt
		case badger.ErrKeyNotFound:
		default:
			return err
		}
		return setJSON(txn, key, rec)
	})
}

// GetCustomBoard fetches one saved layout.
func (s *Store) GetCustomBoard(userID, name string) (*CustomBoardRecord, error) {
	rec := &CustomBoardRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, boardKey(userID, name), rec)
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListCustomBoards returns a user's saved layouts sorted by name.
func (s *Store) ListCustomBoards(userID string) ([]*CustomBoardRecord, error) {
	var out []*CustomBoardRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBoard + userID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rec := &CustomBoardRecord{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteCustomBoard removes one saved layout.
func (s *Store) DeleteCustomBoard(userID, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := boardKey(userID, name)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// AddFriend records a friendship between two users. The pair is stored once
// under a canonical key, so adding in either order is idempotent.
func (s *Store) AddFriend(a, b string) error {
	if a == b {
		return fmt.Errorf("cannot befriend yourself")
	}
	rec := &FriendRecord{UserA: a, UserB: b, CreatedAt: time.Now().UnixMilli()}
	if b < a {
		rec.UserA, rec.UserB = b, a
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, friendKey(a, b), rec)
	})
}

// ListFriends returns the identifiers of everyone the user is friends with.
func (s *Store) ListFriends(id string) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFriend)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rec := &FriendRecord{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			}); err != nil {
				return err
			}
			switch id {
			case rec.UserA:
				out = append(out, rec.UserB)
			case rec.UserB:
				out = append(out, rec.UserA)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// RemoveFriend deletes a friendship in either argument order.
func (s *Store) RemoveFriend(a, b string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := friendKey(a, b)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}
