package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mopad/mopad/pkg/types"
)

// Data aggregates the four durable collections. It is only reachable
// through Store.View and Store.Update, which scope the store lock.
type Data struct {
	Teams  *Collection[types.Teams]
	Users  *Collection[types.Users]
	Talks  *Collection[types.Talks]
	Tokens *Collection[types.TokenStore]
}

// Store is the single source of truth for one process. One reader/writer
// lock guards all collections together because several operations must
// read one collection and write another without interleaving (for example
// registration checks teams and inserts into users).
type Store struct {
	dir  string
	mu   sync.RWMutex
	data Data
}

// Open loads all collections from dir, creating empty default documents
// for files that do not exist yet.
func Open(dir string) (*Store, error) {
	data, err := LoadData(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, data: data}, nil
}

// LoadData reads a fresh, unlocked snapshot of all collections from dir.
// The disk reconciler uses it to compare on-disk truth against a live
// store.
func LoadData(dir string) (Data, error) {
	teams, err := LoadCollection(filepath.Join(dir, "teams.json"), types.Teams{})
	if err != nil {
		return Data{}, fmt.Errorf("failed to load teams: %w", err)
	}
	users, err := LoadCollection(filepath.Join(dir, "users.json"), types.Users{})
	if err != nil {
		return Data{}, fmt.Errorf("failed to load users: %w", err)
	}
	talks, err := LoadCollection(filepath.Join(dir, "talks.json"), types.Talks{})
	if err != nil {
		return Data{}, fmt.Errorf("failed to load talks: %w", err)
	}
	tokens, err := LoadCollection(filepath.Join(dir, "tokens.json"), types.TokenStore{})
	if err != nil {
		return Data{}, fmt.Errorf("failed to load tokens: %w", err)
	}
	return Data{Teams: teams, Users: users, Talks: talks, Tokens: tokens}, nil
}

// Dir returns the data directory the store was opened from.
func (s *Store) Dir() string {
	return s.dir
}

// View runs fn under the shared read lock. fn must not retain references
// to collection values past its return and must not perform unrelated
// blocking I/O while holding the lock.
func (s *Store) View(fn func(d *Data) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

// Update runs fn under the exclusive write lock. Commit order across the
// process equals the order of Update calls, which makes broadcast
// visibility follow commit order when events are published inside fn.
func (s *Store) Update(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}
