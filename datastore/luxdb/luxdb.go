// Package luxdb adapts a github.com/luxfi/database.Database — the same
// Reader/Writer/iterator KV contract the teacher threads through
// engine/dag/state.State, chains/atomic.Memory and core/block.Block — into
// a datastore.Store. Unlike pebblestore, which owns its storage engine
// directly, Store here is a thin translation layer: it lets this module
// run on any backend the luxfi/database ecosystem provides (memdb, leveldb,
// the manager-selected on-disk engine) without a second storage-engine
// integration.
package luxdb

import (
	"fmt"
	"strconv"
	"sync"

	luxdatabase "github.com/luxfi/database"

	"github.com/luxfi/modality/datastore"
)

const currentRoundKey = "/consensus/status/current_round"

// Store is a datastore.Store backed by a luxfi/database.Database handle.
type Store struct {
	mu sync.Mutex
	db luxdatabase.Database
}

// New wraps an already-open luxfi/database.Database. Lifecycle (open,
// close) is the caller's responsibility beyond Store.Close, which forwards
// to db.Close.
func New(db luxdatabase.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err == luxdatabase.ErrNotFound {
		return nil, datastore.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get", err)
	}
	return v, nil
}

func (s *Store) Put(key, value []byte) error {
	if err := s.db.Put(key, value); err != nil {
		return wrap("put", err)
	}
	return nil
}

func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key); err != nil {
		return wrap("delete", err)
	}
	return nil
}

func (s *Store) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return false, wrap("has", err)
	}
	return ok, nil
}

func (s *Store) NewIterator(prefix []byte) (datastore.Iterator, error) {
	return &iterator{it: s.db.NewIteratorWithPrefix(prefix), started: false}, nil
}

func (s *Store) CurrentRound() (uint64, error) {
	v, err := s.Get([]byte(currentRoundKey))
	if err == datastore.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(v), 10, 64)
}

func (s *Store) SetCurrentRound(round uint64) error {
	return s.Put([]byte(currentRoundKey), []byte(strconv.FormatUint(round, 10)))
}

func (s *Store) BumpCurrentRound() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.CurrentRound()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.SetCurrentRound(next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) FindMaxIntKey(prefix []byte) (uint64, bool, error) {
	it, err := s.NewIterator(prefix)
	if err != nil {
		return 0, false, err
	}
	defer it.Close()

	var (
		found bool
		max   uint64
	)
	for it.Next() {
		suffix := it.Key()[len(prefix):]
		n, err := strconv.ParseUint(string(suffix), 10, 64)
		if err != nil {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	if err := it.Err(); err != nil {
		return 0, false, err
	}
	return max, found, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return wrap("close", err)
	}
	return nil
}

// iterator adapts luxfi/database.Iterator to datastore.Iterator. The two
// contracts agree on Next/Key/Value shape; they differ only in the names of
// the error method (Error vs Err) and the close method (Release vs Close),
// and agree on needing an explicit first Next call before
// Key/Value are valid — luxfi/database's Iterator already starts
// unpositioned, so no started-flag dance is needed here beyond matching
// datastore.Iterator's Close naming.
type iterator struct {
	it      luxdatabase.Iterator
	started bool
}

func (it *iterator) Next() bool {
	it.started = true
	return it.it.Next()
}

func (it *iterator) Key() []byte {
	return it.it.Key()
}

func (it *iterator) Value() []byte {
	return it.it.Value()
}

func (it *iterator) Err() error {
	return it.it.Error()
}

func (it *iterator) Close() error {
	it.it.Release()
	return nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", datastore.ErrStorage, op, err)
}
