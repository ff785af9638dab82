// Package pebblestore is a github.com/cockroachdb/pebble-backed
// datastore.Store for production persistence. Pebble's native ordered
// iterator gives the half-open prefix scan directly, bounded by
// datastore.PrefixUpperBound.
package pebblestore

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/modality/datastore"
)

const currentRoundKey = "/consensus/status/current_round"

// Store is a pebble-backed datastore.Store.
type Store struct {
	mu sync.Mutex
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, wrap("open", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, datastore.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get", err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	if cerr := closer.Close(); cerr != nil {
		return nil, wrap("get: close", cerr)
	}
	return out, nil
}

func (s *Store) Put(key, value []byte) error {
	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		return wrap("put", err)
	}
	return nil
}

func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return wrap("delete", err)
	}
	return nil
}

func (s *Store) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, wrap("has", err)
	}
	if cerr := closer.Close(); cerr != nil {
		return false, wrap("has: close", cerr)
	}
	return true, nil
}

func (s *Store) NewIterator(prefix []byte) (datastore.Iterator, error) {
	upper := datastore.PrefixUpperBound(prefix)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, wrap("new iterator", err)
	}
	return &iterator{it: it, started: false}, nil
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

type iterator struct {
	it      *pebble.Iterator
	started bool
}

func (it *iterator) Next() bool {
	if !it.started {
		it.started = true
		return it.it.First()
	}
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
	return it.it.Close()
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", datastore.ErrStorage, op, err)
}
