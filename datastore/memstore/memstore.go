// Package memstore is an in-memory datastore.Store, sorted by key. It backs
// unit tests and the in-process devnet where durability is not required.
package memstore

import (
	"bytes"
	"sort"
	"strconv"
	"sync"

	"github.com/luxfi/modality/datastore"
)

const currentRoundKey = "/consensus/status/current_round"

// Store is a goroutine-safe in-memory datastore.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *Store) NewIterator(prefix []byte) (datastore.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upper := datastore.PrefixUpperBound(prefix)
	var keys []string
	for k := range s.data {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if upper != nil && bytes.Compare(kb, upper) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}

	return &iterator{keys: keys, values: values, idx: -1}, nil
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

	var current uint64
	if v, ok := s.data[currentRoundKey]; ok {
		current, _ = strconv.ParseUint(string(v), 10, 64)
	}
	next := current + 1
	s.data[currentRoundKey] = []byte(strconv.FormatUint(next, 10))
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
		suffix := bytes.TrimPrefix(it.Key(), prefix)
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
	return nil
}

type iterator struct {
	keys   []string
	values [][]byte
	idx    int
}

func (it *iterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *iterator) Key() []byte {
	return []byte(it.keys[it.idx])
}

func (it *iterator) Value() []byte {
	return it.values[it.idx]
}

func (it *iterator) Err() error {
	return nil
}

func (it *iterator) Close() error {
	return nil
}
