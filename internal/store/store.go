// Package store holds the results resolved during one execution, keyed by
// plan field and position within enclosing lists.
package store

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

// ErrAlreadySet is returned when a result is written twice.
var ErrAlreadySet = errors.New("store: result already set")

// Result is the outcome of resolving one field instance.
type Result struct {
	Value any
	Err   error
}

// Key addresses one field instance: the plan field ID and the indexes of
// every list between the root and the field.
type Key struct {
	Field   int
	Indexes []int
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(k.Field))
	for _, i := range k.Indexes {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Store is safe for concurrent use. Each key may be written once.
type Store struct {
	mu      sync.RWMutex
	results map[string]Result
}

func New() *Store {
	return &Store{results: make(map[string]Result)}
}

func (s *Store) Set(k Key, r Result) error {
	key := k.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[key]; ok {
		return ErrAlreadySet
	}
	s.results[key] = r
	return nil
}

func (s *Store) Get(k Key) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[k.String()]
	return r, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
