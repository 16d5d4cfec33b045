// Package notifycache remembers which notification phases have already
// fired per agreement. It is best-effort and non-authoritative: losing it
// causes at most a duplicate notification, never duplicate enforcement,
// because the repository status transitions are the real gates.
package notifycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/harunnryd/yakusoku/internal/clock"

	"github.com/natefinch/atomic"
)

type notifiedKeys struct {
	Keys map[string]int64 `json:"keys"` // Key -> Expiry (Unix Timestamp)
}

type Store struct {
	path  string
	clk   clock.Clock
	state notifiedKeys
	mu    sync.RWMutex
}

func NewStore(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.System{}
	}
	s := &Store{
		path: path,
		clk:  clk,
		state: notifiedKeys{
			Keys: make(map[string]int64),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.save()
	}

	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &s.state)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

// Key builds the cache key for an agreement/phase pair.
func Key(agreementID, phase string) string {
	return fmt.Sprintf("%s:%s", agreementID, phase)
}

// CheckAndMark returns true when the key was already marked and still
// unexpired. Otherwise it marks the key with the given TTL and returns
// false.
func (s *Store) CheckAndMark(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now().Unix()

	if expiry, exists := s.state.Keys[key]; exists {
		if expiry > now {
			return true
		}
		delete(s.state.Keys, key)
	}

	s.state.Keys[key] = now + int64(ttl.Seconds())
	return false
}

func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now().Unix()
	count := 0
	for k, expiry := range s.state.Keys {
		if expiry < now {
			delete(s.state.Keys, k)
			count++
		}
	}
	return count
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}
