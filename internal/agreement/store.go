package agreement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type recordList struct {
	Agreements map[string]*Agreement `json:"agreements"`
}

// Store is a JSON-file-backed agreement repository. All operations are
// serialized under a single mutex, which is what makes MarkCompleted and
// MarkViolated safe check-and-set gates against concurrent ticks.
type Store struct {
	path string
	data recordList
	mu   sync.RWMutex
}

// NewStore opens the repository rooted at dir, creating it if needed.
// Records live in agreements.json inside it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		path: filepath.Join(dir, "agreements.json"),
		data: recordList{Agreements: make(map[string]*Agreement)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, &s.data); err != nil {
		return err
	}
	if s.data.Agreements == nil {
		s.data.Agreements = make(map[string]*Agreement)
	}
	return nil
}

func (s *Store) save() error {
	// Internal save, lock held by caller
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(b))
}

func (s *Store) Save(a *Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.data.Agreements[a.ID] = &cp
	return s.save()
}

func (s *Store) Get(id string) (*Agreement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data.Agreements[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// GetActive returns ACTIVE agreements ordered by expiry so ticks evaluate
// them deterministically.
func (s *Store) GetActive() ([]*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Agreement
	for _, a := range s.data.Agreements {
		if a.Status == StatusActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}

// GetByDateRange returns agreements created within [from, to). An empty
// subjectKey matches every subject.
func (s *Store) GetByDateRange(subjectKey string, from, to time.Time) ([]*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Agreement
	for _, a := range s.data.Agreements {
		if subjectKey != "" && a.SubjectKey != subjectKey {
			continue
		}
		if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MarkCompleted transitions ACTIVE -> COMPLETED. Returns false without
// touching the record when it has already left ACTIVE, which is the gate
// that prevents double-firing celebration side effects.
func (s *Store) MarkCompleted(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data.Agreements[id]
	if !ok || a.Status != StatusActive {
		return false, nil
	}

	a.Status = StatusCompleted
	if err := s.save(); err != nil {
		a.Status = StatusActive
		return false, err
	}
	return true, nil
}

// MarkViolated transitions ACTIVE -> VIOLATED and records the violation
// time exactly once. Same idempotency contract as MarkCompleted.
func (s *Store) MarkViolated(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data.Agreements[id]
	if !ok || a.Status != StatusActive {
		return false, nil
	}

	a.Status = StatusViolated
	a.ViolatedAt = &at
	if err := s.save(); err != nil {
		a.Status = StatusActive
		a.ViolatedAt = nil
		return false, err
	}
	return true, nil
}

// Extend creates a successor agreement for id starting at now. The original
// agreement is never mutated.
func (s *Store) Extend(id string, d time.Duration, now time.Time) (*Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, ok := s.data.Agreements[id]
	if !ok {
		return nil, fmt.Errorf("agreement not found")
	}

	next := New(orig.SubjectKey, orig.Category, d, orig.ConversationID, now)
	next.PrevID = orig.ID
	s.data.Agreements[next.ID] = next

	if err := s.save(); err != nil {
		delete(s.data.Agreements, next.ID)
		return nil, err
	}
	cp := *next
	return &cp, nil
}
