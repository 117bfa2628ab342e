// Package memory is an in-process implementation of the order and user
// repositories. It is a test double; the binaries always run on PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"branch-supply/internal/core"
)

// Store keeps purchase orders, their audit trail and evidence, plus users.
// Transitions on one order are serialized by a per-order mutex.
type Store struct {
	mu       sync.RWMutex
	orders   map[int]*core.PurchaseOrder
	locks    map[int]*sync.Mutex
	events   map[int][]core.OrderEvent
	evidence map[int][]core.Evidence

	nextOrder, nextLine, nextEvent, nextEvidence int

	users        map[int]*core.User
	userBranches map[int][]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders:       make(map[int]*core.PurchaseOrder),
		locks:        make(map[int]*sync.Mutex),
		events:       make(map[int][]core.OrderEvent),
		evidence:     make(map[int][]core.Evidence),
		users:        make(map[int]*core.User),
		userBranches: make(map[int][]int),
	}
}

var (
	_ core.OrderRepository = (*Store)(nil)
	_ core.UserRepository  = (*Store)(nil)
)

func (s *Store) Create(_ context.Context, po *core.PurchaseOrder, ev core.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrder++
	po.ID = s.nextOrder
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Version = 1
	for i := range po.Lines {
		s.nextLine++
		po.Lines[i].ID = s.nextLine
		po.Lines[i].OrderID = po.ID
	}
	s.orders[po.ID] = po.Clone()
	s.locks[po.ID] = &sync.Mutex{}

	ev.OrderID = po.ID
	s.appendEvent(ev)
	return nil
}

func (s *Store) appendEvent(ev core.OrderEvent) {
	s.nextEvent++
	ev.ID = s.nextEvent
	s.events[ev.OrderID] = append(s.events[ev.OrderID], ev)
}

func (s *Store) Get(_ context.Context, id int) (*core.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

// load returns a detached copy with evidence attached. Callers hold mu.
func (s *Store) load(id int) (*core.PurchaseOrder, error) {
	po, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", id, core.ErrNotFound)
	}
	c := po.Clone()
	c.Evidence = slices.Clone(s.evidence[id])
	return c, nil
}

func (s *Store) Update(_ context.Context, id int, fn func(po *core.PurchaseOrder) (*core.OrderEvent, error)) (*core.PurchaseOrder, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", id, core.ErrNotFound)
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	po, err := s.load(id)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	ev, err := fn(po)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return s.Get(context.Background(), id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.orders[id]
	if current.Version != po.Version {
		return nil, fmt.Errorf("purchase order %d changed concurrently: %w", id, core.ErrConflict)
	}
	po.ID = id
	po.Version = current.Version + 1
	po.Evidence = nil
	s.orders[id] = po.Clone()
	ev.OrderID = id
	s.appendEvent(*ev)
	return s.load(id)
}

func (s *Store) List(_ context.Context, f core.RepoFilter) ([]core.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []core.OrderSummary
	for _, po := range s.orders {
		if !matches(po, f.Status, f.BranchIDs) {
			continue
		}
		rows = append(rows, po.Summary())
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	if f.Offset >= len(rows) {
		return []core.OrderSummary{}, nil
	}
	rows = rows[f.Offset:]
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

func (s *Store) CountByStatus(_ context.Context, status core.OrderStatus, branchIDs []int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, po := range s.orders {
		if matches(po, &status, branchIDs) {
			n++
		}
	}
	return n, nil
}

func matches(po *core.PurchaseOrder, status *core.OrderStatus, branchIDs []int) bool {
	if status != nil && po.Status != *status {
		return false
	}
	if branchIDs != nil && !slices.Contains(branchIDs, po.DestinationBranchID) {
		return false
	}
	return true
}

func (s *Store) Events(_ context.Context, orderID int) ([]core.OrderEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.orders[orderID]; !ok {
		return nil, fmt.Errorf("purchase order %d: %w", orderID, core.ErrNotFound)
	}
	return slices.Clone(s.events[orderID]), nil
}

func (s *Store) AddEvidence(_ context.Context, e *core.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[e.OrderID]; !ok {
		return fmt.Errorf("purchase order %d: %w", e.OrderID, core.ErrNotFound)
	}
	for _, existing := range s.evidence[e.OrderID] {
		if strings.EqualFold(existing.FileName, e.FileName) {
			return fmt.Errorf("evidence %q already exists: %w", e.FileName, core.ErrConflict)
		}
	}
	s.nextEvidence++
	e.ID = s.nextEvidence
	s.evidence[e.OrderID] = append(s.evidence[e.OrderID], *e)
	return nil
}

func (s *Store) ListEvidence(_ context.Context, orderID int) ([]core.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.evidence[orderID])
	if out == nil {
		out = []core.Evidence{}
	}
	return out, nil
}

func (s *Store) GetEvidence(_ context.Context, orderID int, fileName string) (*core.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.evidence[orderID] {
		if e.FileName == fileName {
			out := e
			return &out, nil
		}
	}
	return nil, fmt.Errorf("evidence %q on purchase order %d: %w", fileName, orderID, core.ErrNotFound)
}

func (s *Store) DeleteEvidence(_ context.Context, orderID int, fileName string) (*core.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.evidence[orderID]
	for i, e := range list {
		if e.FileName == fileName {
			s.evidence[orderID] = slices.Delete(list, i, i+1)
			return &e, nil
		}
	}
	return nil, fmt.Errorf("evidence %q on purchase order %d: %w", fileName, orderID, core.ErrNotFound)
}

func (s *Store) EvidenceStorageKeys(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make(map[string]struct{})
	for _, list := range s.evidence {
		for _, e := range list {
			keys[e.StorageKey] = struct{}{}
		}
	}
	return keys, nil
}

// PutUser adds or replaces a user and its branch assignments.
func (s *Store) PutUser(u core.User, branches ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
	s.userBranches[u.ID] = slices.Clone(branches)
}

func (s *Store) GetByUsername(_ context.Context, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username && u.IsActive {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

func (s *Store) GetByID(_ context.Context, userID int) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user id=%d: %w", userID, core.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Store) AssignedBranches(_ context.Context, userID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.userBranches[userID]), nil
}
