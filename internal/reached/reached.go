// Package reached holds the reached set of an analysis run and its
// waitlist (the frontier still to be explored).
package reached

import (
	"container/heap"
	"fmt"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
)

// Policy selects the pop order of the waitlist.
type Policy int

const (
	DFS Policy = iota
	BFS
	// Topological pops the entry whose location comes first in reverse
	// postorder, ties broken by insertion order.
	Topological
)

func (p Policy) String() string {
	switch p {
	case DFS:
		return "dfs"
	case BFS:
		return "bfs"
	case Topological:
		return "topological"
	default:
		return "unknown"
	}
}

// ParsePolicy reads a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "dfs", "":
		return DFS, nil
	case "bfs":
		return BFS, nil
	case "topological", "topo":
		return Topological, nil
	}
	return DFS, fmt.Errorf("unknown waitlist policy %q", s)
}

// Entry is one element of the reached set. ID is the graph node that owns it.
type Entry struct {
	ID        int
	Loc       cfa.Location
	State     domain.State
	Precision domain.Precision
}

// Set is the reached set plus waitlist. It is not safe for concurrent use.
type Set struct {
	policy   Policy
	priority map[cfa.Location]int

	entries map[int]*Entry
	byLoc   map[cfa.Location][]int

	wait    waitHeap
	waiting map[int]uint64 // id -> live ticket
	ticket  uint64
}

// New creates an empty set. priority is only consulted by Topological.
func New(policy Policy, priority map[cfa.Location]int) *Set {
	return &Set{
		policy:   policy,
		priority: priority,
		entries:  make(map[int]*Entry),
		byLoc:    make(map[cfa.Location][]int),
		waiting:  make(map[int]uint64),
	}
}

// Add inserts a new entry into the reached set and the waitlist.
func (s *Set) Add(e Entry) {
	if _, ok := s.entries[e.ID]; ok {
		return
	}
	cp := e
	s.entries[e.ID] = &cp
	s.byLoc[e.Loc] = append(s.byLoc[e.Loc], e.ID)
	s.push(e.ID)
}

// Reopen puts an existing entry back on the waitlist.
func (s *Set) Reopen(id int) {
	if _, ok := s.entries[id]; !ok {
		return
	}
	if _, ok := s.waiting[id]; ok {
		return
	}
	s.push(id)
}

func (s *Set) push(id int) {
	s.ticket++
	s.waiting[id] = s.ticket
	e := s.entries[id]
	heap.Push(&s.wait, item{id: id, key: s.key(e.Loc, s.ticket), ticket: s.ticket})
}

func (s *Set) key(loc cfa.Location, ticket uint64) [2]int64 {
	switch s.policy {
	case BFS:
		return [2]int64{0, int64(ticket)}
	case Topological:
		return [2]int64{int64(s.priority[loc]), int64(ticket)}
	default:
		return [2]int64{0, -int64(ticket)}
	}
}

// PopNext removes and returns the next waitlist entry. It returns false
// when the waitlist is empty.
func (s *Set) PopNext() (Entry, bool) {
	for s.wait.Len() > 0 {
		it := heap.Pop(&s.wait).(item)
		if t, ok := s.waiting[it.id]; !ok || t != it.ticket {
			continue
		}
		delete(s.waiting, it.id)
		return *s.entries[it.id], true
	}
	return Entry{}, false
}

// EntriesAt returns the entries at loc in insertion order.
func (s *Set) EntriesAt(loc cfa.Location) []Entry {
	ids := s.byLoc[loc]
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = *s.entries[id]
	}
	return out
}

// Get returns the entry with the given id.
func (s *Set) Get(id int) (Entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remove drops an entry from the reached set and the waitlist.
func (s *Set) Remove(id int) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	delete(s.waiting, id)
	ids := s.byLoc[e.Loc]
	for i, x := range ids {
		if x == id {
			s.byLoc[e.Loc] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byLoc[e.Loc]) == 0 {
		delete(s.byLoc, e.Loc)
	}
}

// Replace swaps the state and precision of an entry in place and puts it
// back on the waitlist so that its successors are recomputed.
func (s *Set) Replace(id int, st domain.State, p domain.Precision) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.State = st
	e.Precision = p
	if _, waiting := s.waiting[id]; !waiting {
		s.push(id)
	}
}

// SetPrecision updates the precision of an entry without requeueing it.
func (s *Set) SetPrecision(id int, p domain.Precision) {
	if e, ok := s.entries[id]; ok {
		e.Precision = p
	}
}

// Waiting returns the ids on the waitlist in pop order.
func (s *Set) Waiting() []int {
	cp := make(waitHeap, len(s.wait))
	copy(cp, s.wait)
	var out []int
	for cp.Len() > 0 {
		it := heap.Pop(&cp).(item)
		if t, ok := s.waiting[it.id]; ok && t == it.ticket {
			out = append(out, it.id)
		}
	}
	return out
}

// InWaitlist reports whether id waits to be explored.
func (s *Set) InWaitlist(id int) bool {
	_, ok := s.waiting[id]
	return ok
}

// Contains reports whether id is in the reached set.
func (s *Set) Contains(id int) bool {
	_, ok := s.entries[id]
	return ok
}

// Len is the size of the reached set.
func (s *Set) Len() int { return len(s.entries) }

// WaitlistLen is the size of the waitlist.
func (s *Set) WaitlistLen() int { return len(s.waiting) }

type item struct {
	id     int
	key    [2]int64
	ticket uint64
}

type waitHeap []item

func (h waitHeap) Len() int { return len(h) }
func (h waitHeap) Less(i, j int) bool {
	if h[i].key[0] != h[j].key[0] {
		return h[i].key[0] < h[j].key[0]
	}
	return h[i].key[1] < h[j].key[1]
}
func (h waitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *waitHeap) Push(x any)   { *h = append(*h, x.(item)) }
func (h *waitHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
