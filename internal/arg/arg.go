// Package arg implements the abstract reachability graph: an arena of
// nodes addressed by index, with parent, child and coverage relations kept
// as index lists.
package arg

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
)

// NodeID addresses a node in the arena. IDs are never reused.
type NodeID int

// None is the zero value for "no node".
const None NodeID = -1

// ParentEdge is an incoming graph edge: the control-flow edge taken from Parent.
type ParentEdge struct {
	Parent NodeID
	Edge   *cfa.Edge
}

// CoverageEdge records that the successor of From along Edge was
// discarded because Covering subsumes it.
type CoverageEdge struct {
	From     NodeID
	Edge     *cfa.Edge
	Covering NodeID
}

// Node is a read-only view of an arena entry.
type Node struct {
	ID       NodeID
	Loc      cfa.Location
	State    domain.State
	Parents  []ParentEdge
	Children []NodeID
}

var (
	ErrNoRoot       = errors.New("graph has no root")
	ErrUnknownNode  = errors.New("unknown node")
	ErrPruneRoot    = errors.New("cannot prune the root")
	ErrBrokenChain  = errors.New("parent chain does not reach the root")
	ErrRootAssigned = errors.New("root already assigned")
)

// Graph is the reachability graph of one partition run. It is owned by a
// single goroutine.
type Graph struct {
	nodes    []*Node
	root     NodeID
	coverage []CoverageEdge
	live     int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{root: None}
}

// AddRoot creates the root node.
func (g *Graph) AddRoot(loc cfa.Location, s domain.State) (NodeID, error) {
	if g.root != None {
		return None, ErrRootAssigned
	}
	g.root = g.alloc(loc, s)
	return g.root, nil
}

// AddNode creates a node with the given incoming edges.
func (g *Graph) AddNode(loc cfa.Location, s domain.State, parents ...ParentEdge) (NodeID, error) {
	if g.root == None {
		return None, ErrNoRoot
	}
	if len(parents) == 0 {
		return None, errors.New("non-root node needs a parent")
	}
	for _, pe := range parents {
		if g.get(pe.Parent) == nil {
			return None, fmt.Errorf("parent %d: %w", pe.Parent, ErrUnknownNode)
		}
	}
	id := g.alloc(loc, s)
	for _, pe := range parents {
		g.link(id, pe)
	}
	return id, nil
}

// AddParent records an additional incoming edge on an existing node, as
// happens when a successor is merged into it.
func (g *Graph) AddParent(id NodeID, pe ParentEdge) error {
	if g.get(id) == nil {
		return fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	if g.get(pe.Parent) == nil {
		return fmt.Errorf("parent %d: %w", pe.Parent, ErrUnknownNode)
	}
	g.link(id, pe)
	return nil
}

// Replace swaps the state of a node after a merge.
func (g *Graph) Replace(id NodeID, s domain.State) error {
	n := g.get(id)
	if n == nil {
		return fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	n.State = s
	return nil
}

// Cover records a coverage edge.
func (g *Graph) Cover(from NodeID, e *cfa.Edge, covering NodeID) error {
	if g.get(from) == nil || g.get(covering) == nil {
		return fmt.Errorf("coverage %d -> %d: %w", from, covering, ErrUnknownNode)
	}
	g.coverage = append(g.coverage, CoverageEdge{From: from, Edge: e, Covering: covering})
	return nil
}

// CoverageOf returns the coverage edges pointing at id.
func (g *Graph) CoverageOf(id NodeID) []CoverageEdge {
	var out []CoverageEdge
	for _, c := range g.coverage {
		if c.Covering == id {
			out = append(out, c)
		}
	}
	return out
}

// Coverage returns every coverage edge in insertion order.
func (g *Graph) Coverage() []CoverageEdge {
	return slices.Clone(g.coverage)
}

// Root returns the root id, or None.
func (g *Graph) Root() NodeID { return g.root }

// Len is the number of live nodes.
func (g *Graph) Len() int { return g.live }

// Node returns a copy of the node.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n := g.get(id)
	if n == nil {
		return Node{}, false
	}
	cp := *n
	cp.Parents = slices.Clone(n.Parents)
	cp.Children = slices.Clone(n.Children)
	return cp, true
}

// Contains reports whether id is live.
func (g *Graph) Contains(id NodeID) bool { return g.get(id) != nil }

// Nodes returns the live ids in creation order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, 0, g.live)
	for _, n := range g.nodes {
		if n != nil {
			out = append(out, n.ID)
		}
	}
	return out
}

func (g *Graph) alloc(loc cfa.Location, s domain.State) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: id, Loc: loc, State: s})
	g.live++
	return id
}

func (g *Graph) link(child NodeID, pe ParentEdge) {
	n := g.nodes[child]
	for _, old := range n.Parents {
		if old.Parent == pe.Parent && old.Edge == pe.Edge {
			return
		}
	}
	n.Parents = append(n.Parents, pe)
	p := g.nodes[pe.Parent]
	if !slices.Contains(p.Children, child) {
		p.Children = append(p.Children, child)
	}
}

func (g *Graph) get(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// PruneSubtree removes id together with every node that is no longer
// reachable from the root once id is gone. It returns the removed ids and
// the surviving nodes that must be re-explored: parents of removed nodes
// and sources of coverage edges into removed nodes. Both lists are sorted.
func (g *Graph) PruneSubtree(id NodeID) (removed, reopened []NodeID, err error) {
	if g.get(id) == nil {
		return nil, nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	if id == g.root {
		return nil, nil, ErrPruneRoot
	}

	depth := g.depths(id)
	dead := make(map[NodeID]bool)
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		if _, ok := depth[n.ID]; !ok {
			dead[n.ID] = true
			removed = append(removed, n.ID)
		}
	}

	reopen := make(map[NodeID]bool)
	for _, d := range removed {
		for _, pe := range g.nodes[d].Parents {
			if !dead[pe.Parent] {
				reopen[pe.Parent] = true
			}
		}
	}

	kept := g.coverage[:0]
	for _, c := range g.coverage {
		switch {
		case dead[c.From]:
		case dead[c.Covering]:
			reopen[c.From] = true
		default:
			kept = append(kept, c)
		}
	}
	g.coverage = kept

	for _, d := range removed {
		g.nodes[d] = nil
		g.live--
	}
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		n.Parents = slices.DeleteFunc(n.Parents, func(pe ParentEdge) bool { return dead[pe.Parent] })
		n.Children = slices.DeleteFunc(n.Children, func(c NodeID) bool { return dead[c] })
	}
	g.repairChains(depth)

	for r := range reopen {
		reopened = append(reopened, r)
	}
	slices.Sort(reopened)
	return removed, reopened, nil
}

// repairChains keeps the earliest-inserted parent first wherever its chain
// still reaches the root. Every other node gets its earliest parent that is
// closer to the root moved to the front, which makes all chains finite.
func (g *Graph) repairChains(depth map[NodeID]int) {
	reaches := map[NodeID]bool{g.root: true}
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		var chain []NodeID
		onChain := make(map[NodeID]bool)
		cur, ok := n, false
		for {
			if r, known := reaches[cur.ID]; known {
				ok = r
				break
			}
			if onChain[cur.ID] || len(cur.Parents) == 0 {
				break
			}
			onChain[cur.ID] = true
			chain = append(chain, cur.ID)
			cur = g.nodes[cur.Parents[0].Parent]
		}
		for _, id := range chain {
			reaches[id] = ok
		}
	}

	for _, n := range g.nodes {
		if n == nil || reaches[n.ID] {
			continue
		}
		i := slices.IndexFunc(n.Parents, func(pe ParentEdge) bool {
			return depth[pe.Parent] < depth[n.ID]
		})
		if i > 0 {
			pe := n.Parents[i]
			n.Parents = slices.Insert(slices.Delete(n.Parents, i, i+1), 0, pe)
		}
	}
}

// depths runs a breadth-first search from the root over child links,
// never entering skip.
func (g *Graph) depths(skip NodeID) map[NodeID]int {
	depth := map[NodeID]int{g.root: 0}
	queue := []NodeID{g.root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.nodes[cur].Children {
			if c == skip {
				continue
			}
			if _, seen := depth[c]; !seen {
				depth[c] = depth[cur] + 1
				queue = append(queue, c)
			}
		}
	}
	return depth
}
