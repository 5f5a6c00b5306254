package access

import (
	"fmt"
	"strings"
)

// Trie indexes one user's permission records by path segment. Both lookup
// and mutation walk the query path once, so they cost O(depth of path)
// regardless of how many records the user holds. The flat record list would
// be O(n) per lookup, which is unacceptable on the per-access hot path.
type Trie struct {
	root *trieNode
	size int
}

// RecordMatch is a record that applies to a queried path, annotated with
// the depth of the trie node that produced it. Depth is the specificity
// used for tie-breaking during resolution.
type RecordMatch struct {
	Record *Permission
	Depth  int
}

func NewTrie() *Trie {
	return &Trie{
		root: newTrieNode(PathSep, 0),
	}
}

// Len returns the number of records held by the trie.
func (t *Trie) Len() int {
	return t.size
}

// Insert walks or creates nodes along the record's path segments and
// appends the record to the terminal node. The record's path must already
// be normalized.
func (t *Trie) Insert(p *Permission) error {
	if p == nil {
		return fmt.Errorf("%w: nil permission", ErrValidation)
	}
	segments := PathSegments(p.Path)

	current := t.root
	for i, segment := range segments {
		child, ok := current.child(segment)
		if !ok {
			fullPath := PathSep + strings.Join(segments[:i+1], PathSep)
			child = newTrieNode(fullPath, i+1)
			current.setChild(segment, child)
		}
		current = child
	}

	current.records = append(current.records, p)
	t.size++
	return nil
}

// Remove walks to the record's node and drops it from that node's list,
// pruning now-empty nodes back up the chain. Nodes that still hold records
// or other children stay. Returns false if the record is not in the trie.
func (t *Trie) Remove(p *Permission) bool {
	if p == nil {
		return false
	}
	segments := PathSegments(p.Path)

	// Track the visited chain so empty leaves can be pruned.
	chain := make([]*trieNode, 0, len(segments)+1)
	chain = append(chain, t.root)

	current := t.root
	for _, segment := range segments {
		child, ok := current.child(segment)
		if !ok {
			return false
		}
		current = child
		chain = append(chain, current)
	}

	if !current.removeRecord(p.ID) {
		return false
	}
	t.size--

	for i := len(chain) - 1; i > 0; i-- {
		if !chain[i].empty() {
			break
		}
		delete(chain[i-1].children, segments[i-1])
	}
	return true
}

// Match collects every record governing the given normalized path. Records
// at the exact terminal node always apply; records at strict ancestors
// apply only when they affect children. Querying a path the trie holds no
// node for still yields the ancestor matches along the common prefix.
func (t *Trie) Match(path string) []RecordMatch {
	segments := PathSegments(path)

	var matches []RecordMatch
	collect := func(n *trieNode, exact bool) {
		for _, r := range n.records {
			if exact || r.AffectsChildren {
				matches = append(matches, RecordMatch{Record: r, Depth: n.depth})
			}
		}
	}

	current := t.root
	collect(current, len(segments) == 0)

	for i, segment := range segments {
		child, ok := current.child(segment)
		if !ok {
			break
		}
		current = child
		collect(current, i == len(segments)-1)
	}

	return matches
}

// Records returns every record in the trie in depth-first order.
func (t *Trie) Records() []*Permission {
	out := make([]*Permission, 0, t.size)
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		out = append(out, n.records...)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(t.root)
	return out
}
