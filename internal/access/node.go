package access

import "fmt"

// trieNode is one segment of the permission trie. It carries the records
// whose path terminates exactly here. Nodes are only ever touched while a
// replacement snapshot is being built, so they need no locking; readers
// always see a fully built tree.
type trieNode struct {
	path     string
	depth    int
	records  []*Permission
	children map[string]*trieNode
}

func newTrieNode(path string, depth int) *trieNode {
	// children stays nil until the first child is added to keep leaf
	// nodes allocation-free.
	return &trieNode{
		path:  path,
		depth: depth,
	}
}

func (n *trieNode) child(segment string) (*trieNode, bool) {
	c, ok := n.children[segment]
	return c, ok
}

func (n *trieNode) setChild(segment string, child *trieNode) {
	if n.children == nil {
		n.children = make(map[string]*trieNode)
	}
	n.children[segment] = child
}

// empty reports whether the node holds no records and no children, i.e. it
// can be pruned from its parent.
func (n *trieNode) empty() bool {
	return len(n.records) == 0 && len(n.children) == 0
}

// removeRecord drops the record with the given id from this node.
func (n *trieNode) removeRecord(id int64) bool {
	for i, r := range n.records {
		if r.ID == id {
			n.records = append(n.records[:i], n.records[i+1:]...)
			if len(n.records) == 0 {
				n.records = nil
			}
			return true
		}
	}
	return false
}

func (n *trieNode) String() string {
	return fmt.Sprintf("trieNode{path: %s, depth: %d, records: %d, children: %d}",
		n.path, n.depth, len(n.records), len(n.children))
}
