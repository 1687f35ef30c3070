// Package flavor builds the three-level flavor hierarchy used by the wheel
// chart from flat CSV metadata.
//
// The metadata file carries one row per flavor with Basic, Middle and Final
// columns. Build folds the rows into a tree rooted at a synthetic "flavors"
// node; the JSON shape of the tree matches what radial hierarchy widgets
// (nivo sunburst and friends) consume directly.
package flavor

import (
	"encoding/csv"
	"fmt"
	"io"
)

// RootName is the name of the synthetic root node.
const RootName = "flavors"

// Node is one entry of the flavor hierarchy. Loc is a constant weight so
// every arc of the wheel renders with equal size.
type Node struct {
	Name     string  `json:"name"`
	Loc      int     `json:"loc,omitempty"`
	Children []*Node `json:"children"`
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) ensureChild(name string) *Node {
	if c := n.child(name); c != nil {
		return c
	}
	c := &Node{Name: name, Loc: 1, Children: []*Node{}}
	n.Children = append(n.Children, c)
	return c
}

// Build reads flavor metadata and returns the hierarchy.
//
// For every row the basic node is ensured under the root, the middle node
// under the basic node, and the final value added as a leaf under the middle
// node when non-empty. Duplicate siblings collapse to one, so feeding the
// same row twice produces the same tree as feeding it once. Sibling order is
// first-encounter order.
func Build(r io.Reader) (*Node, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("flavor: metadata is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("flavor: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range []string{"Basic", "Middle", "Final"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("flavor: metadata is missing the %q column", col)
		}
	}

	root := &Node{Name: RootName, Children: []*Node{}}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flavor: read row %d: %w", line, err)
		}
		line++

		basic := root.ensureChild(record[idx["Basic"]])
		middle := basic.ensureChild(record[idx["Middle"]])
		if final := record[idx["Final"]]; final != "" {
			middle.ensureChild(final)
		}
	}
	return root, nil
}
