package config

import (
	"fmt"
	"strings"
)

// Node represents a node in the configuration tree.
// It is either a leaf (terminated by ;) or a block (containing children in {}).
type Node struct {
	// Keys is the sequence of words forming this node's identity.
	// Examples:
	//   "system" -> ["system"]
	//   "acl EDGE-IN" -> ["acl", "EDGE-IN"]
	//   "type \"ipv4 advance\"" -> ["type", "ipv4 advance"]
	Keys []string

	// Children are the nodes within this block's braces.
	// nil for leaf nodes.
	Children []*Node

	// IsLeaf is true when the node is terminated by ; (no block body).
	IsLeaf bool

	// Line/Column where this node starts (for error reporting).
	Line   int
	Column int
}

// Name returns the first key of the node.
func (n *Node) Name() string {
	if len(n.Keys) == 0 {
		return ""
	}
	return n.Keys[0]
}

// KeyPath returns the full key path as a single string.
func (n *Node) KeyPath() string {
	return strings.Join(n.Keys, " ")
}

// FindChild returns the first child whose first key matches name.
func (n *Node) FindChild(name string) *Node {
	return findNode(n.Children, name)
}

// FindChildren returns all children whose first key matches name.
func (n *Node) FindChildren(name string) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Name() == name {
			result = append(result, child)
		}
	}
	return result
}

// ConfigTree is the root of a parsed configuration.
type ConfigTree struct {
	Children []*Node
}

// FindChild returns the first top-level child matching name.
func (t *ConfigTree) FindChild(name string) *Node {
	return findNode(t.Children, name)
}

func findNode(nodes []*Node, name string) *Node {
	for _, n := range nodes {
		if n.Name() == name {
			return n
		}
	}
	return nil
}

// Format renders the tree as hierarchical configuration text. Keys that
// need it are quoted, so the output parses back to the same tree.
func (t *ConfigTree) Format() string {
	var b strings.Builder
	formatNodes(&b, t.Children, 0)
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []*Node, indent int) {
	prefix := strings.Repeat("    ", indent)
	for _, n := range nodes {
		keys := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			keys[i] = quoteKey(k)
		}
		path := strings.Join(keys, " ")
		if n.IsLeaf {
			fmt.Fprintf(b, "%s%s;\n", prefix, path)
		} else {
			fmt.Fprintf(b, "%s%s {\n", prefix, path)
			formatNodes(b, n.Children, indent+1)
			fmt.Fprintf(b, "%s}\n", prefix)
		}
	}
}

func quoteKey(k string) string {
	if k == "" {
		return `""`
	}
	for i := 0; i < len(k); i++ {
		if !isWordByte(k[i]) || (k[i] == '/' && i+1 < len(k) && (k[i+1] == '/' || k[i+1] == '*')) {
			return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(k) + `"`
		}
	}
	return k
}
