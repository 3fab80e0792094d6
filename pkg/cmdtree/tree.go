// Package cmdtree defines the command tree of the aclc interactive shell.
//
// The tree drives tab completion, '?' help and command resolution, for
// both the local shell and the shell attached to a remote aclcd.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Names are the values offered for dynamic tree positions.
type Names struct {
	ACLs    []string // configured ACL names
	Markers []string // accepted set markers
}

// Node defines a completion tree node with description, children, and optional dynamic values.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(n *Names) []string
	FreeForm  bool // the rest of the line is rule text, not keywords
}

// Candidate holds a command name and its description for display.
type Candidate struct {
	Name string
	Desc string
}

func aclNames(n *Names) []string { return n.ACLs }

// Markers contain spaces, so only the single-word ones are completed.
func markerWords(n *Names) []string {
	var out []string
	for _, m := range n.Markers {
		if !strings.Contains(m, " ") {
			out = append(out, m)
		}
	}
	return out
}

// targetNodes selects a set by configured name or by raw marker.
func targetNodes(desc string, next *Node) map[string]*Node {
	return map[string]*Node{
		"acl":    {Desc: desc + " by configured ACL name", DynamicFn: aclNames, Children: childrenOf(next)},
		"marker": {Desc: desc + " by set marker", DynamicFn: markerWords, Children: childrenOf(next)},
	}
}

func childrenOf(n *Node) map[string]*Node {
	if n == nil {
		return nil
	}
	return n.Children
}

var ruleText = &Node{Children: map[string]*Node{
	"<rule>": {Desc: "ACL entry text", FreeForm: true},
}}

// ShellTree is the command tree of the interactive shell.
var ShellTree = map[string]*Node{
	"use":     {Desc: "Select the working ACL set", Children: targetNodes("Select the set", nil)},
	"parse":   {Desc: "Parse an entry of the working set", Children: ruleText.Children},
	"render":  {Desc: "Render the last parsed rule", Children: targetNodes("Render for the set", nil)},
	"delete":  {Desc: "Show the command removing the last parsed rule"},
	"convert": {Desc: "Translate an entry of the working set", Children: targetNodes("Translate to the set", ruleText)},
	"show": {Desc: "Show information", Children: map[string]*Node{
		"acls":    {Desc: "Show configured ACLs"},
		"markers": {Desc: "Show accepted set markers"},
		"rule":    {Desc: "Show the last parsed rule"},
		"status":  {Desc: "Show translator status"},
		"target":  {Desc: "Show the working set"},
	}},
	"help": {Desc: "Show available commands"},
	"exit": {Desc: "Exit the shell"},
	"quit": {Desc: "Exit the shell"},
}

// KeysFromTree returns a sorted list of keys from a tree map.
func KeysFromTree(tree map[string]*Node) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HelpCandidates returns name+desc pairs for a tree level.
func HelpCandidates(tree map[string]*Node) []Candidate {
	candidates := make([]Candidate, 0, len(tree))
	for name, node := range tree {
		candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
	}
	return candidates
}

// CompleteFromTree walks the tree along words and returns the candidates
// for partial, with descriptions. A node with DynamicFn consumes the next
// word as its value. Free-form placeholders are offered only before any
// rule text has been typed, and nothing is completed inside rule text.
func CompleteFromTree(tree map[string]*Node, words []string, partial string, names *Names) []Candidate {
	current := tree
	var node *Node
	wantValue := false
	for _, w := range words {
		if wantValue {
			wantValue = false
			if node.Children == nil {
				return nil
			}
			current = node.Children
			continue
		}
		if freeForm(current) {
			return nil
		}
		next, ok := current[w]
		if !ok {
			return nil
		}
		node = next
		if node.DynamicFn != nil {
			wantValue = true
			continue
		}
		if node.Children == nil {
			return nil
		}
		current = node.Children
	}

	if wantValue {
		return dynamicCandidates(node, names, partial)
	}
	var candidates []Candidate
	for name, n := range current {
		if n.FreeForm {
			if partial == "" {
				candidates = append(candidates, Candidate{Name: name, Desc: n.Desc})
			}
			continue
		}
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: n.Desc})
		}
	}
	return candidates
}

func dynamicCandidates(node *Node, names *Names, partial string) []Candidate {
	if names == nil {
		return nil
	}
	var candidates []Candidate
	for _, name := range node.DynamicFn(names) {
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: "(configured)"})
		}
	}
	return candidates
}

// IsPlaceholder reports whether a candidate stands for free text and
// must not be inserted by completion.
func IsPlaceholder(name string) bool {
	return strings.HasPrefix(name, "<")
}

// freeForm reports whether a level only accepts rule text.
func freeForm(level map[string]*Node) bool {
	for _, n := range level {
		if n.FreeForm {
			return true
		}
	}
	return false
}

// WriteHelp prints aligned completion candidates to w.
// The entire output is built as a single string and written in one call
// so that readline's wrapWriter triggers only one Refresh cycle.
func WriteHelp(w io.Writer, candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.Name)+2 > maxWidth {
			maxWidth = len(c.Name) + 2
		}
	}
	var sb strings.Builder
	sb.WriteString("Possible completions:\n")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(&sb, "  %-*s %s\n", maxWidth, c.Name, c.Desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", c.Name)
		}
	}
	io.WriteString(w, sb.String())
}

// CommonPrefix returns the longest shared prefix among the given strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
