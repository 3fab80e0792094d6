package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/psaab/aclc/pkg/cmdtree"
)

// pipeFilters defines the available pipe filter names and descriptions.
var pipeFilters = []cmdtree.Candidate{
	{Name: "count", Desc: "Count occurrences"},
	{Name: "except", Desc: "Show only text that does not match a pattern"},
	{Name: "find", Desc: "Search for first occurrence of pattern"},
	{Name: "last", Desc: "Display end of output only"},
	{Name: "match", Desc: "Show only text that matches a pattern"},
}

// completePipeFilter returns pipe filter candidates matching the partial prefix.
// handled is false if the line doesn't contain a pipe.
func completePipeFilter(text string) (candidates []cmdtree.Candidate, handled bool) {
	idx := strings.LastIndex(text, "|")
	if idx < 0 {
		return nil, false
	}
	after := strings.TrimSpace(text[idx+1:])
	trailingSpace := len(text) > 0 && text[len(text)-1] == ' '

	if after == "" {
		return pipeFilters, true
	}
	// A complete filter name is followed by free-form text.
	if trailingSpace || strings.Contains(after, " ") {
		return nil, true
	}
	for _, f := range pipeFilters {
		if strings.HasPrefix(f.Name, after) {
			candidates = append(candidates, f)
		}
	}
	return candidates, true
}

// extractPipe splits a line at the last "| <filter>" expression.
func extractPipe(line string) (cmd, pipeType, pipeArg string, ok bool) {
	idx := strings.LastIndex(line, " | ")
	if idx < 0 {
		return line, "", "", false
	}
	cmd = strings.TrimSpace(line[:idx])
	pipeType, pipeArg, _ = strings.Cut(strings.TrimSpace(line[idx+3:]), " ")
	for _, f := range pipeFilters {
		if f.Name == pipeType {
			return cmd, pipeType, strings.TrimSpace(pipeArg), true
		}
	}
	return line, "", "", false
}

// applyPipe writes output to w through the named filter.
func applyPipe(w io.Writer, output, pipeType, pipeArg string) {
	lines := strings.Split(output, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	lp := strings.ToLower(pipeArg)
	switch pipeType {
	case "match":
		for _, line := range lines {
			if strings.Contains(strings.ToLower(line), lp) {
				fmt.Fprintln(w, line)
			}
		}
	case "except":
		for _, line := range lines {
			if !strings.Contains(strings.ToLower(line), lp) {
				fmt.Fprintln(w, line)
			}
		}
	case "find":
		found := false
		for _, line := range lines {
			if !found && strings.Contains(strings.ToLower(line), lp) {
				found = true
			}
			if found {
				fmt.Fprintln(w, line)
			}
		}
	case "count":
		fmt.Fprintf(w, "Count: %d lines\n", len(lines))
	case "last":
		n := 10
		if v, err := strconv.Atoi(pipeArg); err == nil && v > 0 {
			n = v
		}
		start := max(len(lines)-n, 0)
		for _, line := range lines[start:] {
			fmt.Fprintln(w, line)
		}
	}
}

// completer implements readline.AutoCompleter over the shell tree.
type completer struct {
	cli *CLI
}

// candidates returns the completions for text and the partial word they
// replace.
func (c *CLI) candidates(text string) ([]cmdtree.Candidate, string) {
	if cands, ok := completePipeFilter(text); ok {
		idx := strings.LastIndex(text, "|")
		return cands, strings.TrimLeft(text[idx+1:], " ")
	}
	words := strings.Fields(text)
	partial := ""
	if len(words) > 0 && !strings.HasSuffix(text, " ") {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}
	names := c.completionNames()
	return cmdtree.CompleteFromTree(cmdtree.ShellTree, words, partial, &names), partial
}

func (cp *completer) Do(line []rune, pos int) ([][]rune, int) {
	cands, partial := cp.cli.candidates(string(line[:pos]))
	var insertable []string
	for _, c := range cands {
		if !cmdtree.IsPlaceholder(c.Name) {
			insertable = append(insertable, c.Name)
		}
	}
	if len(insertable) == 0 {
		if len(cands) > 0 {
			cmdtree.WriteHelp(cp.cli.rl.Stdout(), cands)
		}
		return nil, 0
	}
	sort.Strings(insertable)

	if len(insertable) == 1 {
		suffix := insertable[0][len(partial):]
		return [][]rune{[]rune(suffix + " ")}, len(partial)
	}

	// Multiple matches: show descriptions above prompt.
	cmdtree.WriteHelp(cp.cli.rl.Stdout(), cands)
	suffix := cmdtree.CommonPrefix(insertable)[len(partial):]
	if suffix == "" {
		return nil, 0
	}
	return [][]rune{[]rune(suffix)}, len(partial)
}

// helpListener prints the candidates for the text before the cursor when
// '?' is typed, and removes the '?' from the line.
func (c *CLI) helpListener(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != '?' || pos < 1 {
		return line, pos, false
	}
	cleanLine := make([]rune, 0, len(line)-1)
	cleanLine = append(cleanLine, line[:pos-1]...)
	cleanLine = append(cleanLine, line[pos:]...)
	text := string(cleanLine[:pos-1])

	cands, _ := c.candidates(text)
	if len(cands) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "  (no help available)")
		return cleanLine, pos - 1, true
	}
	cmdtree.WriteHelp(c.rl.Stdout(), cands)
	return cleanLine, pos - 1, true
}
