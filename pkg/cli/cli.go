// Package cli implements the aclc interactive shell.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/cmdtree"
	"github.com/psaab/aclc/pkg/dialect"
)

// CLI is the interactive translation shell.
type CLI struct {
	rl      *readline.Instance
	backend Backend
	out     io.Writer
	banner  string
	timeout time.Duration

	target Target
	last   *acl.Rule

	mu    sync.Mutex
	names cmdtree.Names
}

// New creates a new CLI. banner is printed when the shell starts.
func New(b Backend, banner string) *CLI {
	markers := dialect.Markers()
	return &CLI{
		backend: b,
		out:     os.Stdout,
		banner:  banner,
		timeout: 10 * time.Second,
		names:   cmdtree.Names{Markers: markers},
	}
}

// SetOutput redirects command output, which is stdout by default.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// Run starts the interactive CLI loop.
func (c *CLI) Run() error {
	c.refreshNames()

	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &completer{cli: c},
		Listener:        readline.FuncListener(c.helpListener),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	if c.banner != "" {
		fmt.Fprintln(c.out, c.banner)
	}
	fmt.Fprintln(c.out, "Type '?' for help")
	fmt.Fprintln(c.out)

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.Execute(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
		c.rl.SetPrompt(c.prompt())
	}
	return nil
}

func historyFile() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/aclc_history"
	}
	return "/tmp/aclc_history"
}

var errExit = errors.New("exit")

// Execute runs one command line, applying a trailing "| filter".
func (c *CLI) Execute(line string) error {
	cmd, pipeType, pipeArg, ok := extractPipe(line)
	if !ok {
		return c.dispatch(line, c.out)
	}
	var buf bytes.Buffer
	err := c.dispatch(cmd, &buf)
	applyPipe(c.out, buf.String(), pipeType, pipeArg)
	return err
}

func (c *CLI) prompt() string {
	switch {
	case c.target.ACL != "":
		return "aclc[" + c.target.ACL + "]> "
	case c.target.Marker != "":
		return "aclc[" + c.target.Marker + "]> "
	}
	return "aclc> "
}

func (c *CLI) dispatch(line string, w io.Writer) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	switch parts[0] {
	case "use":
		t, _, err := c.parseTarget(parts[1:], true)
		if err != nil {
			return fmt.Errorf("use: %w", err)
		}
		c.target = t
		fmt.Fprintf(w, "working set: %s\n", describe(t))
		return nil

	case "parse":
		if err := c.needTarget(); err != nil {
			return err
		}
		text := strings.Join(parts[1:], " ")
		if text == "" {
			return fmt.Errorf("parse: missing rule text")
		}
		r, err := c.backend.Parse(ctx, c.target, text)
		if err != nil {
			return err
		}
		c.last = r
		return writeRule(w, r)

	case "render":
		if c.last == nil {
			return fmt.Errorf("render: nothing parsed yet")
		}
		t := c.target
		if len(parts) > 1 {
			var err error
			if t, _, err = c.parseTarget(parts[1:], true); err != nil {
				return fmt.Errorf("render: %w", err)
			}
		} else if err := c.needTarget(); err != nil {
			return err
		}
		out, err := c.backend.Render(ctx, t, c.last)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
		return nil

	case "delete":
		if c.last == nil {
			return fmt.Errorf("delete: nothing parsed yet")
		}
		if err := c.needTarget(); err != nil {
			return err
		}
		out, err := c.backend.RenderDelete(ctx, c.target, c.last)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
		return nil

	case "convert":
		if err := c.needTarget(); err != nil {
			return err
		}
		to, rest, err := c.parseTarget(parts[1:], false)
		if err != nil {
			return fmt.Errorf("convert: %w", err)
		}
		if len(rest) == 0 {
			return fmt.Errorf("convert: missing rule text")
		}
		out, err := c.backend.Convert(ctx, c.target, to, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
		return nil

	case "show":
		return c.handleShow(ctx, parts[1:], w)

	case "quit", "exit":
		return errExit

	case "?", "help":
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.ShellTree))
		return nil

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

// parseTarget reads "acl NAME" or "marker MARKER" from args. With all set
// the marker takes every remaining word, otherwise only one, and the
// unused words are returned.
func (c *CLI) parseTarget(args []string, all bool) (Target, []string, error) {
	if len(args) < 2 {
		return Target{}, nil, fmt.Errorf("expected acl NAME or marker MARKER")
	}
	switch args[0] {
	case "acl":
		if all && len(args) > 2 {
			return Target{}, nil, fmt.Errorf("unexpected %q", args[2])
		}
		return Target{ACL: args[1]}, args[2:], nil
	case "marker":
		n := 2
		if all {
			n = len(args)
		}
		marker := strings.Join(args[1:n], " ")
		if _, err := dialect.Select(marker); err != nil {
			return Target{}, nil, err
		}
		return Target{Marker: marker}, args[n:], nil
	}
	return Target{}, nil, fmt.Errorf("expected acl or marker, got %q", args[0])
}

func (c *CLI) needTarget() error {
	if c.target == (Target{}) {
		return fmt.Errorf("no working set, select one with: use acl NAME | use marker MARKER")
	}
	return nil
}

func describe(t Target) string {
	if t.ACL != "" {
		return "acl " + t.ACL
	}
	return "marker " + t.Marker
}

func writeRule(w io.Writer, r *acl.Rule) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func (c *CLI) handleShow(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(w, "show: specify what to show")
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.ShellTree["show"].Children))
		return nil
	}

	switch args[0] {
	case "status":
		st, err := c.backend.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Uptime:      %s\n", st.Uptime)
		fmt.Fprintf(w, "ACLs:        %d\n", st.ACLs)
		fmt.Fprintf(w, "Conversions: %d\n", st.Conversions)
		fmt.Fprintf(w, "Rejections:  %d\n", st.Rejections)
		return nil

	case "acls":
		st, err := c.backend.Status(ctx)
		if err != nil {
			return err
		}
		c.setACLs(st.ACLTable)
		names := make([]string, 0, len(st.ACLTable))
		for n := range st.ACLTable {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "%-20s %-18s %s\n", "Name", "Marker", "Context")
		for _, n := range names {
			marker := st.ACLTable[n]
			ctxDesc := "?"
			if dc, err := dialect.Select(marker); err == nil {
				ctxDesc = dc.String()
			}
			fmt.Fprintf(w, "%-20s %-18s %s\n", n, marker, ctxDesc)
		}
		return nil

	case "markers":
		for _, m := range c.completionNames().Markers {
			dc, _ := dialect.Select(m)
			fmt.Fprintf(w, "%-18s %s\n", m, dc)
		}
		fmt.Fprintln(w, "2000-3999          vrp numbered ACL (also \"acl number N\")")
		return nil

	case "rule":
		if c.last == nil {
			return fmt.Errorf("nothing parsed yet")
		}
		return writeRule(w, c.last)

	case "target":
		if c.target == (Target{}) {
			fmt.Fprintln(w, "no working set")
			return nil
		}
		fmt.Fprintln(w, describe(c.target))
		return nil

	default:
		return fmt.Errorf("unknown show target: %s", args[0])
	}
}

// refreshNames loads the configured ACL names for completion.
func (c *CLI) refreshNames() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if st, err := c.backend.Status(ctx); err == nil {
		c.setACLs(st.ACLTable)
	}
}

func (c *CLI) setACLs(table map[string]string) {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	c.mu.Lock()
	c.names.ACLs = names
	c.mu.Unlock()
}

func (c *CLI) completionNames() cmdtree.Names {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.names
}
