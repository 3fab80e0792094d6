// Package aclset parses whole ACL sets out of raw device output. Lines that
// fail to parse are logged and skipped so one bad entry does not hide the
// rest of the set.
package aclset

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/dialect"
)

// Rejection is a line that did not become a rule.
type Rejection struct {
	LineNo int // 1-based line number in the input text
	Line   string
	Err    error
}

// Set is a parsed ACL set.
type Set struct {
	Name       string
	Context    dialect.Context
	Rules      []*acl.Rule // ascending sequence id
	Rejections []Rejection

	codec dialect.Codec
}

// matchCounter strips the hit counters appended by "show"/"display"
// commands, e.g. "(12 matches)" or "(3 times matched)".
var matchCounter = regexp.MustCompile(`\s*\(\d+ (matches|match|times matched)\)\s*$`)

// headerPrefixes start lines that describe the set rather than an entry.
var headerPrefixes = []string{
	"ipv4 access-list ", "ipv6 access-list ", "ip access-list ",
	"acl number ", "acl ipv6 number ", "acl name ", "acl ipv6 name ",
	"basic acl ", "advanced acl ", "basic ipv6 acl ", "advanced ipv6 acl ",
	"acl's step ", "description ",
}

// ruleText returns the rule portion of a raw output line, or "" when the
// line carries no rule.
func ruleText(raw string) string {
	line := strings.TrimSpace(matchCounter.ReplaceAllString(raw, ""))
	if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#") {
		return ""
	}
	lower := strings.ToLower(line)
	for _, p := range headerPrefixes {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	switch lower {
	case "end", "exit", "quit", "return":
		return ""
	}
	f := strings.Fields(lower)
	if len(f) >= 2 && f[1] == "remark" {
		return ""
	}
	if len(f) >= 3 && f[0] == "rule" && f[2] == "remark" {
		return ""
	}
	return line
}

// Parse parses every rule line in text. Only a context without a codec
// is an error; bad lines end up in Set.Rejections.
func Parse(ctx dialect.Context, name, text string) (*Set, error) {
	codec, err := dialect.New(ctx)
	if err != nil {
		return nil, err
	}
	s := &Set{Name: name, Context: ctx, codec: codec}
	firstLine := make(map[uint64]int)

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := ruleText(raw)
		if line == "" {
			continue
		}
		r, err := codec.Parse(line)
		if err == nil {
			if prev, dup := firstLine[r.SequenceID]; dup {
				err = acl.WithLine(acl.Errorf(acl.MalformedSequenceID, -1,
					[]string{strconv.FormatUint(r.SequenceID, 10)},
					"duplicate sequence id, first defined on line %d", prev), line)
			}
		}
		if err != nil {
			slog.Warn("skipping acl line", "acl", name, "dialect", ctx.Dialect, "line_no", lineNo, "line", line, "err", err)
			s.Rejections = append(s.Rejections, Rejection{LineNo: lineNo, Line: line, Err: err})
			continue
		}
		firstLine[r.SequenceID] = lineNo
		s.Rules = append(s.Rules, r)
	}
	sort.SliceStable(s.Rules, func(i, j int) bool {
		return s.Rules[i].SequenceID < s.Rules[j].SequenceID
	})
	slog.Debug("parsed acl set", "acl", name, "marker", ctx.Marker, "rules", len(s.Rules), "rejected", len(s.Rejections))
	return s, nil
}

// Codec returns the codec the set was parsed with.
func (s *Set) Codec() dialect.Codec {
	return s.codec
}

// Lookup returns the rule with the given sequence id.
func (s *Set) Lookup(seq uint64) *acl.Rule {
	i := sort.Search(len(s.Rules), func(i int) bool { return s.Rules[i].SequenceID >= seq })
	if i < len(s.Rules) && s.Rules[i].SequenceID == seq {
		return s.Rules[i]
	}
	return nil
}

// Render returns the entry lines of the set in sequence order.
func (s *Set) Render() ([]string, error) {
	out := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		line, err := s.codec.Render(r)
		if err != nil {
			return nil, fmt.Errorf("%s rule %d: %w", s.Name, r.SequenceID, err)
		}
		out = append(out, line)
	}
	return out, nil
}

// Input names one raw ACL set for ParseAll.
type Input struct {
	Name   string
	Marker string
	Text   string
}

// ParseAll parses independent sets concurrently, at most limit at a time
// (limit <= 0 means 8). Results keep the order of inputs. An unknown
// marker fails the whole call.
func ParseAll(ctx context.Context, inputs []Input, limit int) ([]*Set, error) {
	if limit <= 0 {
		limit = 8
	}
	sets := make([]*Set, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dctx, err := dialect.Select(in.Marker)
			if err != nil {
				return fmt.Errorf("acl %s: %w", in.Name, err)
			}
			s, err := Parse(dctx, in.Name, in.Text)
			if err != nil {
				return fmt.Errorf("acl %s: %w", in.Name, err)
			}
			sets[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Change is one command of a Diff.
type Change struct {
	Op      string // "delete" or "add"
	Seq     uint64
	Command string
}

// Diff returns the commands that move a device from one version of a set
// to another.
// Removed and modified rules are deleted first, then new and modified
// rules are added, each group in sequence order. Either set may be nil.
func Diff(from, to *Set) ([]Change, error) {
	var oldRules, newRules []*acl.Rule
	if from != nil {
		oldRules = from.Rules
	}
	if to != nil {
		newRules = to.Rules
	}
	oldBySeq := make(map[uint64]*acl.Rule, len(oldRules))
	for _, r := range oldRules {
		oldBySeq[r.SequenceID] = r
	}
	newBySeq := make(map[uint64]*acl.Rule, len(newRules))
	for _, r := range newRules {
		newBySeq[r.SequenceID] = r
	}

	var changes []Change
	for _, r := range oldRules {
		if nr, ok := newBySeq[r.SequenceID]; ok && reflect.DeepEqual(nr, r) {
			continue
		}
		changes = append(changes, Change{Op: "delete", Seq: r.SequenceID, Command: from.codec.RenderDelete(r)})
	}
	for _, r := range newRules {
		if prev, ok := oldBySeq[r.SequenceID]; ok && reflect.DeepEqual(prev, r) {
			continue
		}
		line, err := to.codec.Render(r)
		if err != nil {
			return nil, fmt.Errorf("%s rule %d: %w", to.Name, r.SequenceID, err)
		}
		changes = append(changes, Change{Op: "add", Seq: r.SequenceID, Command: line})
	}
	return changes, nil
}
