package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/psaab/aclc/pkg/acl"
	aclcli "github.com/psaab/aclc/pkg/cli"
	"github.com/psaab/aclc/pkg/config"
	"github.com/psaab/aclc/pkg/dialect"
)

const requestTimeout = 10 * time.Second

// ruleText joins the positional arguments into one ACL entry.
func ruleText(c *cli.Context) (string, error) {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("missing rule text")
	}
	return text, nil
}

// readInput reads the file named by the first argument, or stdin for "-"
// or no argument.
func readInput(c *cli.Context, arg int) (string, error) {
	name := c.Args().Get(arg)
	if name == "" || name == "-" {
		r := c.App.Reader
		if r == nil {
			r = os.Stdin
		}
		data, err := io.ReadAll(r)
		return string(data), err
	}
	data, err := os.ReadFile(name)
	return string(data), err
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "parse one ACL entry into the canonical rule",
		ArgsUsage: "RULE...",
		Flags:     targetFlags,
		Action: func(c *cli.Context) error {
			t, err := target(c, "acl", "marker")
			if err != nil {
				return err
			}
			line, err := ruleText(c)
			if err != nil {
				return err
			}
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			r, err := b.Parse(ctx, t, line)
			if err != nil {
				return err
			}
			return output(c, r, func(w io.Writer) {
				data, _ := json.MarshalIndent(r, "", "  ")
				fmt.Fprintln(w, string(data))
			})
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render a canonical rule (JSON) as an ACL entry",
		ArgsUsage: "[FILE|-]",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "delete", Aliases: []string{"d"}, Usage: "render the command removing the rule"},
		}, targetFlags...),
		Action: func(c *cli.Context) error {
			t, err := target(c, "acl", "marker")
			if err != nil {
				return err
			}
			data, err := readInput(c, 0)
			if err != nil {
				return err
			}
			var r acl.Rule
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				return fmt.Errorf("decode rule: %w", err)
			}
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			var line string
			if c.Bool("delete") {
				line, err = b.RenderDelete(ctx, t, &r)
			} else {
				line, err = b.Render(ctx, t, &r)
			}
			if err != nil {
				return err
			}
			return output(c, map[string]string{"line": line}, func(w io.Writer) {
				fmt.Fprintln(w, line)
			})
		},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "translate one ACL entry to another set's dialect",
		ArgsUsage: "RULE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from-acl", Usage: "source ACL name"},
			&cli.StringFlag{Name: "from", Usage: "source set marker"},
			&cli.StringFlag{Name: "to-acl", Usage: "destination ACL name"},
			&cli.StringFlag{Name: "to", Usage: "destination set marker"},
		},
		Action: func(c *cli.Context) error {
			from, err := target(c, "from-acl", "from")
			if err != nil {
				return err
			}
			to, err := target(c, "to-acl", "to")
			if err != nil {
				return err
			}
			line, err := ruleText(c)
			if err != nil {
				return err
			}
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			out, err := b.Convert(ctx, from, to, line)
			if err != nil {
				return err
			}
			return output(c, map[string]string{"line": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
}

func parseSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse-set",
		Usage:     "parse device output of a whole ACL and print it normalized",
		ArgsUsage: "[FILE|-]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "ACL name reported in rejections"},
		}, targetFlags...),
		Action: func(c *cli.Context) error {
			t, err := target(c, "acl", "marker")
			if err != nil {
				return err
			}
			text, err := readInput(c, 0)
			if err != nil {
				return err
			}
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			res, err := b.ParseSet(ctx, t, c.String("name"), text)
			if err != nil {
				return err
			}
			err = output(c, res, func(w io.Writer) {
				for _, line := range res.Rendered {
					fmt.Fprintln(w, line)
				}
				for _, rej := range res.Rejections {
					fmt.Fprintf(c.App.ErrWriter, "line %d: %s: %s\n", rej.LineNo, rej.Kind, rej.Line)
				}
			})
			if err != nil {
				return err
			}
			if n := len(res.Rejections); n > 0 {
				return fmt.Errorf("%d line(s) rejected", n)
			}
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "print the commands turning one version of an ACL into another",
		ArgsUsage: "FROM-FILE TO-FILE",
		Flags:     targetFlags,
		Action: func(c *cli.Context) error {
			if c.String("addr") != "" {
				return fmt.Errorf("diff runs locally, drop --addr")
			}
			if c.Args().Len() != 2 {
				return fmt.Errorf("expected FROM-FILE TO-FILE")
			}
			t, err := target(c, "acl", "marker")
			if err != nil {
				return err
			}
			eng, err := localEngine(c)
			if err != nil {
				return err
			}
			marker := t.Marker
			if t.ACL != "" {
				if marker, err = eng.MarkerFor(t.ACL); err != nil {
					return err
				}
			}
			from, err := readInput(c, 0)
			if err != nil {
				return err
			}
			to, err := readInput(c, 1)
			if err != nil {
				return err
			}
			changes, err := eng.Diff(marker, t.ACL, from, to)
			if err != nil {
				return err
			}
			return output(c, changes, func(w io.Writer) {
				for _, ch := range changes {
					fmt.Fprintln(w, ch.Command)
				}
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show translator status",
		Action: func(c *cli.Context) error {
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			st, err := b.Status(ctx)
			if err != nil {
				return err
			}
			return output(c, st, func(w io.Writer) {
				fmt.Fprintf(w, "Uptime:      %s\n", st.Uptime)
				fmt.Fprintf(w, "ACLs:        %d\n", st.ACLs)
				fmt.Fprintf(w, "Conversions: %d\n", st.Conversions)
				fmt.Fprintf(w, "Rejections:  %d\n", st.Rejections)
			})
		},
	}
}

type markerInfo struct {
	Marker  string `json:"marker"`
	Dialect string `json:"dialect"`
	Family  string `json:"family"`
	Kind    string `json:"kind"`
}

func markersCommand() *cli.Command {
	return &cli.Command{
		Name:  "markers",
		Usage: "list the accepted set markers",
		Action: func(c *cli.Context) error {
			markers := dialect.Markers()
			infos := make([]markerInfo, 0, len(markers))
			for _, m := range markers {
				ctx, _ := dialect.Select(m)
				infos = append(infos, markerInfo{
					Marker:  m,
					Dialect: ctx.Dialect.String(),
					Family:  ctx.Family.String(),
					Kind:    ctx.Kind.String(),
				})
			}
			return output(c, infos, func(w io.Writer) {
				for _, i := range infos {
					fmt.Fprintf(w, "%-18s %s %s %s\n", i.Marker, i.Dialect, i.Family, i.Kind)
				}
			})
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "configuration file tools",
		Subcommands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "validate an aclcd configuration file",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					file := c.Args().First()
					if file == "" {
						return fmt.Errorf("expected FILE")
					}
					cfg, err := config.Load(file)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "configuration check succeeds (%d access-lists)\n", len(cfg.AccessLists))
					return nil
				},
			},
		},
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "start the interactive shell",
		Action: func(c *cli.Context) error {
			b, done, err := backend(c)
			if err != nil {
				return err
			}
			defer done()
			banner := "aclc shell (local)"
			if addr := c.String("addr"); addr != "" {
				banner = "aclc shell, connected to aclcd at " + addr
			}
			return aclcli.New(b, banner).Run()
		},
	}
}
