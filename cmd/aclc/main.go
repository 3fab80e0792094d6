// aclc translates ACL entries between router CLI dialects.
//
// Translations run in-process, with ACL names taken from an aclcd
// configuration file, or on a running aclcd over gRPC when --addr is set.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "aclc: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "aclc",
		Usage: "translate ACL entries between IOS-XR, Huawei VRP and Cubro",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "aclcd gRPC address (host:port or unix:/path); empty runs locally",
				EnvVars: []string{"ACLC_ADDR"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "aclcd configuration file supplying ACL names for local runs",
				EnvVars: []string{"ACLC_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: text|json|yaml",
				Value:   "text",
			},
		},
		Commands: []*cli.Command{
			parseCommand(),
			renderCommand(),
			convertCommand(),
			parseSetCommand(),
			diffCommand(),
			statusCommand(),
			markersCommand(),
			configCommand(),
			shellCommand(),
		},
	}
}
