// aclcd is the ACL translation daemon.
//
// It serves the dialect translator over gRPC and an HTTP API, records
// rejected ACL lines, and reloads its ACL table on SIGHUP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/psaab/aclc/pkg/config"
	"github.com/psaab/aclc/pkg/daemon"
	"github.com/psaab/aclc/pkg/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "check" {
		file := daemon.DefaultConfigFile
		if len(os.Args) > 2 {
			file = os.Args[2]
		}
		if _, err := config.Load(file); err != nil {
			fmt.Fprintf(os.Stderr, "aclcd: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("configuration check succeeds")
		return
	}

	configFile := flag.String("config", daemon.DefaultConfigFile, "configuration file path")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Set up structured logging; the level and syslog forwarding follow
	// the configuration once it is loaded.
	level := new(slog.LevelVar)
	if *debug {
		level.Set(slog.LevelDebug)
	}
	forward := logging.NewForwardHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(slog.New(forward))

	d := daemon.New(daemon.Options{
		ConfigFile: *configFile,
		Debug:      *debug,
		Level:      level,
		Forward:    forward,
	})

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "aclcd: %v\n", err)
		os.Exit(1)
	}
}
