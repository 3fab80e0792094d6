package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	aclcli "github.com/psaab/aclc/pkg/cli"
	"github.com/psaab/aclc/pkg/config"
	"github.com/psaab/aclc/pkg/engine"
	"github.com/psaab/aclc/pkg/grpcapi"
)

// localEngine builds an engine from --config, or with no ACLs.
func localEngine(c *cli.Context) (*engine.Engine, error) {
	opts := engine.Options{}
	if file := c.String("config"); file != "" {
		cfg, err := config.Load(file)
		if err != nil {
			return nil, err
		}
		opts.ACLs = cfg.ACLMap()
	}
	return engine.New(opts)
}

// backend returns the remote client when --addr is set and a local
// engine otherwise. The returned func releases it.
func backend(c *cli.Context) (aclcli.Backend, func(), error) {
	if addr := c.String("addr"); addr != "" {
		client, err := grpcapi.Dial(addr)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}
	eng, err := localEngine(c)
	if err != nil {
		return nil, nil, err
	}
	return aclcli.NewLocal(eng), func() {}, nil
}

var targetFlags = []cli.Flag{
	&cli.StringFlag{Name: "acl", Usage: "configured ACL name"},
	&cli.StringFlag{Name: "marker", Aliases: []string{"m"}, Usage: "set marker, e.g. \"ipv4 access-list\", 3000, cubro"},
}

func target(c *cli.Context, aclFlag, markerFlag string) (grpcapi.Target, error) {
	t := grpcapi.Target{ACL: c.String(aclFlag), Marker: c.String(markerFlag)}
	switch {
	case t.ACL != "" && t.Marker != "":
		return t, fmt.Errorf("--%s and --%s are mutually exclusive", aclFlag, markerFlag)
	case t.ACL == "" && t.Marker == "":
		return t, fmt.Errorf("--%s or --%s required", aclFlag, markerFlag)
	}
	return t, nil
}
