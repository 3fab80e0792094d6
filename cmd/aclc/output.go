package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

// output writes v as JSON or YAML, or calls text for the text format.
func output(c *cli.Context, v any, text func(w io.Writer)) error {
	w := c.App.Writer
	switch format := c.String("format"); format {
	case "text", "":
		text(w)
		return nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "yaml":
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// toYAML goes through the JSON encoding so the acl types' JSON forms are
// kept, as is their field order.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var list []yaml.MapSlice
		if lerr := yaml.Unmarshal(data, &list); lerr != nil {
			return nil, err
		}
		return yaml.Marshal(list)
	}
	return yaml.Marshal(doc)
}
