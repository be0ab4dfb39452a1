package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcli/pkg/render"
)

var (
	renderData string
	renderSet  map[string]string
)

var renderCmd = &cobra.Command{
	Use:   "render <template-file|->",
	Short: "Render a command template",
	Long: `Render a command template against variables and print the device commands.

Variables come from a YAML mapping (--data) and from --set name=value
pairs; --set values are parsed as YAML scalars, so --set mtu=9000 is a
number. The template is read from stdin when the file is "-".

Examples:
  newtcli render create.tmpl --data lo45.yaml
  echo 'interface loopback {$num}' | newtcli render - --set num=45`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readInput(args[0])
		if err != nil {
			return err
		}
		tmpl, err := render.Parse(args[0], string(src))
		if err != nil {
			return err
		}
		ctx, err := renderContext(renderData, renderSet)
		if err != nil {
			return err
		}

		lines := render.Lines(tmpl.Render(ctx))
		if wantJSON() {
			if lines == nil {
				lines = []string{}
			}
			return printJSON(lines)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderData, "data", "", "YAML file of template variables")
	renderCmd.Flags().StringToStringVar(&renderSet, "set", nil, "Set a variable (name=value, repeatable)")
}

// renderContext merges the data file with --set overrides.
func renderContext(dataFile string, set map[string]string) (render.Context, error) {
	ctx := render.Context{}
	if dataFile != "" {
		b, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		var data map[string]any
		if err := yaml.Unmarshal(b, &data); err != nil {
			return nil, fmt.Errorf("%s: %w", dataFile, err)
		}
		for k, v := range data {
			ctx[k] = v
		}
	}
	for k, raw := range set {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		ctx[k] = v
	}
	return ctx, nil
}

// readInput reads a file, or stdin for "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return b, nil
}
