package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/extract"
	"github.com/newtron-network/newtcli/pkg/model"
)

var (
	extractTypes   map[string]string
	extractSection string
	extractFirst   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <pattern> [file|-]",
	Short: "Run an extraction pattern against device output",
	Long: `Match a line pattern against device output and print the named groups.

Output is read from the file, or from stdin when omitted or "-". Each
named group is decoded as a string unless --type assigns it a kind.
With --section only the block under the first line matching the header
pattern is searched.

Examples:
  newtcli extract '^\s+mtu (?P<mtu>\d+)$' show-run.txt --type mtu=int
  show run | newtcli extract '^interface (?P<name>\S+)$'
  newtcli extract '^\s+mtu (?P<mtu>\d+)$' run.txt --section '^interface loopback 45$' --first`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := extract.Compile(args[0])
		if err != nil {
			return err
		}
		input := "-"
		if len(args) == 2 {
			input = args[1]
		}
		b, err := readInput(input)
		if err != nil {
			return err
		}
		output := string(b)

		if extractSection != "" {
			header, err := extract.Compile(extractSection)
			if err != nil {
				return fmt.Errorf("section: %w", err)
			}
			block, ok := extract.SectionFor(output, header)
			if !ok {
				return fmt.Errorf("no section matches %q", extractSection)
			}
			output = block
		}

		groups := make(map[string]string, len(p.Groups()))
		for _, g := range p.Groups() {
			groups[g] = "string"
		}
		for g, kind := range extractTypes {
			if !p.HasGroup(g) {
				return fmt.Errorf("--type %s: pattern has no group %q", g, g)
			}
			if !extract.HasKind(kind) {
				return fmt.Errorf("--type %s: unknown kind %q (valid: %v)", g, kind, extract.Kinds())
			}
			groups[g] = kind
		}

		var nodes []model.ConfigNode
		if extractFirst {
			n, ok, err := extract.FindFirst(output, p, extract.NodeProjector(groups))
			if err != nil {
				return err
			}
			if ok {
				nodes = append(nodes, n)
			}
		} else if nodes, err = extract.FindAll(output, p, extract.NodeProjector(groups)); err != nil {
			return err
		}

		if wantJSON() {
			if nodes == nil {
				nodes = []model.ConfigNode{}
			}
			return printJSON(nodes)
		}
		if len(nodes) == 0 {
			fmt.Println("No matches")
			return nil
		}
		printMatches(p.Groups(), nodes)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringToStringVar(&extractTypes, "type", nil, "Decode a group as a kind (group=kind, repeatable)")
	extractCmd.Flags().StringVar(&extractSection, "section", "", "Header pattern of the block to search")
	extractCmd.Flags().BoolVar(&extractFirst, "first", false, "Stop at the first match")
}

func printMatches(groups []string, nodes []model.ConfigNode) {
	if len(groups) == 0 {
		fmt.Printf("%d matching lines\n", len(nodes))
		return
	}
	t := cli.NewTable(append([]string{"#"}, groups...)...)
	for i, n := range nodes {
		row := []string{strconv.Itoa(i + 1)}
		for _, g := range groups {
			v, ok := n.Get(g)
			if !ok {
				row = append(row, cli.Dim("-"))
				continue
			}
			row = append(row, formatValue(v))
		}
		t.Row(row...)
	}
	t.Flush()
}
