package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/util"
)

var (
	planBefore string
	planAfter  string
)

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Show the commands a change would send, without a device",
	Long: `Plan the change from a before tree to an after tree.

With a path only that node is planned; otherwise every path present in
either tree is. Nothing is sent to any device.

Examples:
  newtcli plan interfaces/interface[Loopback45]/config --after lo45.yaml
  newtcli plan --before running.yaml --after intended.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		before, err := loadSnapshot(planBefore)
		if err != nil {
			return err
		}
		after, err := loadSnapshot(planAfter)
		if err != nil {
			return err
		}

		var paths []model.Path
		if len(args) == 1 {
			p, err := model.ParsePath(args[0])
			if err != nil {
				return err
			}
			paths = []model.Path{p}
		} else {
			paths, err = unionPaths(before, after)
			if err != nil {
				return err
			}
		}

		start := time.Now()
		util.WithOperation("plan").Debugf("Planning %d paths", len(paths))
		d := dispatch.NewDispatcher(reg, offline("plan"))
		results := make([]planEntry, 0, len(paths))
		for _, p := range paths {
			res, err := d.Prepare(dispatch.WriteRequest{Path: p, Before: before, After: after})
			results = append(results, planEntry{Path: p.String(), Result: res, Err: err})

			event := audit.NewEvent(currentUser(), "", audit.OpPlan).WithPath(p.String()).WithDryRun(true)
			if res != nil {
				event.WithDecision(res.Variant, res.Decision)
			}
			if err != nil {
				event.WithError(err)
			} else {
				event.WithSuccess()
			}
			logEvent(event.WithDuration(time.Since(start)))
		}

		if wantJSON() {
			return printJSON(results)
		}
		return printPlan(results)
	},
}

func init() {
	planCmd.Flags().StringVar(&planBefore, "before", "", "YAML tree of the current state (default empty)")
	planCmd.Flags().StringVar(&planAfter, "after", "", "YAML tree of the intended state (default empty)")
}

type planEntry struct {
	Path   string           `json:"path"`
	Result *dispatch.Result `json:"result,omitempty"`
	Err    error            `json:"-"`
}

func (e planEntry) MarshalJSON() ([]byte, error) {
	type entry planEntry
	out := struct {
		entry
		Error string `json:"error,omitempty"`
	}{entry: entry(e)}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

func printPlan(results []planEntry) error {
	t := cli.NewTable("PATH", "VARIANT", "DECISION", "RATIONALE")
	failed := 0
	for _, e := range results {
		if e.Err != nil {
			failed++
			t.Row(e.Path, "-", red("error"), e.Err.Error())
			continue
		}
		t.Row(e.Path, e.Result.Variant, cli.DecisionLabel(string(e.Result.Decision.Kind)), e.Result.Decision.Rationale)
	}
	t.Flush()

	for _, e := range results {
		if e.Err != nil || len(e.Result.Commands) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", bold(e.Path))
		printCommands(e.Result.Commands)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d paths failed to plan", failed, len(results))
	}
	return nil
}

func printCommands(cmds []string) {
	for _, c := range cmds {
		fmt.Println("  " + c)
	}
}

// unionPaths returns every path in either tree, sorted.
func unionPaths(trees ...*model.Tree) ([]model.Path, error) {
	seen := map[string]bool{}
	var keys []string
	for _, t := range trees {
		for _, k := range t.Paths() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	out := make([]model.Path, 0, len(keys))
	for _, k := range keys {
		p, err := model.ParsePath(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
