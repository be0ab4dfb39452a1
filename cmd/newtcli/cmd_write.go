package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/util"
)

var (
	writeBefore    string
	writeAfter     string
	writeNoConfirm bool
)

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Bring a configuration node to its intended state",
	Long: `Write the node at <path> on every -d device.

The intended state comes from the --after tree; a path missing from it is
deleted. The current state comes from --before, or is read from the device
when --before is not given. Without -x the planned commands are printed and
nothing is sent.

After executing, the node is read back and compared with the intended
state unless --no-confirm is given.

Examples:
  newtcli -d leaf1 write interfaces/interface[Loopback45]/config --after lo45.yaml
  newtcli -d leaf1 write interfaces/interface[Loopback45]/config --after lo45.yaml -x
  newtcli -d leaf1 write interfaces/interface[Loopback45]/config -x   # delete`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := model.ParsePath(args[0])
		if err != nil {
			return err
		}
		hosts, err := requireDevices()
		if err != nil {
			return err
		}
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		after, err := loadSnapshot(writeAfter)
		if err != nil {
			return err
		}
		var before *model.Tree
		if writeBefore != "" {
			if before, err = loadSnapshot(writeBefore); err != nil {
				return err
			}
		}

		results := make([]*dispatch.Result, len(hosts))
		errs := make([]error, len(hosts))
		var g errgroup.Group
		for i, host := range hosts {
			g.Go(func() error {
				results[i], errs[i] = writeOne(cmd.Context(), reg, host, path, before, after)
				return nil
			})
		}
		g.Wait()

		if wantJSON() {
			out := make(map[string]any, len(hosts))
			for i, host := range hosts {
				entry := map[string]any{"result": results[i]}
				if errs[i] != nil {
					entry["error"] = errs[i].Error()
				}
				out[host] = entry
			}
			if err := printJSON(out); err != nil {
				return err
			}
			return firstError(hosts, errs)
		}

		for i, host := range hosts {
			printWriteResult(host, results[i], errs[i])
		}
		printDryRunNotice()
		return firstError(hosts, errs)
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeBefore, "before", "", "YAML tree of the current state (default: read from device)")
	writeCmd.Flags().StringVar(&writeAfter, "after", "", "YAML tree of the intended state (default empty)")
	writeCmd.Flags().BoolVar(&writeNoConfirm, "no-confirm", false, "Skip the read-back after executing")
}

// writeOne plans and, with -x, executes the write on one device. A dry run
// with --before never connects.
func writeOne(ctx context.Context, reg *dispatch.Registry, host string, path model.Path, before, after *model.Tree) (*dispatch.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	event := audit.NewEvent(currentUser(), host, audit.OpWrite).WithPath(path.String()).WithDryRun(!executeMode)
	finish := func(res *dispatch.Result, err error) (*dispatch.Result, error) {
		if res != nil {
			event.WithDecision(res.Variant, res.Decision).WithTranscripts(res.Transcripts)
		}
		if err != nil {
			event.WithError(err)
		} else {
			event.WithSuccess()
		}
		logEvent(event.WithDuration(time.Since(start)))
		return res, err
	}

	opts := []dispatch.DispatcherOption{dispatch.WithDevice(host), dispatch.WithConfirm(!writeNoConfirm)}
	if before != nil && !executeMode {
		d := dispatch.NewDispatcher(reg, offline(host), opts...)
		return finish(d.Prepare(dispatch.WriteRequest{Path: path, Before: before, After: after}))
	}

	tx, sess, err := connect(ctx, host)
	if err != nil {
		return finish(nil, err)
	}
	defer sess.Close()
	d := dispatch.NewDispatcher(reg, tx, opts...)

	if before == nil {
		current, err := d.Read(ctx, path, after)
		if err != nil {
			return finish(nil, fmt.Errorf("reading current state: %w", err))
		}
		util.WithPath(host, path.String()).Debugf("Current state has %d fields", current.Len())
		before = after.With(path, current)
	}

	req := dispatch.WriteRequest{Path: path, Before: before, After: after}
	if !executeMode {
		return finish(d.Prepare(req))
	}
	util.WithOperation("write").WithField("device", host).Infof("Executing %s", path)
	return finish(d.Write(ctx, req))
}

func printWriteResult(host string, res *dispatch.Result, err error) {
	fmt.Printf("%s %s\n", bold(host), writePath(res))
	if res != nil && res.Variant != "" {
		fmt.Printf("  Variant:  %s\n", res.Variant)
	}
	if res != nil && res.Decision.Kind != "" {
		fmt.Printf("  Decision: %s (%s)\n", cli.DecisionLabel(string(res.Decision.Kind)), res.Decision.Rationale)
	}
	if res != nil && len(res.Commands) > 0 {
		fmt.Println("  Commands:")
		for _, c := range res.Commands {
			fmt.Println("    " + c)
		}
	}
	switch {
	case err != nil:
		fmt.Printf("  %s %v\n", red("error:"), err)
	case executeMode && res != nil && res.Confirmed:
		fmt.Println("  " + green("Changes applied and confirmed."))
	case executeMode && res != nil && len(res.Commands) > 0:
		fmt.Println("  " + green("Changes applied."))
	}
}

func writePath(res *dispatch.Result) string {
	if res == nil {
		return ""
	}
	return res.Path.String()
}
