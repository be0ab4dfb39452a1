package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/session"
	"github.com/newtron-network/newtcli/pkg/util"
)

var readSnapshot string

var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Read a configuration node from each device",
	Long: `Read the node at <path> from every -d device in parallel.

The bundle for the path's schema picks the variant, runs its show command
and extracts the fields. A snapshot file supplies keys and sibling nodes
that variant selection may look at.

Examples:
  newtcli -d leaf1 -d leaf2 read interfaces/interface[Loopback45]/config
  newtcli -d leaf1 read system/config --json`,
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
		snap, err := loadSnapshot(readSnapshot)
		if err != nil {
			return err
		}

		nodes := make([]model.ConfigNode, len(hosts))
		errs := make([]error, len(hosts))
		var g errgroup.Group
		for i, host := range hosts {
			g.Go(func() error {
				nodes[i], errs[i] = readOne(cmd.Context(), reg, host, path, snap)
				return nil
			})
		}
		g.Wait()

		if wantJSON() {
			out := make(map[string]any, len(hosts))
			for i, host := range hosts {
				if errs[i] != nil {
					out[host] = map[string]string{"error": errs[i].Error()}
				} else {
					out[host] = nodes[i]
				}
			}
			if err := printJSON(out); err != nil {
				return err
			}
			return firstError(hosts, errs)
		}

		for i, host := range hosts {
			fmt.Printf("%s %s\n", bold(host), path)
			if errs[i] != nil {
				fmt.Printf("  %s %v\n", red("error:"), errs[i])
				continue
			}
			printNode(nodes[i], "  ")
		}
		return firstError(hosts, errs)
	},
}

func init() {
	readCmd.Flags().StringVar(&readSnapshot, "snapshot", "", "YAML tree used for variant selection")
}

func readOne(ctx context.Context, reg *dispatch.Registry, host string, path model.Path, snap model.Snapshot) (model.ConfigNode, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	event := audit.NewEvent(currentUser(), host, audit.OpRead).WithPath(path.String())

	tx, sess, err := connect(ctx, host)
	if err != nil {
		logEvent(event.WithError(err).WithDuration(time.Since(start)))
		return model.ConfigNode{}, err
	}
	defer sess.Close()

	var sink transcriptSink
	d := dispatch.NewDispatcher(reg, tx, dispatch.WithDevice(host), dispatch.WithTranscriptSink(sink.add))
	node, err := d.Read(ctx, path, snap)
	event.WithTranscripts(sink.all()).WithDuration(time.Since(start))
	if err != nil {
		logEvent(event.WithError(err))
		return model.ConfigNode{}, err
	}
	logEvent(event.WithSuccess())
	return node, nil
}

// transcriptSink collects transcripts for the audit event.
type transcriptSink struct {
	mu  sync.Mutex
	trs []*session.Transcript
}

func (s *transcriptSink) add(tr *session.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trs = append(s.trs, tr)
}

func (s *transcriptSink) all() []*session.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*session.Transcript(nil), s.trs...)
}

// loadSnapshot reads a YAML tree; an empty name is the empty tree.
func loadSnapshot(name string) (*model.Tree, error) {
	if name == "" {
		return model.EmptyTree(), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	t, err := model.LoadTree(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func printNode(n model.ConfigNode, prefix string) {
	if !n.Exists() {
		fmt.Println(prefix + cli.Dim("(absent)"))
		return
	}
	t := cli.NewTable("FIELD", "VALUE").WithPrefix(prefix)
	for _, f := range n.Fields() {
		v, _ := n.Get(f)
		t.Row(f, formatValue(v))
	}
	t.Flush()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []any, map[string]any, model.ConfigNode:
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return flowYAML(b)
	}
	return fmt.Sprint(v)
}

// flowYAML folds a small YAML document onto one line.
func flowYAML(b []byte) string {
	var n yaml.Node
	if err := yaml.Unmarshal(b, &n); err != nil || len(n.Content) == 0 {
		return string(b)
	}
	setFlow(&n)
	out, err := yaml.Marshal(n.Content[0])
	if err != nil {
		return string(b)
	}
	return string(trimNewline(out))
}

func setFlow(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style |= yaml.FlowStyle
	}
	for _, c := range n.Content {
		setFlow(c)
	}
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b
}

func logEvent(e *audit.Event) {
	if err := audit.Log(e); err != nil {
		util.Warnf("Audit log: %v", err)
	}
}

// firstError summarizes per-device failures.
func firstError(hosts []string, errs []error) error {
	failed := 0
	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = fmt.Errorf("%s: %w", hosts[i], err)
		}
		failed++
	}
	if failed > 1 {
		return fmt.Errorf("%d of %d devices failed; first: %w", failed, len(hosts), first)
	}
	return first
}
