package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/extract"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of device reads and writes.

Every read, write and plan is logged with:
  - Timestamp
  - User who ran it
  - Device and path
  - Variant and decision
  - Transcripts of every transaction sent
  - Success/failure status

Examples:
  newtcli audit list --device leaf1
  newtcli audit list --last 24h
  newtcli audit list --operation write --failures
  newtcli audit show <event-id> --json`,
}

var (
	auditDevice    string
	auditUser      string
	auditOperation string
	auditPath      string
	auditVariant   string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			Operation:   auditOperation,
			Path:        auditPath,
			Variant:     auditVariant,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if wantJSON() {
			return printJSON(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "DEVICE", "OPERATION", "PATH", "DECISION", "STATUS")
		for _, event := range events {
			status := cli.Status(event.Success)
			if event.DryRun && event.Success {
				status = yellow("dry-run")
			}
			decision := "-"
			if event.Decision != nil {
				decision = cli.DecisionLabel(string(event.Decision.Kind))
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				event.Operation,
				event.Path,
				decision,
				status,
			)
		}
		t.Flush()
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show one audit event with its transcripts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := audit.Query(audit.Filter{ID: args[0]})
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}
		if len(events) == 0 {
			return fmt.Errorf("audit event %s not found", args[0])
		}
		if wantJSON() {
			return printJSON(events[0])
		}
		printEvent(events[0])
		return nil
	},
}

func printEvent(e *audit.Event) {
	fmt.Printf("Event:     %s\n", e.ID)
	fmt.Printf("Time:      %s\n", e.Timestamp.Format(time.RFC3339))
	fmt.Printf("User:      %s\n", e.User)
	fmt.Printf("Device:    %s\n", e.Device)
	fmt.Printf("Operation: %s\n", e.Operation)
	fmt.Printf("Path:      %s\n", e.Path)
	if e.Variant != "" {
		fmt.Printf("Variant:   %s\n", e.Variant)
	}
	if e.Decision != nil {
		fmt.Printf("Decision:  %s (%s)\n", cli.DecisionLabel(string(e.Decision.Kind)), e.Decision.Rationale)
	}
	fmt.Printf("Status:    %s\n", cli.Status(e.Success))
	if e.Error != "" {
		fmt.Printf("Error:     %s\n", red(e.Error))
	}
	if e.Truncated {
		fmt.Println(cli.Yellow("Transcript output truncated in the log"))
	}
	for _, tr := range e.Transcripts {
		fmt.Printf("\n%s %s %s (%s)\n", bold(string(tr.Kind)), tr.Session, tr.Started.Format("15:04:05.000"), tr.Duration)
		for _, c := range tr.Commands {
			fmt.Println("  > " + c)
		}
		for _, l := range extract.Lines(tr.Output) {
			fmt.Println("  " + cli.Dim(l))
		}
	}
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (read, write, plan)")
	auditListCmd.Flags().StringVar(&auditPath, "path", "", "Filter by path")
	auditListCmd.Flags().StringVar(&auditVariant, "variant", "", "Filter by adapter variant")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 30m)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
}
