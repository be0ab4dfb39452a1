// Newtcli - CLI Translation Engine
//
// A CLI tool that drives network devices over their text CLI using
// adapter bundles:
//   - Desired state is a tree of configuration nodes keyed by path
//   - Bundles map each path to device show commands and config templates
//   - Dry-run by default (preview commands, require -x to execute)
//   - Audit logging of every read and write
//
// Usage:
//
//	newtcli -d <host> [-d <host>...] <verb> <path> [flags] [-x]
//
// Examples:
//
//	newtcli -d leaf1 read interfaces/interface[Loopback45]/config
//	newtcli -d leaf1 write interfaces/interface[Loopback45]/config --after lo45.yaml
//	newtcli -d leaf1 write interfaces/interface[Loopback45]/config --after lo45.yaml -x
//	newtcli plan interfaces/interface[Loopback45]/config --before old.yaml --after new.yaml
//	newtcli render create.tmpl --data vars.yaml
//	show run | newtcli extract '^\s+mtu (?P<mtu>\d+)$' --type mtu=int
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/newtcli/pkg/adapter"
	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/session"
	"github.com/newtron-network/newtcli/pkg/settings"
	"github.com/newtron-network/newtcli/pkg/util"
	"github.com/newtron-network/newtcli/pkg/version"
)

var (
	// Global context flags
	devices []string // -d, --device (repeatable)

	// Global option flags
	bundleDir   string
	sshUser     string
	sshKey      string
	sshPort     int
	sshExec     string
	lockRedis   string
	metricsFile string
	verbose     bool
	logJSON     bool
	jsonOutput  bool
	executeMode bool

	// Global state
	userSettings *settings.Settings
	auditLogger  audit.Logger
	metricsReg   *prometheus.Registry
	metrics      *session.Metrics
	locker       *session.RedisLocker

	passwordOnce sync.Once
	password     string
	passwordErr  error
)

func main() {
	err := rootCmd.Execute()
	if ferr := finish(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "newtcli",
	Short:             "CLI Translation Engine",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Newtcli reads and writes device configuration through the device's own CLI.

Adapter bundles map configuration paths to show commands, extraction
patterns and config templates. Write commands preview changes by default;
use -x to execute.

  newtcli -d <host> <verb> <path> [flags] [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Set log level: settings default, debug on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel(userSettings.GetLogLevel())
		}
		if logJSON {
			util.SetJSONFormat()
		}

		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Apply defaults from settings
		if bundleDir == "" {
			bundleDir = userSettings.GetBundleDir()
		}
		if sshUser == "" {
			sshUser = userSettings.SSHUser
		}
		if sshKey == "" {
			sshKey = userSettings.SSHKey
		}
		if lockRedis == "" {
			lockRedis = userSettings.LockRedis
		}

		if metricsFile != "" {
			metricsReg = prometheus.NewRegistry()
			metrics = session.NewMetrics(metricsReg)
		}
		if lockRedis != "" {
			locker = session.DialRedisLocker(lockRedis)
		}

		auditLogger, err = audit.Open(userSettings.AuditBackend, userSettings.GetAuditLog())
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return finish()
	},
}

// finish releases the run's audit logger and locker and writes metrics.
// Cobra skips post-run hooks on error, so main calls it again; later calls
// are no-ops.
func finish() error {
	if auditLogger != nil {
		auditLogger.Close()
		auditLogger = nil
	}
	if locker != nil {
		locker.Close()
		locker = nil
	}
	if metricsReg != nil {
		reg := metricsReg
		metricsReg, metrics = nil, nil
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

func init() {
	// Context flags
	rootCmd.PersistentFlags().StringArrayVarP(&devices, "device", "d", nil, "Device host (repeatable)")

	// Option flags (global)
	rootCmd.PersistentFlags().StringVarP(&bundleDir, "bundles", "B", "", "Adapter bundle directory")
	rootCmd.PersistentFlags().StringVar(&sshUser, "user", "", "SSH user")
	rootCmd.PersistentFlags().StringVar(&sshKey, "key", "", "SSH private key file")
	rootCmd.PersistentFlags().IntVar(&sshPort, "port", 22, "SSH port")
	rootCmd.PersistentFlags().StringVar(&sshExec, "exec", "", "Command to run per transaction (e.g. vtysh); default is the login shell")
	rootCmd.PersistentFlags().StringVar(&lockRedis, "lock-redis", "", "Redis address for session locks")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write transaction metrics to this file on exit")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs to stderr as JSON")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")
	rootCmd.PersistentFlags().StringVar(&jqQuery, "jq", "", "Filter JSON output with a jq expression (implies --json)")

	addWriteFlags(writeCmd)

	rootCmd.AddGroup(
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "offline", Title: "Offline Tools:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{readCmd, writeCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{planCmd, renderCmd, extractCmd} {
		cmd.GroupID = "offline"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("newtcli")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (no version info linked)\n", tool)
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

// ============================================================================
// Context Helpers
// ============================================================================

// requireDevices ensures at least one device is specified via -d
func requireDevices() ([]string, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("device required: use -d <host> flag")
	}
	return devices, nil
}

// loadRegistry loads every bundle in the bundle directory and builds the
// registry shared by all dispatchers of this run.
func loadRegistry() (*dispatch.Registry, error) {
	bundles, err := adapter.LoadDir(bundleDir)
	if err != nil {
		return nil, fmt.Errorf("loading bundles: %w", err)
	}
	if len(bundles) == 0 {
		return nil, fmt.Errorf("no adapter bundles in %s", bundleDir)
	}
	reg, err := adapter.Build(bundles...)
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}
	util.Debugf("Loaded %d adapter bundles from %s", len(bundles), bundleDir)
	return reg, nil
}

// sshPassword returns the password to use when no key is configured. It
// prompts at most once per run.
func sshPassword() (string, error) {
	if sshKey != "" {
		return "", nil
	}
	passwordOnce.Do(func() {
		if p, ok := os.LookupEnv("NEWTCLI_PASSWORD"); ok {
			password = p
			return
		}
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			passwordErr = fmt.Errorf("no SSH key or NEWTCLI_PASSWORD and stdin is not a terminal")
			return
		}
		fmt.Fprintf(os.Stderr, "Password for %s: ", sshUser)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			passwordErr = fmt.Errorf("reading password: %w", err)
			return
		}
		password = string(b)
	})
	return password, passwordErr
}

// connect opens an SSH session to host and wraps it in a transactor with
// the run's locker and metrics. The caller closes the returned session.
func connect(ctx context.Context, host string) (*session.Transactor, session.Session, error) {
	if sshUser == "" {
		return nil, nil, fmt.Errorf("SSH user required: use --user or 'newtcli settings set ssh_user <name>'")
	}
	pw, err := sshPassword()
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.DialSSH(ctx, session.SSHConfig{
		Host:     host,
		Port:     sshPort,
		User:     sshUser,
		Password: pw,
		KeyFile:  sshKey,
		Exec:     sshExec,
	})
	if err != nil {
		return nil, nil, err
	}
	return session.NewTransactor(sess, transactorOptions()...), sess, nil
}

// offline returns a transactor over a recorder that answers nothing, for
// commands that only plan.
func offline(name string) *session.Transactor {
	return session.NewTransactor(session.NewRecorder(name), transactorOptions()...)
}

func transactorOptions() []session.Option {
	var opts []session.Option
	if metrics != nil {
		opts = append(opts, session.WithMetrics(metrics))
	}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker, session.DefaultHolder(), session.DefaultLockTTL))
	}
	return opts
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute as a local flag.
func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
}

// printDryRunNotice reminds the user that nothing was sent.
func printDryRunNotice() {
	if !executeMode {
		fmt.Println("\n" + yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
