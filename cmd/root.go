// Package cmd implements the CLI command structure for mdtasks.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nibzard/mdtasks/internal/config"
	"github.com/nibzard/mdtasks/internal/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

// skipConfig marks commands that work without loading configuration.
const skipConfig = "mdtasks/skip-config"

// Run executes the mdtasks CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := defaultApp()
	a.stdout = stdout
	a.stderr = stderr
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mdtasks",
		Short: "mdtasks - a task list kept as a Markdown table",
		Long: `mdtasks manages tasks stored as a Markdown table in a single document.
The document can live in a GitHub repository, a local file, Redis or Azure Tables;
every change is a compare-and-swap write, retried on concurrent modification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				a.logger = logging.NewFromConfig(a.stderr, "info", "text", false, false)
				return nil
			}
			return a.load(cmd)
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newListCmd(a),
		newTodayCmd(a),
		newAddCmd(a),
		newCompleteCmd(a),
		newRemoveCmd(a),
		newClearCompletedCmd(a),
		newSortCmd(a),
		newTimezoneCmd(a),
		newDiffCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newTUICmd(a),
		newTailCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// load reads configuration for cmd and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	cws, err := config.LoadWithSources(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cws.Config
	a.sources = cws

	document := a.cfg.Store
	if id, err := documentIdentity(a.cfg); err == nil {
		document = id.String()
	}
	return a.setupLogger(document)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "mdtasks version %s\n", Version)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	var example bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if example {
				fmt.Fprint(a.stdout, config.ExampleConfig())
				return nil
			}
			for _, f := range a.sources.Files {
				fmt.Fprintf(a.stdout, "# file: %s\n", f)
			}
			for _, key := range config.Keys() {
				value, _ := a.cfg.Value(key)
				if isSecret(key) && value != "" {
					value = "********"
				}
				fmt.Fprintf(a.stdout, "%-24s = %-40q (%s)\n", key, value, a.sources.Sources[key])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "Print an example config file instead")
	return cmd
}

func isSecret(key string) bool {
	return key == "github_token" || key == "azure_connection_string"
}

func newTailCmd(a *app) *cobra.Command {
	var (
		follow bool
		lines  int
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the latest run log for the configured document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := documentIdentity(a.cfg)
			if err != nil {
				return err
			}
			logDir, err := logging.FindLogDir(a.cfg.LogDir, id.String())
			if err != nil {
				return fmt.Errorf("finding log directory: %w", err)
			}
			logPath, err := logging.FindLatestLog(logDir)
			if err != nil {
				return fmt.Errorf("finding latest log: %w", err)
			}
			// The current invocation may have opened a run log of its own.
			if a.runLog != nil && logPath == a.runLog.LogPath {
				logPath = previousLog(logDir, logPath)
			}
			if logPath == "" {
				fmt.Fprintln(a.stdout, "No log files found.")
				return nil
			}

			fmt.Fprintf(a.stdout, "Tailing: %s\n", logPath)
			if follow {
				fmt.Fprintln(a.stdout, "(Ctrl+C to stop)")
			}
			fmt.Fprintln(a.stdout)
			return logging.TailLog(cmd.Context(), a.stdout, logPath, lines, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show (0 = all)")
	return cmd
}

// previousLog returns the newest run log other than current.
func previousLog(logDir, current string) string {
	runs, err := logging.FindLogRuns(logDir)
	if err != nil {
		return ""
	}
	for _, r := range runs {
		if r.Path != current {
			return r.Path
		}
	}
	return ""
}
