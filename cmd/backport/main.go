package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsmith/backport/internal/admonition"
	"github.com/docsmith/backport/internal/backport"
	"github.com/docsmith/backport/internal/config"
	"github.com/docsmith/backport/internal/git"
	"github.com/docsmith/backport/internal/patch"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	playbookName string
	latestName   string
	logLevel     string
	logFormat    string
	dryRun       bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "backport",
	Short: "Backport staged documentation changes into older version trees",
	Long: `backport mirrors staged changes from the "latest" documentation tree into
one or more older version trees declared in the site playbook.

Files missing from a version tree are copied; files already present receive
a patch synthesized from the difference between the two trees. Results are
left unstaged for operator review.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync [version...]",
	Short: "Copy or patch staged files into the target version trees",
	Long: `Sync discovers the declared version trees from the playbook, lists the
files staged under the latest tree, and for every (file, version) pair either
copies the file (destination absent) or patches it in place (destination
present). A patch that does not apply cleanly leaves a .rej file beside the
destination and the run continues.

With no arguments every discovered version is targeted; explicit version
arguments are validated against the playbook before any file is touched.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSync,
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the version trees discovered from the playbook",
	RunE:  runVersions,
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Rewrite admonition blocks into markdown alerts (pandoc JSON filter)",
	Long: `Filter reads a pandoc JSON document on stdin, rewrites admonition Divs
(note, tip, important, warning, caution) into GitHub-style alert blockquotes
and writes the document to stdout. Wire it into a conversion pipeline as:

  pandoc -f asciidoc -t json in.adoc | backport filter | pandoc -f json -t gfm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return admonition.Run(os.Stdin, os.Stdout)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backport %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&playbookName, "playbook", config.DefaultPlaybookName, "playbook file in the project root")
	rootCmd.PersistentFlags().StringVar(&latestName, "latest", config.DefaultLatestName, "path segment of the latest version tree")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Sync command flags
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	settings, err := loadSettings(logger)
	if err != nil {
		return err
	}

	gitClient := git.NewShellClient(settings.ProjectRoot)
	patchTool := patch.NewTextTool()

	runner := backport.New(settings, gitClient, patchTool, logger, os.Stdout, dryRun)

	if _, err := runner.Run(ctx, args); err != nil {
		logger.Error("backport failed", "error", err)
		return err
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	settings, err := loadSettings(logger)
	if err != nil {
		return err
	}

	pb, err := config.Load(settings.PlaybookPath())
	if err != nil {
		return err
	}

	latestRoot, versions := pb.VersionRoots(settings.LatestName)
	if latestRoot != "" {
		fmt.Printf("%s\t%s\n", settings.LatestName, latestRoot)
	}
	for _, v := range versions {
		fmt.Printf("%s\t%s\n", v.ID, v.Root)
	}
	return nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// loadSettings builds the runner settings from the working directory and
// the global flags, validated once up front.
func loadSettings(logger *slog.Logger) (config.Settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	settings := config.Settings{
		ProjectRoot:  cwd,
		PlaybookName: playbookName,
		LatestName:   latestName,
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}

	logger.Debug("settings loaded",
		"project_root", settings.ProjectRoot,
		"playbook", settings.PlaybookName,
		"latest", settings.LatestName)

	return settings, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
