package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"coursesync/internal/app"
	"coursesync/internal/config"
	"coursesync/internal/mirror"
	"coursesync/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a CourseSyncApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command, operation string, withProgress bool) (*app.CourseSyncApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opts := app.Options{Verbose: verbose}
	if withProgress {
		opts.Progress = os.Stdout
	}
	a, err := app.NewCourseSyncApp(cmd.Context(), cfg, operation, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:           "coursesync",
	Short:         "Mirror course documents to a local directory",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init COURSE",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		mirrorDir, _ := cmd.Flags().GetString("mirror-dir")
		if mirrorDir == "" {
			mirrorDir = defaults["mirror_dir"]
		}
		cfg := config.NewConfig(defaults["base_dir"], mirrorDir, args[0])
		cfg.Source.URL, _ = cmd.Flags().GetString("source-url")
		if path, _ := cmd.Flags().GetString("source-file"); path != "" {
			cfg.Source = config.SourceConfig{Type: "file", Path: path}
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Course:     %s\n", cfg.Course)
		fmt.Printf("Mirror Dir: %s\n", cfg.MirrorDir)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nEdit the config before syncing:\n%v\n", err)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Course:        %s\n", cfg.Course)
		fmt.Printf("Mirror Dir:    %s\n", cfg.MirrorDir)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Source:        %s %s%s\n", cfg.Source.Type, cfg.Source.URL, cfg.Source.Path)
		if len(cfg.Subscriptions) > 0 {
			fmt.Printf("Subscriptions: %s\n", strings.Join(cfg.Subscriptions, ", "))
		}
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:         %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the snapshot vault",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate encryption keys and verify vault access",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, app.OpVaultInit, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.NeedsPassphrase() {
			passphrase, err = readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if passphrase != confirm {
				return errors.New("passphrases do not match")
			}
		}

		if err := a.InitVault(passphrase); err != nil {
			return err
		}
		fmt.Println("Vault initialized.")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download new and updated documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, _ := cmd.Flags().GetStringSlice("subject")
		onlyChanges, _ := cmd.Flags().GetBool("only-changes")

		a, err := newApp(cmd, app.OpSync, true)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		report, err := a.Sync(cmd.Context(), subjects, onlyChanges)
		if report != nil {
			printSyncReport(report, time.Since(start))
		}
		if err != nil {
			return err
		}
		if errs := report.Errors(); len(errs) > 0 {
			return fmt.Errorf("%d subject(s) failed: %w", len(errs), errors.Join(errs...))
		}
		return nil
	},
}

func printSyncReport(r *mirror.SyncReport, elapsed time.Duration) {
	fmt.Println()
	for _, s := range r.Subjects {
		if s == nil {
			continue
		}
		status := "ok"
		switch {
		case s.Err != nil:
			status = "error: " + s.Err.Error()
		case s.FirstSync:
			status = "first sync"
		}
		var bytes int64
		downloaded := 0
		if s.Download != nil {
			downloaded = len(s.Download.Downloaded)
			bytes = s.Download.Bytes
		}
		fmt.Printf("%-30s %3d file(s) %9s  %s\n", s.Subject, downloaded, humanize.Bytes(uint64(bytes)), status)
		for _, rm := range s.Removals {
			fmt.Printf("    removed remotely: %s\n", rm)
		}
		if s.Download != nil {
			for _, f := range s.Download.Failures {
				fmt.Printf("    failed: %s\n", f)
			}
		}
	}
	for _, name := range r.Locked {
		fmt.Printf("%-30s locked, skipped\n", name)
	}
	fmt.Printf("\nDownloaded %d file(s), %d failed, in %s\n", r.Downloaded(), r.Failed(), elapsed.Truncate(time.Millisecond))
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show remote changes since the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, _ := cmd.Flags().GetStringSlice("subject")

		a, err := newApp(cmd, app.OpCheck, false)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.Check(cmd.Context(), subjects)
		if err != nil {
			return err
		}
		for _, r := range reports {
			switch {
			case r.Err != nil:
				fmt.Printf("%s: %v\n", r.Subject, r.Err)
			case r.Delta == nil:
				fmt.Printf("%s: previous snapshot belongs to another subject\n", r.Subject)
			case r.FirstSync:
				fmt.Printf("%s: never synced (%d files)\n", r.Subject, r.Delta.FullCount())
			case r.Delta.IsEmpty() && len(r.Removals) == 0:
				fmt.Printf("%s: up to date\n", r.Subject)
			default:
				fmt.Printf("%s:\n", r.Subject)
				printTree(r.Delta, "  + ")
				for _, rm := range r.Removals {
					fmt.Printf("  - %s\n", rm)
				}
			}
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List missing or outdated local files",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjects, _ := cmd.Flags().GetStringSlice("subject")

		a, err := newApp(cmd, app.OpStatus, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pending, err := a.Status(cmd.Context(), subjects)
		if err != nil {
			return err
		}
		total := 0
		for _, p := range pending {
			var size int64
			for _, f := range p.Files {
				size += f.Document.Size
			}
			fmt.Printf("%-30s %3d pending  %9s\n", p.Subject, len(p.Files), humanize.Bytes(uint64(size)))
			for _, f := range p.Files {
				fmt.Printf("    %s\n", f.Path)
			}
			total += len(p.Files)
		}
		if total == 0 {
			fmt.Println("Mirror is up to date.")
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, app.OpHistory, false)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt.Valid {
				duration = run.FinishedAt.Time.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %-8s  %s  %4d downloaded  %3d failed  %s\n",
				run.ID,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Status,
				humanize.Time(run.StartedAt),
				run.Downloaded,
				run.Failed,
				duration,
			)
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and restore subject snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list SUBJECT_ID",
	Short: "List stored snapshot versions of a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, app.OpSnapshot, false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Snapshots(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No snapshots stored.")
			return nil
		}
		for _, r := range records {
			origin := "restored"
			if r.SyncRunID.Valid {
				origin = fmt.Sprintf("run #%d", r.SyncRunID.Int64)
			}
			fmt.Printf("v%-4d %s  %5d files  %9s  %s\n",
				r.Version,
				r.TakenAt.Local().Format("2006-01-02 15:04:05"),
				r.FileCount,
				humanize.Bytes(uint64(r.Size)),
				origin,
			)
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show SUBJECT_ID",
	Short: "Print a stored snapshot tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt64("version")

		a, err := newApp(cmd, app.OpSnapshot, false)
		if err != nil {
			return err
		}
		defer a.Close()

		subject, record, err := a.LoadSnapshot(args[0], version)
		if err != nil {
			return err
		}
		fmt.Printf("%s  v%d  %s\n", subject, record.Version, humanize.Bytes(uint64(subject.Size())))
		printTree(subject.Documents, "  ")
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore SUBJECT_ID",
	Short: "Import an archived snapshot from the vault as the new baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt64("version")

		a, err := newApp(cmd, app.OpRestore, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.NeedsPassphrase() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		record, err := a.RestoreSnapshot(args[0], version, passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s as v%d (%d files)\n", record.SubjectName, record.Version, record.FileCount)
		return nil
	},
}

func printTree(c *model.Collection, indent string) {
	for _, f := range c.Files {
		fmt.Printf("%s%s  %s  %s\n", indent, f.Name, humanize.Bytes(uint64(f.Size)), f.Date.Format("2006-01-02 15:04"))
	}
	for _, f := range c.Folders {
		fmt.Printf("%s%s/\n", indent, f.Name)
		printTree(f.Documents, indent+"  ")
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("mirror-dir", "", "Local mirror directory")
	configInitCmd.Flags().String("source-url", "", "URL of the course tree JSON ({course} is replaced)")
	configInitCmd.Flags().String("source-file", "", "Read the course tree from a local file instead")

	// vault subcommands
	vaultCmd.AddCommand(vaultInitCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotShowCmd.Flags().Int64("version", 0, "Snapshot version (0 = latest)")
	snapshotRestoreCmd.Flags().Int64("version", 0, "Archived version (0 = latest)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringSliceP("subject", "s", nil, "Subject IDs to sync (default: subscriptions)")
	syncCmd.Flags().Bool("only-changes", false, "Download only what changed since the last snapshot")
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringSliceP("subject", "s", nil, "Subject IDs to check")
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringSliceP("subject", "s", nil, "Subject IDs to inspect")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(snapshotCmd)
}
