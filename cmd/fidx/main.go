package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fidx/internal/app"
	"fidx/internal/config"
	"fidx/internal/fidx"
	"fidx/internal/search"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Scan", "Watch").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// fit shortens s from the left so it fits in width columns.
func fit(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return "..." + s[len(s)-width+3:]
}

func scanConfigFromFlags(cmd *cobra.Command, defaults fidx.ScanConfig) fidx.ScanConfig {
	cfg := defaults
	if cmd.Flags().Changed("recursive") {
		cfg.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("ext") {
		cfg.Extensions, _ = cmd.Flags().GetStringSlice("ext")
	}
	if cmd.Flags().Changed("exclude") {
		cfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	return cfg
}

func printScanResult(r *fidx.ScanResult) {
	fmt.Printf("%s: scanned %d, added %d, updated %d, skipped %d, errors %d\n",
		r.ScanPath, r.ScannedFiles, r.AddedFiles, r.UpdatedFiles, r.SkippedFiles, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Printf("  error: %s: %s\n", e.Path, e.Message)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fidx",
	Short: "File indexer with auto-tagging and keyword search",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
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
		return (&config.Manager{}).Write(os.Stdout, cfg)
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan [PATH]",
	Short: "Index a directory",
	Long:  "Index a directory, or every watched directory when no path is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			results, err := a.ScanWatched()
			for _, r := range results {
				printScanResult(r)
			}
			return err
		}

		result, err := a.Scan(args[0], scanConfigFromFlags(cmd, a.ScanDefaults()))
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printScanResult(result)
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index in sync with watched directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanFirst, _ := cmd.Flags().GetBool("scan")

		a, err := newApp("Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Watching; press Ctrl-C to stop.")
		return a.Watch(ctx, scanFirst)
	},
}

// dir command
var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage watched directories",
}

var dirAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Watch a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddDirectory")
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.AddDirectory(args[0], scanConfigFromFlags(cmd, a.ScanDefaults()))
		if err != nil {
			return fmt.Errorf("adding directory: %w", err)
		}
		fmt.Printf("Watching directory: %s\n", dir.Path)
		return nil
	},
}

var dirListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListDirectories")
		if err != nil {
			return err
		}
		defer a.Close()

		dirs, err := a.ListDirectories()
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			fmt.Println("No watched directories.")
			return nil
		}

		for _, d := range dirs {
			flags := "-"
			if d.Recursive {
				flags = "r"
			}
			if !d.Enabled {
				flags += " (disabled)"
			}
			scanned := "never"
			if d.LastScannedAt != nil {
				scanned = d.LastScannedAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-2s %-19s  %s\n", flags, scanned, d.Path)
		}
		return nil
	},
}

var dirRmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Stop watching a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RemoveDirectory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveDirectory(args[0]); err != nil {
			return err
		}
		fmt.Printf("Stopped watching: %s\n", args[0])
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search KEYWORD...",
	Short: "Search file names, paths and tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _ := cmd.Flags().GetString("op")
		fileType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := newApp("Search")
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.Search(search.Request{
			Keywords:   args,
			Operator:   op,
			TypeFilter: fileType,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		if resp.Total == 0 {
			fmt.Println("No matches.")
			return nil
		}

		width := terminalWidth()
		for _, r := range resp.Results {
			names := make([]string, 0, len(r.Tags))
			for _, t := range r.Tags {
				names = append(names, t.Name)
			}
			prefix := fmt.Sprintf("%6.2f  %-8s  %8s  ", r.Relevance, r.File.FileType, humanize.IBytes(uint64(r.File.Size)))
			line := r.File.Path
			if width > 0 {
				line = fit(line, width-len(prefix))
			}
			fmt.Printf("%s%s\n", prefix, line)
			if len(names) > 0 {
				fmt.Printf("%s[%s]\n", strings.Repeat(" ", len(prefix)), strings.Join(names, ", "))
			}
		}
		fmt.Printf("\nShowing %d of %d match(es)\n", len(resp.Results), resp.Total)
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListTags")
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.ListTags()
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("No tags.")
			return nil
		}
		for _, t := range tags {
			fmt.Printf("%-20s  %-7s  %-7s  %5d  %s\n", t.Name, t.TagType, t.Color, t.UseCount, t.DisplayName)
		}
		return nil
	},
}

func tagSpecFromFlags(cmd *cobra.Command, name string) fidx.TagSpec {
	display, _ := cmd.Flags().GetString("display")
	color, _ := cmd.Flags().GetString("color")
	icon, _ := cmd.Flags().GetString("icon")
	return fidx.TagSpec{Name: name, DisplayName: display, Color: color, Icon: icon}
}

var tagCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a custom tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateTag")
		if err != nil {
			return err
		}
		defer a.Close()

		tag, err := a.CreateTag(tagSpecFromFlags(cmd, args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.Color)
		return nil
	},
}

var tagUpdateCmd = &cobra.Command{
	Use:   "update NAME",
	Short: "Change a tag's display name, colour or icon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UpdateTag")
		if err != nil {
			return err
		}
		defer a.Close()

		tag, err := a.UpdateTag(tagSpecFromFlags(cmd, args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Updated tag %s\n", tag.Name)
		return nil
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a tag and remove it from every file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteTag")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteTag(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted tag %s\n", args[0])
		return nil
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add FILE TAG",
	Short: "Tag a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddTag")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.AddTag(args[0], args[1])
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm FILE TAG",
	Short: "Remove a tag from a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RemoveTag")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RemoveTag(args[0], args[1])
	},
}

var tagShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Show the tags on a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FileTags")
		if err != nil {
			return err
		}
		defer a.Close()

		assocs, err := a.FileTags(args[0])
		if err != nil {
			return err
		}
		for _, as := range assocs {
			source := "user"
			if as.IsAuto {
				source = "auto"
			}
			fmt.Printf("%-20s  %s\n", as.TagName, source)
		}
		return nil
	},
}

var tagFilesCmd = &cobra.Command{
	Use:   "files TAG...",
	Short: "List files carrying every given tag",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FilesByTags")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.FilesByTags(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files.")
			return nil
		}
		width := terminalWidth()
		for _, f := range files {
			fmt.Println(fit(f.Path, width))
		}
		return nil
	},
}

// rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List auto-tagging rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Rules")
		if err != nil {
			return err
		}
		defer a.Close()

		for _, r := range a.Rules() {
			fmt.Printf("%-20s  %s\n", r.Name, r.Condition)
		}
		return nil
	},
}

// retag command
var retagCmd = &cobra.Command{
	Use:   "retag",
	Short: "Re-run auto-tagging over every indexed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Retag")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Retag()
		if report != nil {
			fmt.Printf("Retagged %d file(s): %d applied, %d removed, %d error(s)\n",
				report.Files, report.Applied, report.Removed, len(report.Errors))
		}
		return err
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stats")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Files:               %d (%d active)\n", s.TotalFiles, s.ActiveFiles)
		fmt.Printf("Tags:                %d\n", s.TotalTags)
		fmt.Printf("Watched directories: %d\n", s.WatchedDirectories)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a snapshot of the index database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := os.Stat(args[0]); err == nil {
			return fmt.Errorf("%s already exists", args[0])
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := a.Backup(args[0]); err != nil {
			return err
		}
		fmt.Printf("Index written to %s\n", args[0])
		return nil
	},
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("recursive", "r", true, "Recurse into subdirectories")
	cmd.Flags().StringSlice("ext", nil, "Only index these extensions")
	cmd.Flags().StringSlice("exclude", nil, "Skip directories whose path contains one of these")
	cmd.Flags().Int("max-depth", 0, "Deepest directory level to visit (0 = unlimited)")
}

func addTagFlags(cmd *cobra.Command) {
	cmd.Flags().String("display", "", "Display name")
	cmd.Flags().String("color", "", "Colour, e.g. #ff8800")
	cmd.Flags().String("icon", "", "Icon name")
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// dir subcommands
	dirCmd.AddCommand(dirAddCmd)
	addScanFlags(dirAddCmd)
	dirCmd.AddCommand(dirListCmd)
	dirCmd.AddCommand(dirRmCmd)

	// tag subcommands
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagCreateCmd)
	addTagFlags(tagCreateCmd)
	tagCmd.AddCommand(tagUpdateCmd)
	addTagFlags(tagUpdateCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagShowCmd)
	tagCmd.AddCommand(tagFilesCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("scan", false, "Scan watched directories before watching")
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("op", "AND", "Combine keywords with AND or OR")
	searchCmd.Flags().String("type", "", "Only files of this type (image, audio, video, text, binary, other)")
	searchCmd.Flags().Int("limit", search.DefaultLimit, "Maximum number of results")
	searchCmd.Flags().Int("offset", 0, "Results to skip")
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(retagCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(backupCmd)
}
