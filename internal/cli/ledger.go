package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/startup"
)

// errAborted is returned when the user declines a confirmation prompt.
var errAborted = errors.New("aborted")

type ledgerStats struct {
	Path       string              `json:"path"`
	Checkpoint database.Checkpoint `json:"checkpoint"`
	Outcomes   map[string]int      `json:"outcomes"`
	Recent     []database.Entry    `json:"recent"`
}

func newLedgerCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the local outcome ledger",
	}

	var recent int
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show outcome counts and the most recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), opts, func(ctx context.Context, db *database.Database, _ *startup.Config) error {
				return runLedgerStats(ctx, opts, db, recent, cmd.OutOrStdout())
			})
		},
	}
	stats.Flags().IntVarP(&recent, "recent", "n", 10, "number of recent entries to show")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete retryable entries and seen rows older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), opts, func(ctx context.Context, db *database.Database, cfg *startup.Config) error {
				age := olderThan
				if age <= 0 {
					age = cfg.LedgerRetention
				}
				removed, err := db.Prune(ctx, time.Now().Add(-age))
				if err != nil {
					return fmt.Errorf("prune ledger: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rows older than %v\n", removed, age)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default LEDGER_RETENTION)")

	var yes bool
	forget := &cobra.Command{
		Use:   "forget KEY",
		Short: "Delete the entry for a photo UID (or path:/abs/file) so it is labeled again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Forget ledger entry %q?", key))
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}
			return withLedger(cmd.Context(), opts, func(ctx context.Context, db *database.Database, _ *startup.Config) error {
				if err := db.Forget(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", key)
				return nil
			})
		},
	}
	forget.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(stats, prune, forget)
	return cmd
}

// withLedger opens the ledger named by the configuration, runs fn and
// closes it again.
func withLedger(ctx context.Context, opts *options, fn func(context.Context, *database.Database, *startup.Config) error) error {
	cfg, err := loadConfig(opts, startup.ModeLedger)
	if err != nil {
		return err
	}
	if err := cfg.PrepareDatabaseDir(); err != nil {
		return err
	}
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer db.Close()
	return fn(ctx, db, cfg)
}

func runLedgerStats(ctx context.Context, opts *options, db *database.Database, recent int, out io.Writer) error {
	if recent < 0 {
		return fmt.Errorf("--recent must not be negative, got %d", recent)
	}
	counts, err := db.CountOutcomes(ctx)
	if err != nil {
		return err
	}
	entries, err := db.RecentEntries(ctx, recent)
	if err != nil {
		return err
	}
	cp, err := db.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	s := ledgerStats{Path: db.Path(), Checkpoint: cp, Outcomes: counts, Recent: entries}
	if s.Recent == nil {
		s.Recent = []database.Entry{}
	}

	if opts.jsonOutput {
		return printJSON(out, s)
	}
	fmt.Fprintf(out, "Ledger %s\n", s.Path)
	if !cp.LastCycle.IsZero() {
		fmt.Fprintf(out, "Last poll cycle %s (offset %d)\n", cp.LastCycle.Format(time.RFC3339), cp.Offset)
	}
	fmt.Fprintln(out, "Outcomes:")
	printOutcomes(out, "  ", s.Outcomes)
	if len(s.Recent) > 0 {
		fmt.Fprintln(out, "Recent:")
		for _, e := range s.Recent {
			fmt.Fprintf(out, "  %s  %-14s %-40s labels=%d attempts=%d\n",
				e.UpdatedAt.Format(time.RFC3339), e.Outcome, e.Key, e.Labels, e.Attempts)
		}
	}
	return nil
}

// confirm asks a yes/no question on terminals. Non-interactive input is
// refused so scripts have to pass --yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("refusing to ask for confirmation on non-interactive input, pass --yes")
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
