package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/source"
	"github.com/knsan189/imageLabeler/internal/startup"
)

type scanSummary struct {
	Root      string         `json:"root"`
	Found     int            `json:"found"`
	Submitted int            `json:"submitted"`
	Skipped   int            `json:"skipped"`
	Outcomes  map[string]int `json:"outcomes"`
	Duration  string         `json:"duration"`
}

func newScanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan DIR",
		Short: "Label every image below DIR once and exit",
		Long: `scan walks DIR, labels each supported image that the ledger has not seen
at its current size and modification time, waits for all of them to finish
and prints a summary of the outcomes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

func runScan(ctx context.Context, opts *options, dir string, out io.Writer) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	start := time.Now()
	a, err := newApp(ctx, opts, startup.ModeScan)
	if err != nil {
		return err
	}
	defer a.close()

	paths, err := source.Scan(ctx, root)
	if err != nil {
		return err
	}

	summary := scanSummary{Root: root, Found: len(paths)}
	for _, p := range paths {
		if a.submitPath(ctx, p) {
			summary.Submitted++
		} else {
			summary.Skipped++
		}
	}
	logging.Info("Submitted %d of %d images under %s", summary.Submitted, summary.Found, root)

	if err := a.dispatcher.Wait(ctx); err != nil {
		return err
	}
	summary.Outcomes = a.tally.snapshot()
	summary.Duration = time.Since(start).Round(time.Millisecond).String()

	if opts.jsonOutput {
		return printJSON(out, summary)
	}
	fmt.Fprintf(out, "Scanned %s in %s\n", summary.Root, summary.Duration)
	fmt.Fprintf(out, "  found:     %d\n", summary.Found)
	fmt.Fprintf(out, "  submitted: %d\n", summary.Submitted)
	fmt.Fprintf(out, "  skipped:   %d\n", summary.Skipped)
	fmt.Fprintln(out, "Outcomes:")
	printOutcomes(out, "  ", summary.Outcomes)
	return nil
}
