package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knsan189/imageLabeler/internal/filesystem"
	"github.com/knsan189/imageLabeler/internal/labeler"
	"github.com/knsan189/imageLabeler/internal/mediatypes"
	"github.com/knsan189/imageLabeler/internal/startup"
)

type labelResult struct {
	Path    string   `json:"path"`
	UID     string   `json:"uid,omitempty"`
	Outcome string   `json:"outcome"`
	Dialect string   `json:"dialect,omitempty"`
	Labels  []string `json:"labels"`
	Written int      `json:"written"`
	DryRun  bool     `json:"dryRun,omitempty"`
}

func newLabelCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "label FILE",
		Short: "Label a single image file",
		Long: `label resolves FILE in the photo index by its file name and writes the
labels and caption derived from its embedded prompt, even when the ledger
already has an outcome for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabel(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

// checkTarget rejects explicit single-file targets that cannot be labeled.
func checkTarget(file string) (string, error) {
	path, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", file, err)
	}
	if !mediatypes.IsSupportedImage(path) {
		return "", fmt.Errorf("%w: %s", labeler.ErrUnsupportedFile, filepath.Base(path))
	}
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

func runLabel(ctx context.Context, opts *options, file string, out io.Writer) error {
	path, err := checkTarget(file)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, opts, startup.ModeLabel)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.label(ctx, labeler.Candidate{Path: path})
	if err != nil {
		return err
	}

	r := labelResult{
		Path:    path,
		UID:     res.UID,
		Outcome: string(res.Outcome),
		Labels:  res.Labels,
		Written: res.Written,
		DryRun:  a.cfg.DryRun,
	}
	if res.Metadata != nil {
		r.Dialect = res.Metadata.Dialect
	}
	if r.Labels == nil {
		r.Labels = []string{}
	}

	if opts.jsonOutput {
		return printJSON(out, r)
	}
	fmt.Fprintf(out, "%s: %s\n", r.Path, r.Outcome)
	if r.UID != "" {
		fmt.Fprintf(out, "  uid:     %s\n", r.UID)
	}
	if r.Dialect != "" {
		fmt.Fprintf(out, "  dialect: %s\n", r.Dialect)
	}
	if len(r.Labels) > 0 {
		fmt.Fprintf(out, "  labels:  %s\n", strings.Join(r.Labels, ", "))
	}
	fmt.Fprintf(out, "  written: %d\n", r.Written)
	return nil
}
