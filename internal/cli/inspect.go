package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knsan189/imageLabeler/internal/labeler"
	"github.com/knsan189/imageLabeler/internal/sdmeta"
)

type inspectResult struct {
	Path        string           `json:"path"`
	Found       bool             `json:"found"`
	Chunks      []string         `json:"chunks,omitempty"`
	Metadata    *sdmeta.Metadata `json:"metadata,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Labels      []string         `json:"labels"`
}

func newInspectCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the metadata and labels derived from FILE without touching the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

func runInspect(ctx context.Context, opts *options, file string, out io.Writer) error {
	path, err := checkTarget(file)
	if err != nil {
		return err
	}

	a, err := newInspector(opts)
	if err != nil {
		return err
	}
	defer a.close()

	md, lbls, err := a.processor.Inspect(ctx, path)
	if err != nil {
		return err
	}

	r := inspectResult{Path: path, Labels: lbls}
	if r.Labels == nil {
		r.Labels = []string{}
	}
	if md != nil {
		r.Chunks = md.Raw.Keys()
		if md.Dialect != "" {
			r.Found = true
			r.Metadata = md
			r.Summary = md.Summary()
			r.Description = labeler.Description(md)
		}
	}

	if opts.jsonOutput {
		return printJSON(out, r)
	}
	return writeInspect(out, r)
}

func writeInspect(out io.Writer, r inspectResult) error {
	fmt.Fprintf(out, "File:     %s\n", r.Path)
	if len(r.Chunks) > 0 {
		fmt.Fprintf(out, "Chunks:   %s\n", strings.Join(r.Chunks, ", "))
	}
	if !r.Found {
		_, err := fmt.Fprintln(out, "No generation metadata found")
		return err
	}
	md := r.Metadata
	fmt.Fprintf(out, "Dialect:  %s\n", md.Dialect)
	fmt.Fprintf(out, "Positive: %s\n", md.Positive)
	if md.Negative != "" {
		fmt.Fprintf(out, "Negative: %s\n", md.Negative)
	}
	if r.Summary != "" {
		fmt.Fprintf(out, "Params:   %s\n", r.Summary)
	}
	if md.Model != "" {
		fmt.Fprintf(out, "Model:    %s\n", md.Model)
	}
	_, err := fmt.Fprintf(out, "Labels:   %s\n", strings.Join(r.Labels, ", "))
	return err
}
