package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/memory"
)

// options are the persistent flags shared by every command.
type options struct {
	envFile    string
	dryRun     bool
	jsonOutput bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "image-labeler",
		Short: "Label Stable Diffusion images in a photo index from their embedded prompts",
		Long: `image-labeler reads the generation parameters that Stable Diffusion front ends
embed in PNG and other image files, turns the prompt into labels and writes
them, together with a caption, to a PhotoPrism-style photo index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Setup(cmd.ErrOrStderr(), os.Getenv("LOG_FORMAT"))
			if res := memory.ConfigureFromEnv(); res.Configured {
				logging.Info("Go memory limit: %s", res)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load settings from this file instead of ./.env")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "log index mutations instead of performing them")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "print command results as JSON")

	root.AddCommand(
		newPollCommand(opts),
		newWatchCommand(opts),
		newScanCommand(opts),
		newLabelCommand(opts),
		newInspectCommand(opts),
		newLedgerCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
