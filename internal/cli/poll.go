package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/knsan189/imageLabeler/internal/reconciler"
	"github.com/knsan189/imageLabeler/internal/startup"
)

func newPollCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Label uncaptioned photos from the index on an interval",
		Long: `poll asks the photo index for photos without a caption every POLL_INTERVAL,
labels the ones that are not in flight and not already finished in the
ledger, and serves health, status and metrics endpoints on METRICS_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPoll(cmd.Context(), opts)
		},
	}
}

func runPoll(ctx context.Context, opts *options) error {
	start := time.Now()
	a, err := newApp(ctx, opts, startup.ModePoll)
	if err != nil {
		return err
	}

	loop := reconciler.New(reconciler.Config{
		Interval: a.cfg.PollInterval,
		PageSize: a.cfg.PageSize,
	}, a.index, a.dispatcher, reconciler.WithLedger(a.db))

	return serve(ctx, a, daemon{
		run:     loop.Run,
		loop:    loop,
		trigger: loop.Trigger,
	}, start)
}
