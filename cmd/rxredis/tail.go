package main

import (
	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/xstream"
)

func newTailCommand() *cobra.Command {
	var (
		start      string
		latestOnly bool
		complete   bool
	)

	cmd := &cobra.Command{
		Use:   "tail <stream>",
		Short: "Print the entries of a stream as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			opts := cfg.StreamOptions(args[0], start)
			opts.LatestOnly = latestOnly
			opts.CompleteOnTimeout = opts.CompleteOnTimeout || complete
			return drain(ctx, xstream.FromStream(e.pool, e.client, opts), logEvent(args[0]))
		},
	}

	cmd.Flags().StringVar(&start, "start", xstream.Latest, `Start after this id: "$", ">", "0" or a stream id`)
	cmd.Flags().BoolVar(&latestOnly, "latest-only", false, "Only print the last entry of every batch")
	cmd.Flags().BoolVar(&complete, "complete", false, "Stop at the first read that times out")
	return cmd
}
