package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/logger"
)

func newProduceCommand() *cobra.Command {
	var (
		stream  string
		marbles string
		tick    time.Duration
		flush   bool
	)

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Write a marble diagram to a stream",
		Long: `Write a marble diagram such as "1-2-3-|" to a stream, one entry per marble.
Each '-' waits one tick and '|' ends the diagram.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if flush {
				if err := e.client.FlushAll(ctx); err != nil {
					return err
				}
			}
			err = drain(ctx, marbleProducer(e, stream, marbles, tick), logEvent("produced"))
			if err == nil {
				logger.Info("stream", stream, "producer completed")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "prod", "Target stream")
	cmd.Flags().StringVar(&marbles, "marbles", "-1-2-3-4-5-6-|", "Marble diagram")
	cmd.Flags().DurationVar(&tick, "tick", 200*time.Millisecond, "Duration of one '-'")
	cmd.Flags().BoolVar(&flush, "flush", false, "FLUSHALL before producing")
	return cmd
}
