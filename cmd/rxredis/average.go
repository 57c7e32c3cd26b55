package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
	"github.com/moontrade/rxredis/structured"
	"github.com/moontrade/rxredis/xstream"
)

func newAverageCommand() *cobra.Command {
	var (
		input   string
		output  string
		window  int
		block   time.Duration
		marbles string
		tick    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "average",
		Short: "Write rolling means of distinct marble values to a stream",
		Long: `Read the "marble" field of the input stream from the beginning, drop repeated
values, and write the mean of every sliding window to the output stream. The
command ends once the input stays idle for one block. With --marbles a
producer writes the diagram to the input stream concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			g, ctx := errgroup.WithContext(ctx)
			if marbles != "" {
				g.Go(func() error {
					return drain(ctx, marbleProducer(e, input, marbles, tick), func(xstream.Event) {})
				})
			}
			g.Go(func() error {
				opts := cfg.StreamOptions(input, xstream.Beginning)
				opts.Block = block
				opts.CompleteOnTimeout = true
				values := rx.Map(xstream.FromStream(e.pool, e.client, opts), func(ev xstream.Event) int64 {
					return structured.Int(ev.Record, "marble", "")
				}).Pipe(rx.DistinctUntilChanged[int64]())
				means := rx.Map(rx.Buffer(values, window, 1), func(w []int64) xstream.Event {
					return xstream.Event{Record: xstream.RecordOf("avg", strconv.FormatFloat(mean(w), 'f', -1, 64))}
				}).Pipe(xstream.ToStream(e.client, xstream.Literal[xstream.Event](output), false, cfg.Sink.MaxLen))
				return drain(ctx, means, func(ev xstream.Event) {
					logger.Info("avg", ev.Record.Value("avg"), "mean")
				})
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&input, "input", "prod", "Input stream")
	cmd.Flags().StringVar(&output, "output", "average", "Output stream")
	cmd.Flags().IntVar(&window, "window", 3, "Values per mean")
	cmd.Flags().DurationVar(&block, "block", 2*time.Second, "Idle time that ends the input")
	cmd.Flags().StringVar(&marbles, "marbles", "", `Also produce this diagram, for example "1-2-2-3-4-5-6-|"`)
	cmd.Flags().DurationVar(&tick, "tick", 200*time.Millisecond, "Duration of one '-'")
	return cmd
}

func mean(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
