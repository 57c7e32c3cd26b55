package main

import (
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/structured"
	"github.com/moontrade/rxredis/xstream"
)

func newSplitCommand() *cobra.Command {
	var (
		input   string
		even    string
		odd     string
		block   time.Duration
		marbles string
		tick    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a marble stream into even and odd streams",
		Long: `Read the input stream from the beginning and append every entry to the even
or odd stream by the parity of its "marble" field. The command ends once the
input stays idle for one block and reports the last entry of each output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			parity := func(ev xstream.Event) string {
				if structured.Int(ev.Record, "marble", "")%2 == 0 {
					return even
				}
				return odd
			}

			g, ctx := errgroup.WithContext(ctx)
			if marbles != "" {
				g.Go(func() error {
					return drain(ctx, marbleProducer(e, input, marbles, tick), logEvent("produced"))
				})
			}
			g.Go(func() error {
				opts := cfg.StreamOptions(input, xstream.Beginning)
				opts.Block = block
				opts.CompleteOnTimeout = true
				src := xstream.FromStream(e.pool, e.client, opts).Pipe(
					xstream.ToStreamOf(e.client, xstream.SinkConfig[xstream.Event]{
						Stream:      xstream.Derived(parity),
						Unstructure: func(ev xstream.Event) (xstream.Record, error) { return ev.Record, nil },
						MaxLen:      cfg.Sink.MaxLen,
					}),
				)
				var mu sync.Mutex
				last := make(map[string]string)
				err := drain(ctx, src, func(ev xstream.Event) {
					mu.Lock()
					last[parity(ev)] = ev.ID
					mu.Unlock()
				})
				mu.Lock()
				defer mu.Unlock()
				for stream, id := range last {
					logger.Info("stream", stream, "id", id, "last consumed")
				}
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&input, "input", "prod", "Input stream")
	cmd.Flags().StringVar(&even, "even", "even", "Stream for even marbles")
	cmd.Flags().StringVar(&odd, "odd", "odd", "Stream for odd marbles")
	cmd.Flags().DurationVar(&block, "block", 2*time.Second, "Idle time that ends the input")
	cmd.Flags().StringVar(&marbles, "marbles", "", `Also produce this diagram, for example "1-2-3-4-5-6-|"`)
	cmd.Flags().DurationVar(&tick, "tick", 200*time.Millisecond, "Duration of one '-'")
	return cmd
}
