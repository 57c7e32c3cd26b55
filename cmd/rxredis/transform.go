package main

import (
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
	"github.com/moontrade/rxredis/structured"
	"github.com/moontrade/rxredis/xstream"
)

// transformed is an output value with the identifier it is written under.
type transformed struct {
	ID   string
	Data transformedData
}

func newTransformCommand() *cobra.Command {
	var (
		input   string
		output  string
		block   time.Duration
		marbles string
		tick    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Decode entries into typed values, enrich them and write them back",
		Long: `Decode every new entry of the input stream into a typed value, add a random
number and write the result to the output stream under the input entry id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			// resolved before producing so every produced entry is read
			start, err := xstream.ResolveStart(ctx, e.client, input, xstream.NewOnly)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			if marbles != "" {
				g.Go(func() error {
					return drain(ctx, marbleProducer(e, input, marbles, tick), func(xstream.Event) {})
				})
			}
			g.Go(func() error {
				opts := cfg.StreamOptions(input, start)
				opts.Block = block
				opts.CompleteOnTimeout = true
				decoded := rx.Map(xstream.FromStream(e.pool, e.client, opts), func(ev xstream.Event) transformed {
					var in producerData
					if err := structured.Structure(ev.Record, &in); err != nil {
						logger.WarnErr(err, "id", ev.ID, "undecodable entry")
					}
					return transformed{ID: ev.ID, Data: transformedData{Marble: in.Marble, Random: rand.Float64()}}
				})
				out := decoded.Pipe(xstream.ToStreamOf(e.client, xstream.SinkConfig[transformed]{
					Stream: xstream.Literal[transformed](output),
					ID:     xstream.Derived(func(t transformed) string { return t.ID }),
					Unstructure: func(t transformed) (xstream.Record, error) {
						return structured.Unstructure(t.Data)
					},
					MaxLen: cfg.Sink.MaxLen,
				}))
				return drain(ctx, out, func(t transformed) {
					logger.Info("id", t.ID, "marble", t.Data.Marble, "random", t.Data.Random, "transformed")
				})
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&input, "input", "structured", "Input stream")
	cmd.Flags().StringVar(&output, "output", "transformed", "Output stream")
	cmd.Flags().DurationVar(&block, "block", 2*time.Second, "Idle time that ends the input")
	cmd.Flags().StringVar(&marbles, "marbles", "", `Also produce this diagram, for example "-1-2-3-4-5-6-|"`)
	cmd.Flags().DurationVar(&tick, "tick", 200*time.Millisecond, "Duration of one '-'")
	return cmd
}
