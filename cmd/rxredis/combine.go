package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moontrade/rxredis/rx"
	"github.com/moontrade/rxredis/xstream"
)

func newCombineCommand() *cobra.Command {
	var (
		streams  []string
		hz       []float64
		sensors  bool
		output   string
		window   time.Duration
		block    time.Duration
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Merge the latest values of several streams at a lower rate",
		Long: `Follow every input stream from its current end, keep the latest "v" of each
and, once per window, write the most recent combination to the output stream
together with "td", the distance in seconds between the first and last
entry times. With --sensors each input stream is fed a sine wave at its
--hz rate. A zero --duration runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sensors && len(hz) != len(streams) {
				return fmt.Errorf("%d streams need %d rates, got %d", len(streams), len(streams), len(hz))
			}
			for _, r := range hz {
				if r <= 0 {
					return fmt.Errorf("sensor rate must be positive, got %v", r)
				}
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			// one task per sensor and per reader plus the window timer
			pool := rx.NewPool(max(cfg.Workers, 2*len(streams)+1))
			defer pool.Stop()

			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			g, ctx := errgroup.WithContext(ctx)
			if sensors {
				for i, stream := range streams {
					i, stream := i, stream
					g.Go(func() error {
						return drain(ctx, sensor(e, pool, stream, hz[i]), func(xstream.Event) {})
					})
				}
			}
			g.Go(func() error {
				sources := make([]rx.Observable[xstream.Event], len(streams))
				for i, stream := range streams {
					opts := cfg.StreamOptions(stream, xstream.NewOnly)
					opts.Batch = 10
					opts.Block = block
					opts.LatestOnly = true
					sources[i] = xstream.FromStream(pool, e.client, opts)
				}
				windows := rx.BufferTime(pool, rx.CombineLatest(sources...), window).
					Pipe(rx.Filter(func(w [][]xstream.Event) bool { return len(w) > 0 }))
				out := rx.Map(windows, func(w [][]xstream.Event) xstream.Event {
					return combinedEvent(streams, w[len(w)-1])
				}).Pipe(xstream.ToStream(e.client, xstream.Literal[xstream.Event](output), false, cfg.Sink.MaxLen))
				return drain(ctx, out, logEvent("combined"))
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringSliceVar(&streams, "streams", []string{"s1", "s2"}, "Input streams")
	cmd.Flags().Float64SliceVar(&hz, "hz", []float64{10, 20}, "Sensor rate per input stream")
	cmd.Flags().BoolVar(&sensors, "sensors", true, "Also feed the input streams")
	cmd.Flags().StringVar(&output, "output", "combined", "Output stream")
	cmd.Flags().DurationVar(&window, "window", 2*time.Second, "Time between combined entries")
	cmd.Flags().DurationVar(&block, "block", time.Second, "Longest single wait on an input stream")
	cmd.Flags().DurationVar(&duration, "duration", 20*time.Second, "Run time, 0 for no limit")
	return cmd
}

// sensor appends sin(n) as "v" to stream for the n-th tick at rate hz.
func sensor(e *env, exec rx.Executor, stream string, hz float64) rx.Observable[xstream.Event] {
	period := time.Duration(float64(time.Second) / hz)
	samples := rx.Map(rx.Interval(exec, period), func(n int) xstream.Event {
		return xstream.Event{Record: xstream.RecordOf("v", strconv.FormatFloat(math.Sin(float64(n)), 'f', -1, 64))}
	})
	return samples.Pipe(xstream.ToStream(e.client, xstream.Literal[xstream.Event](stream), false, cfg.Sink.MaxLen))
}

// combinedEvent records the "v" of each stream's latest entry and "td", the
// absolute time between the first and the last of them in seconds.
func combinedEvent(streams []string, latest []xstream.Event) xstream.Event {
	kv := make([]string, 0, 2*len(streams)+2)
	for i, stream := range streams {
		kv = append(kv, stream, latest[i].Record.Value("v"))
	}
	td := xstream.Time(latest[0].ID).Sub(xstream.Time(latest[len(latest)-1].ID))
	if td < 0 {
		td = -td
	}
	kv = append(kv, "td", strconv.FormatFloat(td.Seconds(), 'f', -1, 64))
	return xstream.Event{Record: xstream.RecordOf(kv...)}
}
