package main

import (
	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/rx"
	"github.com/moontrade/rxredis/xstream"
)

func newWatchCommand() *cobra.Command {
	var (
		db        string
		events    []string
		configure string
	)

	cmd := &cobra.Command{
		Use:   "watch <key>...",
		Short: "Print keyspace notifications for keys",
		Long: `Print keyspace notifications for the given keys, which may be glob patterns.
The server must have notify-keyspace-events enabled, which --configure does.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if configure != "" {
				if err := e.client.ConfigureKeyspaceEvents(ctx, configure); err != nil {
					return err
				}
			}
			wanted := make(map[string]bool, len(events))
			for _, ev := range events {
				wanted[ev] = true
			}
			src := xstream.OnKeyspace(e.pool, e.client, e.client, args, xstream.KeyspaceOptions{DB: db}).Pipe(
				rx.Filter(func(ev xstream.KeyEvent) bool {
					return len(wanted) == 0 || wanted[ev.Event]
				}),
			)
			return drain(ctx, src, func(ev xstream.KeyEvent) {
				logger.Info("key", ev.Key, "event", ev.Event, "time", xstream.Time(ev.Timestamp), "keyspace")
			})
		},
	}

	cmd.Flags().StringVar(&db, "db", xstream.DefaultKeyspaceDB, `Database number, "*" for any`)
	cmd.Flags().StringSliceVar(&events, "events", nil, "Only these events, for example set,del,xadd")
	cmd.Flags().StringVar(&configure, "configure", "", `Set notify-keyspace-events first, for example "KA"`)
	return cmd
}
