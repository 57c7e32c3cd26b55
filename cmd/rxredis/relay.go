package main

import (
	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/xstream"
)

func newRelayCommand() *cobra.Command {
	var (
		start   string
		relayID bool
	)

	cmd := &cobra.Command{
		Use:   "relay <from> <to>",
		Short: "Copy entries from one stream to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			src := xstream.FromStream(e.pool, e.client, cfg.StreamOptions(args[0], start)).Pipe(
				xstream.ToStream(e.client, xstream.Literal[xstream.Event](args[1]), relayID, cfg.Sink.MaxLen),
			)
			return drain(ctx, src, logEvent("relayed"))
		},
	}

	cmd.Flags().StringVar(&start, "start", xstream.NewOnly, `Start after this id: "$", ">", "0" or a stream id`)
	cmd.Flags().BoolVar(&relayID, "relay-id", false, "Write with the source entry id")
	return cmd
}
