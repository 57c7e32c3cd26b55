package main

import (
	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/memredis"
	"github.com/moontrade/rxredis/redisstore"
)

func newServeCommand() *cobra.Command {
	var (
		addr    string
		tlsCert string
		tlsKey  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the embedded Redis-compatible store",
		Long: `Run the in-process store on a TCP address. It speaks enough of the Redis
protocol for streams, pub/sub and keyspace notifications, so redis-cli and the
other commands can talk to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cfg.ServerOptions()
			if addr != "" {
				opts.Addr = addr
			}
			if tlsCert != "" || tlsKey != "" {
				tlsConfig, err := redisstore.LoadTLS(tlsCert, tlsKey)
				if err != nil {
					return err
				}
				opts.TLS = tlsConfig
			}
			srv, err := memredis.Listen(opts)
			if err != nil {
				return err
			}
			logger.Info("addr", srv.Addr(), "tls", opts.TLS != nil, "serving")
			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
				return srv.Close()
			case <-srv.Done():
				return srv.Err()
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS key file")
	cmd.MarkFlagsRequiredTogether("tls-cert", "tls-key")
	return cmd
}
