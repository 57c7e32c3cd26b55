package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moontrade/rxredis/config"
	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/memredis"
	"github.com/moontrade/rxredis/redisstore"
	"github.com/moontrade/rxredis/rx"
)

var (
	// Global flags
	configPath string
	redisAddr  string
	logLevel   string
	embedded   bool

	cfg config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rxredis",
		Short: "Redis streams and pub/sub as event sequences",
		Long: `rxredis reads Redis streams, pub/sub channels and keyspace notifications
as event sequences, transforms them and writes the results back to streams.
With --embedded every command runs against an in-process store.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address, overrides redis.addr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, verbose, info, warn, error or silent")
	rootCmd.PersistentFlags().BoolVar(&embedded, "embedded", false, "Run against an in-process store")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newProduceCommand())
	rootCmd.AddCommand(newTailCommand())
	rootCmd.AddCommand(newRelayCommand())
	rootCmd.AddCommand(newAverageCommand())
	rootCmd.AddCommand(newSplitCommand())
	rootCmd.AddCommand(newTransformCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newCombineCommand())
	return rootCmd
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ApplyLog(cmd.ErrOrStderr()); err != nil {
		return err
	}
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger.Writer)
	return nil
}

// env holds the connections a command runs with.
type env struct {
	client *redisstore.Client
	server *memredis.Server
	pool   *rx.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	e := &env{}
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if embedded {
		srvOpts := cfg.ServerOptions()
		srvOpts.Addr = "127.0.0.1:0"
		if srvOpts.NotifyKeyspaceEvents == "" {
			srvOpts.NotifyKeyspaceEvents = "KA"
		}
		e.server, err = memredis.Listen(srvOpts)
		if err != nil {
			return nil, err
		}
		opts.Addr = e.server.Addr()
		opts.Password = srvOpts.Auth
		opts.TLS = nil
		logger.Info("addr", opts.Addr, "embedded store started")
	}
	e.client = redisstore.New(opts)
	if err := e.client.Ping(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	e.pool = rx.NewPool(cfg.Workers)
	return e, nil
}

func (e *env) Close() {
	if e.pool != nil {
		e.pool.Stop()
	}
	if e.client != nil {
		e.client.Close()
	}
	if e.server != nil {
		e.server.Close()
	}
}
