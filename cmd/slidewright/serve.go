package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/tasks"
	"github.com/rhuss/slidewright/pkg/tools"
	transporthttp "github.com/rhuss/slidewright/pkg/transport/http"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cc.config.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cc.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}

func (c *commandContext) serve(ctx context.Context) error {
	cfg, logger := c.config, c.logger

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gen.Close()

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	uploads, err := files.New(cfg.Uploads.Dir, cfg.Uploads.MaxSize)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	authn, issuer, err := buildAuth(cfg.Auth, store, logger)
	if err != nil {
		return err
	}

	mgr := tasks.New(tasks.Config{
		Workers:       cfg.Tasks.Workers,
		QueueSize:     cfg.Tasks.QueueSize,
		Retention:     cfg.Tasks.Retention,
		PurgeInterval: cfg.Tasks.PurgeInterval,
		Logger:        logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting task manager: %w", err)
	}

	mcpServer := tools.NewServer(gen.service, tools.Config{Version: version, Logger: logger})

	adapterCfg := transporthttp.Config{Version: version, Logger: logger}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	adapter, err := transporthttp.NewAdapter(transporthttp.Deps{
		Service: gen.service,
		Tasks:   mgr,
		Store:   store,
		Files:   uploads,
		Issuer:  issuer,
		Auth:    authn,
		MCP:     tools.Handler(mcpServer),
	}, adapterCfg)
	if err != nil {
		_ = mgr.Stop(context.Background())
		return err
	}

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(cfg.Server.Addr()),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.OnShutdown(mgr.Stop),
	)

	logger.Info("slidewright starting",
		"version", version,
		"storage", cfg.Storage.Type,
		"cache", cfg.Cache.Mode,
		"workers", mgr.Workers(),
	)
	return srv.Run(ctx)
}
