package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/agent"
	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/config"
	"github.com/sicko7947/agentparty/engine"
	"github.com/sicko7947/agentparty/httpapi"
	"github.com/sicko7947/agentparty/job"
	"github.com/sicko7947/agentparty/mcp"
	"github.com/sicko7947/agentparty/session"
	"github.com/sicko7947/agentparty/store"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio, plus the HTTP API when enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// MCP owns stdout, so logs go to stderr
	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workflowStore, sessionStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}

	cat, err := catalog.New(catalog.Dirs{
		Agents:    cfg.Catalog.AgentsDir,
		Workflows: cfg.Catalog.WorkflowsDir,
		Jobs:      cfg.Catalog.JobsDir,
	}, logger)
	if err != nil {
		return err
	}
	if cfg.Catalog.Watch {
		if err := cat.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("Catalog watching disabled")
		}
	}

	sessions := session.NewManager(sessionStore, session.Config{
		TTL:                 cfg.Session.TTL,
		BudgetUSD:           cfg.Session.BudgetUSD,
		BudgetResetInterval: cfg.Session.BudgetResetInterval,
		WarningThreshold:    cfg.Session.WarningThreshold,
		CleanupInterval:     cfg.Session.CleanupInterval,
	}, logger)
	sessions.StartCleanup(ctx)

	eng := engine.New(workflowStore, cat,
		agent.NewResolver(cat, sessions, logger),
		engine.WithLogger(logger),
	)

	mcpServer := mcp.NewServer(mcp.ServerDeps{
		Engine:   eng,
		Catalog:  cat,
		Sessions: sessions,
		Jobs:     job.NewManager(logger),
		Logger:   logger,
	})

	var httpServer *httpapi.Server
	if cfg.HTTP.Enable {
		httpServer = httpapi.NewServer(httpapi.ServerDeps{
			Engine:  eng,
			Catalog: cat,
			Store:   workflowStore,
			Logger:  logger,
		})
		go func() {
			logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting HTTP API")
			if err := httpServer.Listen(cfg.HTTP.Addr); err != nil {
				logger.Error().Err(err).Msg("HTTP API stopped")
				cancel()
			}
		}()
	}

	logger.Info().Msg("Starting MCP server on stdio")
	serveErr := mcpServer.Serve(ctx)

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownTimeout); err != nil {
			logger.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}

	if serveErr != nil && ctx.Err() == nil {
		return serveErr
	}
	logger.Info().Msg("Server stopped")
	return nil
}

func buildStores(ctx context.Context, cfg *config.Config) (agentparty.WorkflowStore, session.Store, error) {
	if cfg.Store.UseMemory {
		return store.NewMemoryStore(), session.NewMemoryStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.Region))
	if err != nil {
		return nil, nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Store.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Store.Endpoint)
		}
	})

	return store.NewDynamoDBStore(client, cfg.Store.Table),
		store.NewDynamoDBSessionStore(client, cfg.Store.Table),
		nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()
}
