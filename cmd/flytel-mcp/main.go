package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
	"github.com/bobmcallan/flytel-agent/internal/mcp"
)

func main() {
	stdio := flag.Bool("stdio", false, "Serve MCP over stdio instead of HTTP")
	configFile := flag.String("config", "flytel-agent.toml", "Path to config file")
	flag.Parse()

	common.LoadDotEnv()
	common.LoadVersionFromFile()

	cfg, err := common.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLoggerFromConfig(cfg.Logging)

	cat, err := catalog.Load(context.Background(), catalog.LoadOptions{
		DatabasePath: cfg.Gateway.DatabasePath,
		SourceName:   cfg.Gateway.SourceName,
		SourceID:     cfg.Gateway.SourceID,
		BearerToken:  cfg.Gateway.BearerToken,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog error: %v\n", err)
		os.Exit(1)
	}
	if cat == nil {
		fmt.Fprintln(os.Stderr, "no API catalog configured: set the gateway database path and source")
		os.Exit(1)
	}

	exec := gateway.NewExecutor(cat, gateway.ExecutorOptions{
		Timeout:   cfg.Gateway.GetTimeout(),
		RateLimit: cfg.Gateway.RateLimit,
		CacheTTL:  cfg.Gateway.GetCacheTTL(),
		CacheSize: cfg.Gateway.CacheSize,
	}, logger)

	mcpServer := mcp.NewServer(cfg.MCP.Name, cat, exec, logger)

	if *stdio {
		logger.Info().Str("version", common.GetFullVersion()).Msg("serving MCP over stdio")
		if err := server.ServeStdio(mcpServer); err != nil {
			logger.Error().Err(err).Msg("stdio server error")
			os.Exit(1)
		}
		return
	}

	addr := ":" + cfg.MCP.Port
	logger.Info().Str("version", common.GetFullVersion()).Str("addr", addr).Msg("serving MCP over HTTP")
	httpServer := server.NewStreamableHTTPServer(mcpServer, server.WithStateLess(true))
	if err := httpServer.Start(addr); err != nil {
		logger.Error().Err(err).Msg("http server error")
		os.Exit(1)
	}
}
