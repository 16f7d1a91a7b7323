package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
)

func main() {
	swaggerURL := flag.String("swagger", "", "Swagger/OpenAPI document URL")
	sourceName := flag.String("source", "", "Catalog source name (defaults to the configured gateway source)")
	dbPath := flag.String("db", "", "SQLite catalog database path (defaults to the configured gateway database)")
	baseURL := flag.String("base-url", "", "Override the API base URL from the document")
	timeout := flag.Duration("timeout", 30*time.Second, "Fetch timeout")
	configFile := flag.String("config", "flytel-agent.toml", "Path to config file")
	flag.Parse()

	common.LoadDotEnv()

	cfg, err := common.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLoggerFromConfig(cfg.Logging)

	if *swaggerURL == "" {
		*swaggerURL = os.Getenv("SWAGGER_URL")
	}
	if *swaggerURL == "" {
		fmt.Fprintln(os.Stderr, "usage: flytel-sync -swagger <url> [-source name] [-db path] [-base-url url]")
		os.Exit(2)
	}
	if *dbPath == "" {
		*dbPath = cfg.Gateway.DatabasePath
	}
	if *dbPath == "" {
		*dbPath = "flytel.db"
	}
	if *sourceName == "" {
		*sourceName = cfg.Gateway.SourceName
	}
	if *sourceName == "" {
		*sourceName = "flytel"
	}

	count, err := catalog.Sync(context.Background(), catalog.SyncOptions{
		DatabasePath:    *dbPath,
		SwaggerURL:      *swaggerURL,
		SourceName:      *sourceName,
		BaseURLOverride: *baseURL,
		Timeout:         *timeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Synced %d operations from %s into %s (source %q)\n", count, *swaggerURL, *dbPath, *sourceName)
}
