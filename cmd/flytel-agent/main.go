package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/agent"
	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
	"github.com/bobmcallan/flytel-agent/internal/inventory"
	"github.com/bobmcallan/flytel-agent/internal/llm"
	"github.com/bobmcallan/flytel-agent/internal/resolver"
)

func main() {
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
	logger.Info().Str("version", common.GetFullVersion()).Msg("flytel-agent starting")

	ctx := context.Background()

	cat, err := catalog.Load(ctx, catalog.LoadOptions{
		DatabasePath: cfg.Gateway.DatabasePath,
		SourceName:   cfg.Gateway.SourceName,
		SourceID:     cfg.Gateway.SourceID,
		BearerToken:  cfg.Gateway.BearerToken,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog error: %v\n", err)
		os.Exit(1)
	}

	chatProvider := llm.NewOpenAIProvider(cfg.ChatModel(), logger)

	var exec *gateway.Executor
	var res *resolver.Resolver
	if cat != nil {
		exec = gateway.NewExecutor(cat, gateway.ExecutorOptions{
			Timeout:   cfg.Gateway.GetTimeout(),
			RateLimit: cfg.Gateway.RateLimit,
			CacheTTL:  cfg.Gateway.GetCacheTTL(),
			CacheSize: cfg.Gateway.CacheSize,
		}, logger)
		res = resolver.New(cfg.Gateway.Resolver, resolver.DefaultKeywordConfig(), cat, resolver.Providers{
			Local:        llm.NewOpenAIProvider(cfg.LLM.Local, logger),
			Remote:       llm.NewOpenAIProvider(cfg.LLM.Remote, logger),
			RemoteHasKey: cfg.LLM.Remote.APIKey != "",
		}, logger)
		fmt.Println("--- External API tools loaded. ---")
	} else {
		fmt.Println("--- (External API not loaded: set the gateway database path and source in config or .env to enable.) ---")
	}

	session := agent.NewSession(agent.Options{
		Provider:      chatProvider,
		Catalog:       cat,
		Resolver:      res,
		Executor:      exec,
		Inventory:     inventory.NewStore(cfg.Inventory.DataDir),
		ToolMode:      cfg.Gateway.ToolMode,
		CatalogCap:    cfg.Gateway.CatalogCap,
		MaxIterations: cfg.Agent.MaxIterations,
		Logger:        logger,
	})

	fmt.Println("--- Flytel Assistant Ready ---")
	fmt.Println("(Type 'exit' to quit, '/save [name]' to archive the conversation)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		lower := strings.ToLower(input)
		if lower == "exit" || lower == "quit" {
			break
		}
		if name, ok := strings.CutPrefix(input, "/save"); ok {
			path, err := agent.SaveConversation(cfg.Agent.ArchiveDir, strings.TrimSpace(name), session.History())
			if err != nil {
				fmt.Printf("Could not save conversation: %v\n", err)
			} else {
				fmt.Printf("Conversation saved to %s\n", path)
			}
			continue
		}

		fmt.Println("  ... thinking ...")
		answer, err := session.Turn(ctx, input, func(line string) {
			fmt.Println(line)
		})
		if err != nil {
			if errors.Is(err, llm.ErrToolsUnsupported) {
				fmt.Fprintf(os.Stderr, "\nFatal: %v\n", err)
				fmt.Fprintln(os.Stderr, "Pick a model with tool-calling support (for example functiongemma) and restart.")
				os.Exit(1)
			}
			fmt.Printf("Something went wrong: %v\n", err)
			continue
		}
		fmt.Printf("Assistant: %s\n", answer)
	}
}
