package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/stockengine/internal/infrastructure/config"
	"github.com/erp/stockengine/internal/infrastructure/logger"
)

// command runs one subcommand and returns a JSON-encodable result
type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) (any, error)
}

var commands = map[string]command{
	"import":                 {"--file path|--object key --mode absolute|relative --import-id id [--user id]", runImport},
	"ship":                   {"--order id [--version id] [--warehouse id ...] [--user id] [--comment text]", runShip},
	"ship-products":          {"--order id --product id=qty ... [--warehouse id ...] [--user id]", runShipProducts},
	"return":                 {"--order id --product id=qty ... [--reason text] [--user id]", runReturn},
	"complete-return":        {"--return-order id [--warehouse id] [--restock id=qty ...] [--dispose id=qty ...]", runCompleteReturn},
	"confirm-supplier-order": {"--id id [--user id]", runConfirmSupplierOrder},
	"stock-supplier-order":   {"--id id --product id=qty ... [--warehouse id] [--user id]", runStockSupplierOrder},
	"stock":                  {"--product id", runStock},
	"movements":              {"--product id [--page n] [--page-size n]", runMovements},
	"verify":                 {"--product id", runVerify},
	"strategies":             {"", runStrategies},
}

// cli is the state shared by subcommands
type cli struct {
	cfg    *config.Config
	log    *zap.Logger
	engine *engine
}

func main() {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to config.toml (default: search the working directory)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	base, err := logger.New(logger.FromLogConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, base, args[0], cmd, args[1:])
	stop()
	_ = logger.Sync(base)
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, base *zap.Logger, name string, cmd command, args []string) int {
	obs, log, err := setupObservability(ctx, cfg, base)
	if err != nil {
		base.Error("Failed to initialize telemetry", zap.Error(err))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obs.shutdown(shutdownCtx); err != nil {
			base.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	c := &cli{cfg: cfg, log: log}
	if name != "strategies" {
		c.engine, err = newEngine(ctx, cfg, log, obs)
		if err != nil {
			log.Error("Failed to initialize stock engine", zap.Error(err))
			return 1
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.engine.close(closeCtx); err != nil {
				log.Error("Error closing stock engine", zap.Error(err))
			}
		}()
	}

	log.Debug("Running command", zap.String("command", name))
	result, err := cmd.run(logger.WithContext(ctx, log), c, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		log.Error("Command failed", zap.String("command", name), zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("Failed to write result", zap.Error(err))
		return 1
	}
	return 0
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println(`Stock engine CLI

Usage:
  stockctl [flags] <command> [command flags]

Commands:`)
	for _, name := range names {
		fmt.Printf("  %-24s %s\n", name, commands[name].usage)
	}
	fmt.Println(`
Flags:
  -config string     Path to config.toml
  -log-level string  Override the configured log level

Environment Variables:
  Configuration values can be overridden with STOCK_ prefixed variables,
  e.g. STOCK_DATABASE_HOST, STOCK_REDIS_ENABLED, STOCK_STORAGE_BUCKET.

Examples:
  stockctl import --file counts.csv --mode absolute --import-id inventory-2026-10
  stockctl ship --order 3f0c... --warehouse 9a1e...
  stockctl stock-supplier-order --id 71b2... --product 5d4c...=12
  stockctl verify --product 5d4c...`)
}
