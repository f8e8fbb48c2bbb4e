// Command parquedbctl is a local CLI over a ParqueDB database directory:
// create/get/find/history/compact/health, one process per invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/parquedb/parquedb/engine"
	"github.com/parquedb/parquedb/storage/fs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "parquedbctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: parquedbctl <create|get|find|history|compact|health> [flags]")
	}
	sub := args[0]
	rest := args[1:]

	root := flag.NewFlagSet(sub, flag.ExitOnError)
	configFile := root.String("config", "", "path to a parquedbctl config file (default .parquedbctl.yaml)")

	switch sub {
	case "create":
		return cmdCreate(root, configFile, rest)
	case "get":
		return cmdGet(root, configFile, rest)
	case "find":
		return cmdFind(root, configFile, rest)
	case "history":
		return cmdHistory(root, configFile, rest)
	case "compact":
		return cmdCompact(root, configFile, rest)
	case "health":
		return cmdHealth(root, configFile, rest)
	default:
		return fmt.Errorf("unknown subcommand %q", sub)
	}
}

// openEngine loads config and opens an Engine over a filesystem backend
// rooted at its dbPath, used by every subcommand.
func openEngine(configFile string) (*engine.Engine, func(), error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	backend, err := fs.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db at %s: %w", cfg.DBPath, err)
	}
	e := engine.New(engine.Config{
		Backend:              backend,
		Logger:               slog.New(slog.NewTextHandler(os.Stderr, nil)),
		CacheCapacity:        cfg.CacheCapacityBytes,
		CacheTTL:             cfg.CacheTTL,
		RowGroupSize:         cfg.RowGroupSize,
		CompactionMinAge:     cfg.CompactionMinAge,
		CompactionMaxPending: cfg.CompactionMaxPending,
	})
	return e, e.Dispose, nil
}

func bgCtx() context.Context {
	return context.Background()
}
