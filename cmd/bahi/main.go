package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hurttlocker/bahi/internal/config"
	"github.com/hurttlocker/bahi/internal/lexicon"
	"github.com/hurttlocker/bahi/internal/pipeline"
	"github.com/hurttlocker/bahi/internal/store"
)

const version = "0.3.0"

// Global flags, set by parseGlobalFlags before the subcommand runs.
var (
	globalConfigPath string
	globalDBPath     string
	globalLexicon    string
	globalWorkers    string
	globalLogLevel   string
	globalLogFormat  string
	globalVerbose    bool
)

func main() {
	args := parseGlobalFlags(os.Args[1:])
	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch args[0] {
	case "extract":
		err = runExtract(args[1:])
	case "format":
		err = runFormat(args[1:])
	case "serve":
		err = runServe(args[1:])
	case "mcp":
		err = runMCP(args[1:])
	case "runs":
		err = runRuns(args[1:])
	case "search":
		err = runSearch(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "columns":
		err = runColumns(args[1:])
	case "config":
		err = runConfig(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("bahi %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseGlobalFlags strips global flags from args, storing them in the
// globals, and returns the rest.
func parseGlobalFlags(args []string) []string {
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if v, ok := globalValue(arg, args, &i, "--config"); ok {
			globalConfigPath = v
			continue
		}
		if v, ok := globalValue(arg, args, &i, "--db"); ok {
			globalDBPath = v
			continue
		}
		if v, ok := globalValue(arg, args, &i, "--lexicon"); ok {
			globalLexicon = v
			continue
		}
		if v, ok := globalValue(arg, args, &i, "--workers"); ok {
			globalWorkers = v
			continue
		}
		if v, ok := globalValue(arg, args, &i, "--log-level"); ok {
			globalLogLevel = v
			continue
		}
		if v, ok := globalValue(arg, args, &i, "--log-format"); ok {
			globalLogFormat = v
			continue
		}
		if arg == "--verbose" || arg == "-V" {
			globalVerbose = true
			continue
		}
		rest = append(rest, arg)
	}
	return rest
}

// globalValue matches "--name value" and "--name=value".
func globalValue(arg string, args []string, i *int, name string) (string, bool) {
	if strings.HasPrefix(arg, name+"=") {
		return strings.TrimPrefix(arg, name+"="), true
	}
	if arg == name && *i+1 < len(args) {
		*i++
		return args[*i], true
	}
	return "", false
}

// resolveConfig merges defaults, the config file, env and global flags.
func resolveConfig() (config.ResolvedConfig, error) {
	level := globalLogLevel
	if globalVerbose && level == "" {
		level = "debug"
	}
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:   globalConfigPath,
		CLIDBPath:    globalDBPath,
		CLILexicon:   globalLexicon,
		CLIWorkers:   globalWorkers,
		CLILogLevel:  level,
		CLILogFormat: globalLogFormat,
	})
}

// setup resolves configuration and builds the logger and pipeline every
// extraction command needs. Logs go to stderr so stdout stays clean for data.
func setup() (config.ResolvedConfig, *pipeline.Pipeline, *slog.Logger, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	logger := config.NewLogger(cfg.LogLevel.Value, cfg.LogFormat.Value, os.Stderr)

	lex, err := lexicon.Load(cfg.LexiconPath.Value)
	if err != nil {
		return cfg, nil, nil, err
	}
	p := pipeline.New(lex,
		pipeline.WithLogger(logger),
		pipeline.WithWorkers(cfg.Workers.Int(0)),
		pipeline.WithBlockTimeout(cfg.BlockTimeout.Duration(pipeline.DefaultBlockTimeout)),
	)
	logger.Debug("pipeline ready",
		slog.String("lexicon", lex.Version),
		slog.String("lexicon_source", string(cfg.LexiconPath.Source)),
	)
	return cfg, p, logger, nil
}

func openStore(cfg config.ResolvedConfig) (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func printUsage() {
	fmt.Printf(`bahi %s - individual records from Devanagari pilgrimage ledgers

Usage:
  bahi [global flags] <command> [arguments]

Commands:
  extract [path...]   Extract records from files, directories or stdin (-)
  format [path]       Reflow ledger text into one paragraph per record
  serve               Serve the HTTP API
  mcp                 Serve the MCP tools over stdio
  runs                List saved runs (runs show <id>, runs delete <id>)
  search <query>      Search saved records by name or place
  stats [--vacuum]    Show database statistics, optionally compacting first
  columns             Print the output column order
  config              Print the resolved configuration
  version             Print version

Extract Flags:
  -f, --format <f>    Output format: csv, xlsx or json (default: from --out, else csv)
  -o, --out <file>    Write to file instead of stdout (required for xlsx)
  -r, --recursive     Descend into subdirectories
  --save              Save the run to the database
  --source <name>     Source label stored with the run

Global Flags:
  --config <path>     Config file (default: ~/.bahi/config.yaml)
  --db <path>         Database path (default: ~/.bahi/bahi.db)
  --lexicon <path>    Lexicon YAML replacing the built-in word lists
  --workers <n>       Blocks analyzed in parallel (default: CPU count)
  --log-level <l>     debug, info, warn or error
  --log-format <f>    text or json
  -V, --verbose       Shorthand for --log-level debug
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
