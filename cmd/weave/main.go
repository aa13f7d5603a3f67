// Package main is the weave CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/cli"
	"github.com/weaveai/weave/internal/config"
	"github.com/weaveai/weave/internal/extract"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/qualify"
	"github.com/weaveai/weave/internal/server"
	"github.com/weaveai/weave/internal/storage"
	"github.com/weaveai/weave/internal/watcher"
	"github.com/weaveai/weave/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/weave/config.yaml"

// loadConfig loads config from path. When path is the default and config.yaml exists in
// the current directory, that file is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Secrets usually live in .env during development; a missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "archive":
		runArchive()
	case "documents":
		runDocuments()
	case "ask":
		runAsk()
	case "qualify":
		runQualify()
	case "version", "--version", "-v":
		fmt.Printf("weave version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath *string
	debug      *bool
	output     *string
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

// setup loads config, builds the logger and parses the output format. It exits on failure.
func setup(f commonFlags) (*config.Config, *zap.Logger, cli.OutputFormat) {
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *f.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, format
}

func exitOnError(logger *zap.Logger, msg string, err error) {
	if err == nil {
		return
	}
	_ = logger.Sync()
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func runServer() {
	fs, common := newFlagSet("server")
	_ = fs.Parse(os.Args[2:])
	cfg, logger, _ := setup(common)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	pipeline, err := initializeEnquiryPipeline(ctx, cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize enquiry pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	go func() {
		for err := range pipeline.AuditLog.Failures() {
			logger.Error("Audit write failed", zap.Error(err))
		}
	}()

	if cfg.Qualification.Watch && cfg.Qualification.RulesPath != "" {
		rulesWatcher := watcher.ForFile(cfg.Qualification.RulesPath, func(string) {
			_ = components.Rules.Reload()
		}, watcher.WithLogger(logger))
		if err := rulesWatcher.Start(ctx); err != nil {
			logger.Fatal("Failed to watch rules file", zap.Error(err))
		}
		defer rulesWatcher.Stop()
	}

	if cfg.Ingest.WatchDir != "" {
		inbox := watcher.New(
			[]string{cfg.Ingest.WatchDir},
			watcher.MatchExtensions(extract.SupportedExtensions...),
			components.Ingester.HandleChange(cfg.Ingest.ApprovedBy),
			components.Ingester.HandleRemove,
			watcher.WithLogger(logger),
		)
		if err := inbox.Start(ctx); err != nil {
			logger.Fatal("Failed to watch ingest directory", zap.Error(err))
		}
		defer inbox.Stop()
		inbox.SyncExisting()
	}

	srv := server.NewServer(server.Services{
		Enquiries: pipeline.Service,
		Answers:   components.Synthesizer,
		Rules:     components.Rules,
		Store:     components.Storage,
		Ingest:    components.Ingester,
		Audit:     pipeline.AuditReader,
	}, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs, common := newFlagSet("ingest")
	approvedBy := fs.String("approved-by", "", "name of the person approving the documents (required)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: weave ingest --approved-by <name> [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 1 || *approvedBy == "" {
		fs.Usage()
		os.Exit(1)
	}
	cfg, logger, format := setup(common)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	exitOnError(logger, "Failed to initialize", err)
	defer components.Close()

	var all []*models.Document
	for _, path := range fs.Args() {
		docs, err := components.Ingester.IngestFile(ctx, path, *approvedBy)
		exitOnError(logger, "Ingest failed", err)
		all = append(all, docs...)
	}
	exitOnError(logger, "Output failed", cli.WriteDocuments(os.Stdout, all, format))
}

func runArchive() {
	fs, common := newFlagSet("archive")
	byID := fs.Bool("id", false, "treat arguments as document ids instead of document names")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: weave archive [--id] [flags] <name|id>...")
		os.Exit(1)
	}
	cfg, logger, _ := setup(common)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	exitOnError(logger, "Failed to initialize", err)
	defer components.Close()

	for _, arg := range fs.Args() {
		if *byID {
			exitOnError(logger, "Archive failed", components.Ingester.ArchiveDocument(ctx, arg))
			fmt.Printf("archived %s\n", arg)
			continue
		}
		n, err := components.Ingester.ArchiveByName(ctx, arg)
		exitOnError(logger, "Archive failed", err)
		fmt.Printf("archived %d documents named %s\n", n, arg)
	}
}

func runDocuments() {
	fs, common := newFlagSet("documents")
	_ = fs.Parse(os.Args[2:])
	cfg, logger, format := setup(common)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	exitOnError(logger, "Failed to initialize", err)
	defer components.Close()

	docs, err := components.Storage.ListApprovedDocuments(ctx)
	exitOnError(logger, "List documents failed", err)
	exitOnError(logger, "Output failed", cli.WriteDocuments(os.Stdout, docs, format))
	if format == cli.OutputText {
		if size, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
			fmt.Printf("\nDisk usage: %d bytes\n", size)
		}
	}
}

func runAsk() {
	fs, common := newFlagSet("ask")
	safe := fs.Bool("safe", true, "only answer from active approved documents and list sources")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: weave ask [flags] <question>")
		os.Exit(1)
	}
	cfg, logger, format := setup(common)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	exitOnError(logger, "Failed to initialize", err)
	defer components.Close()

	if *safe {
		exitOnError(logger, "Output failed", cli.WriteSafeAnswer(os.Stdout, components.Synthesizer.GenerateSafeAnswer(ctx, question), format))
		return
	}
	exitOnError(logger, "Output failed", cli.WriteAnswer(os.Stdout, components.Synthesizer.AnswerWithRetrieval(ctx, question), format))
}

func runQualify() {
	fs, common := newFlagSet("qualify")
	product := fs.String("product", "", "product interest")
	budget := fs.String("budget", "", "budget (number)")
	timeline := fs.String("timeline", "", "timeline, e.g. immediate")
	useCase := fs.String("use-case", "", "use case")
	var extra fieldFlags
	fs.Var(&extra, "field", "extra field as key=value (repeatable)")
	_ = fs.Parse(os.Args[2:])

	data := buildEnquiryData(*product, *budget, *timeline, *useCase, extra)
	cfg, logger, format := setup(common)
	defer logger.Sync()

	rules, err := qualify.LoadSnapshot(cfg.Qualification.RulesPath, logger)
	exitOnError(logger, "Failed to load rules", err)
	exitOnError(logger, "Output failed", cli.WriteDecision(os.Stdout, qualify.Evaluate(data, rules.Rules()), format))
}

// buildQuery joins positional args so multi-word questions work with or without quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after positional arguments to the front so
// flag.Parse sees them ("weave ask what is covered --output json").
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`weave - Answers from approved content, qualification, and human handoff

Usage:
  weave server [flags]                           Start the HTTP server
  weave ingest --approved-by <name> <file>...    Approve and ingest documents
  weave archive [--id] <name|id>...              Archive documents by name or id
  weave documents [flags]                        List approved documents
  weave ask [flags] <question>                   Answer a question from approved content
  weave qualify [flags]                          Evaluate qualification rules
  weave version                                  Show version
  weave help                                     Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/weave/config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Ask Flags:
  --safe             Only use active approved documents and list sources (default: true)

Qualify Flags:
  --product, --budget, --timeline, --use-case    Qualification data
  --field key=value                              Extra field (repeatable)

Examples:
  weave server
  weave ingest --approved-by alice docs/warranty.md docs/pricing.xlsx
  weave ask what does the warranty cover
  weave qualify --budget 15000 --output json
  weave archive warranty.md`)
}
