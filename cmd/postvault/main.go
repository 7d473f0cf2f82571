package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/postvault/internal/admin"
	"github.com/dshills/postvault/internal/config"
	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/embedder"
	"github.com/dshills/postvault/internal/indexer"
	"github.com/dshills/postvault/internal/logger"
	"github.com/dshills/postvault/internal/mcp"
	"github.com/dshills/postvault/internal/searcher"
	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("postvault", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file read on startup and rewritten after a database switch")
	addr := fs.String("addr", "", "HTTP listen address, overrides PORT")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
	showVersion := fs.Bool("version", false, "print version information and exit")
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: postvault [flags] [serve | mcp | init <path> | embed [--force] [--workers n] <path>]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		printVersion(stdout)
		return nil
	}

	command, rest := "serve", fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	switch command {
	case "init":
		return runInit(ctx, rest, stdout)
	case "embed":
		return runEmbed(ctx, rest, stdout, stderr, *logLevel)
	case "serve", "mcp":
		// Global flags may also follow the command name
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return err
		}
		if fs.NArg() > 0 {
			return fmt.Errorf("unexpected argument %q", fs.Arg(0))
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Stdout is reserved for the MCP protocol, so logs always go to stderr
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	log.Info("postvault starting",
		"version", version,
		"command", command,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"vector_extension", storage.VectorExtensionAvailable)

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	if command == "mcp" {
		log.Info("MCP server ready, listening on stdio")
		err = mcp.NewServer(a.repo, a.search, version, log).Serve(ctx, stdin, stdout)
		return errors.Join(err, a.close())
	}
	return serveHTTP(ctx, cfg, a, log)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "postvault\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
	fmt.Fprintf(w, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
}

// runInit creates an empty content file with the current schema
func runInit(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: postvault init <path>")
	}

	db, err := storage.Create(ctx, args[0])
	if err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	fmt.Fprintf(stdout, "created %s (schema %s)\n", args[0], storage.CurrentSchemaVersion)
	return nil
}

// runEmbed fills in missing post embeddings in a content file
func runEmbed(ctx context.Context, args []string, stdout, stderr io.Writer, level string) error {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "re-embed posts that already have a vector")
	workers := fs.Int("workers", 0, "concurrent embedding calls (default: number of CPUs)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: postvault embed [--force] [--workers n] <path>")
	}
	path := fs.Arg(0)

	if level == "" {
		level = "info"
	}
	log, err := logger.New(level, "text", stderr)
	if err != nil {
		return err
	}

	emb, err := embedder.NewFromEnv(storage.EmbeddingDimensions)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	idx, err := indexer.New(emb, log)
	if err != nil {
		return err
	}

	db, err := storage.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	stats, err := idx.IndexEmbeddings(ctx, db, &indexer.Config{Workers: *workers, Force: *force})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "embedded %d, skipped %d, failed %d in %s\n",
		stats.PostsEmbedded, stats.PostsSkipped, stats.PostsFailed, stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(stdout, "  %s\n", msg)
	}
	if stats.PostsFailed > 0 {
		return fmt.Errorf("%d posts could not be embedded", stats.PostsFailed)
	}
	return nil
}

// app is the storage, content and search stack shared by both servers
type app struct {
	handle   *storage.Handle
	repo     *content.Repository
	search   *searcher.Searcher
	switcher *admin.Switcher
}

func openApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	pool, err := storage.OpenPool(ctx, cfg.DatabaseURL, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckSchema(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("cannot serve %s: %w", cfg.DatabaseURL, err)
	}

	handle := storage.NewHandle(pool, storage.HandleOptions{
		DrainInterval: cfg.DrainInterval,
		DrainAttempts: cfg.DrainAttempts,
		Logger:        log,
	})
	exec := storage.NewExecutor(handle, storage.ExecutorOptions{
		Workers:        cfg.PoolSize,
		AcquireTimeout: cfg.AcquireTimeout,
		Logger:         log,
	})

	search := searcher.New(exec, searcher.Options{Logger: log})
	envFile := cfg.EnvFile

	return &app{
		handle: handle,
		repo:   content.NewRepository(exec, log),
		search: search,
		switcher: admin.NewSwitcher(handle, admin.Options{
			DataDir: cfg.DataDir,
			Persist: func(path string) error {
				return config.PersistDatabaseURL(envFile, path)
			},
			Caches:   []admin.CacheInvalidator{search},
			PoolSize: cfg.PoolSize,
			Logger:   log,
		}),
	}, nil
}

func (a *app) close() error {
	return a.handle.Close()
}

// serveHTTP runs until ctx is cancelled or the listener fails. The HTTP
// server is shut down before the storage handle closes.
func serveHTTP(ctx context.Context, cfg *config.Config, a *app, log *slog.Logger) error {
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: web.New(web.Options{
			Repository: a.repo,
			Searcher:   a.search,
			Switcher:   a.switcher,
			Handle:     a.handle,
			Site:       cfg.Site,
			AdminToken: cfg.AdminToken,
			Logger:     log,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr, "database", a.handle.PrimaryPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := a.close(); closeErr != nil {
		log.Error("failed to close storage", "err", closeErr)
		err = errors.Join(err, closeErr)
	}
	log.Info("server stopped")
	return err
}
