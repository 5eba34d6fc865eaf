package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/config"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/pool"
	"github.com/ironsheep/coin-counter/internal/render"
	"github.com/ironsheep/coin-counter/internal/server"
	"github.com/ironsheep/coin-counter/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errSomeFailed is returned when at least one input image could not be
// processed.
var errSomeFailed = errors.New("some images failed")

func main() {
	// Handle --version and --help before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("coin-counter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		}
	}

	// Logs go to stderr; stdout carries reports or the MCP protocol.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debug := os.Getenv("COIN_COUNTER_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("Coin Counter v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, debug); err != nil {
		if errors.Is(err, errSomeFailed) {
			os.Exit(1)
		}
		log.Fatalf("Error: %v", err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "coin-counter - count and value US coins in photographs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  coin-counter [options] <image-or-directory>...")
	fmt.Fprintln(w, "  coin-counter serve [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -config <file>   Settings file (.yaml, .yml or .ini)")
	fmt.Fprintln(w, "  -templates <dir> Directory holding the eight reference images")
	fmt.Fprintln(w, "  -out <dir>       Directory for annotated images (default: next to input)")
	fmt.Fprintln(w, "  -db <file>       Record results in this SQLite database")
	fmt.Fprintln(w, "  -workers <n>     Goroutines per image (0 = one per CPU)")
	fmt.Fprintln(w, "  -no-annotate     Do not write annotated images")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  COIN_COUNTER_LOG_LEVEL=debug    Enable debug logging")
	fmt.Fprintln(w, "  COIN_COUNTER_TEMPLATES=<dir>    Override the templates directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The serve command speaks MCP over stdin/stdout.")
}

// options are the command line settings layered over the settings file.
type options struct {
	configPath string
	templates  string
	outDir     string
	db         string
	workers    int
	noAnnotate bool
	serve      bool
	inputs     []string
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	if len(args) > 0 && args[0] == "serve" {
		opts.serve = true
		args = args[1:]
	}

	fs := flag.NewFlagSet("coin-counter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", "", "settings file")
	fs.StringVar(&opts.templates, "templates", "", "templates directory")
	fs.StringVar(&opts.outDir, "out", "", "output directory")
	fs.StringVar(&opts.db, "db", "", "history database")
	fs.IntVar(&opts.workers, "workers", -1, "goroutines per image")
	fs.BoolVar(&opts.noAnnotate, "no-annotate", false, "skip annotated output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.inputs = fs.Args()
	if !opts.serve && len(opts.inputs) == 0 {
		return nil, fmt.Errorf("no input images given (see --help)")
	}
	return opts, nil
}

// settings loads the settings file and applies command line overrides.
func (o *options) settings() (*config.App, error) {
	app, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.templates != "" {
		app.TemplatesDir = o.templates
	}
	if o.outDir != "" {
		app.OutDir = o.outDir
	}
	if o.db != "" {
		app.HistoryDB = o.db
	}
	if o.workers >= 0 {
		app.Workers = o.workers
	}
	if o.noAnnotate {
		app.Annotate = false
	}
	return app, app.Validate()
}

func run(ctx context.Context, args []string, stdout io.Writer, debug bool) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	app, err := opts.settings()
	if err != nil {
		return err
	}

	cache := imaging.NewImageCache()
	overrides, err := app.TemplateOverrides()
	if err != nil {
		return err
	}
	lib, err := coins.LoadLibrary(app.TemplatesDir, cache, overrides)
	if err != nil {
		return err
	}

	var detOpts []coins.Option
	if debug {
		detOpts = append(detOpts, coins.WithLogger(log.Default()))
	}
	det, err := coins.NewDetector(app.Config, lib, detOpts...)
	if err != nil {
		return err
	}

	var history *store.Store
	if app.HistoryDB != "" {
		if history, err = store.Open(app.HistoryDB); err != nil {
			return err
		}
		defer history.Close()
	}

	if opts.serve {
		srv := server.New(det,
			server.WithCache(cache),
			server.WithHistory(history),
			server.WithStyle(app.Style),
		)
		return srv.Run()
	}

	b := &batch{app: app, detector: det, cache: cache, history: history}
	return b.run(ctx, opts.inputs, stdout)
}

// batch processes input images and reports their coins.
type batch struct {
	app      *config.App
	detector *coins.Detector
	cache    *imaging.ImageCache
	history  *store.Store
}

// report is the outcome for one input image.
type report struct {
	path   string
	result *coins.Result
	output string
	err    error
}

func (b *batch) run(ctx context.Context, inputs []string, w io.Writer) error {
	var files []string
	for _, in := range inputs {
		list, err := imaging.ListImages(in)
		if err != nil {
			return err
		}
		files = append(files, list...)
	}

	// One image at a time; each already fans out over its candidates.
	reports, _ := pool.Map(ctx, 1, files, func(ctx context.Context, _ int, path string) (report, error) {
		return b.process(ctx, path), nil
	})

	failed := 0
	var grand coins.Value
	coinsFound := 0
	for i, r := range reports {
		if r.path == "" {
			r = report{path: files[i], err: ctx.Err()}
		}
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s: error: %v\n", r.path, r.err)
			continue
		}

		found := r.result.Coins()
		coinsFound += len(found)
		grand += r.result.Total
		fmt.Fprintf(w, "%s: %d coins, %s\n", r.path, len(found), r.result.Total)
		for _, c := range r.result.Counts() {
			fmt.Fprintf(w, "  %-20s x%d\n", c.Key.Label(), c.Count)
		}
		if r.output != "" {
			fmt.Fprintf(w, "  annotated: %s\n", r.output)
		}

		if b.history != nil {
			if _, err := b.history.Record(ctx, r.path, r.result); err != nil {
				log.Printf("Failed to record %s: %v", r.path, err)
			}
		}
	}

	if len(files) > 1 {
		fmt.Fprintf(w, "Total: %d coins in %d images, %s\n", coinsFound, len(files)-failed, grand)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSomeFailed, failed, len(files))
	}
	return nil
}

func (b *batch) process(ctx context.Context, path string) report {
	r := report{path: path}

	img, err := b.cache.Load(path)
	if err != nil {
		r.err = err
		return r
	}
	defer b.cache.Evict(path)

	if r.result, r.err = b.detector.DetectContext(ctx, img); r.err != nil {
		return r
	}

	if b.app.Annotate {
		annotated, err := render.Annotate(r.result, b.app.Style)
		if err != nil {
			r.err = err
			return r
		}
		r.output = imaging.OutputPath(path, b.app.OutDir)
		if err := imaging.Save(annotated, r.output); err != nil {
			r.err = err
			return r
		}
	}
	return r
}
