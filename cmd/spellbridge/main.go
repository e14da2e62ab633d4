package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jeandeaual/go-locale"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/japaniel/spellbridge/pkg/archive"
	"github.com/japaniel/spellbridge/pkg/bridge"
	"github.com/japaniel/spellbridge/pkg/cache"
	"github.com/japaniel/spellbridge/pkg/config"
	"github.com/japaniel/spellbridge/pkg/dictionary"
	"github.com/japaniel/spellbridge/pkg/hostloop"
	"github.com/japaniel/spellbridge/pkg/spellchecker"
	"github.com/japaniel/spellbridge/pkg/textcheck"
	"github.com/japaniel/spellbridge/pkg/worker"
)

// Version is the CLI version.
const Version = "0.1.0"

// options are the parsed command line flags.
type options struct {
	configPath string
	archive    string
	dictDir    string
	fetch      string
	cachePath  string
	workers    int
	nBest      int
	verbose    bool

	check   string
	suggest string
	proof   string
	pageURL string

	build  string
	locale string
	title  string
	out    string

	version bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("spellbridge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to a TOML or YAML config file")
	fs.StringVar(&o.archive, "archive", "", "Path to the spelling archive")
	fs.StringVar(&o.dictDir, "dict-dir", "", "Directory of <locale>.zhfst archives, picked by system locale")
	fs.StringVar(&o.fetch, "fetch", "", "Download the archive from this URL (or github:owner/repo) if missing")
	fs.StringVar(&o.cachePath, "cache", "", "Path to a SQLite suggestion cache")
	fs.IntVar(&o.workers, "workers", 0, "Worker goroutines (default from config)")
	fs.IntVar(&o.nBest, "n", 0, "Maximum suggestions per word (default from config)")
	fs.BoolVar(&o.verbose, "v", false, "Debug logging")
	fs.StringVar(&o.check, "check", "", "Comma separated words to check")
	fs.StringVar(&o.suggest, "suggest", "", "Comma separated words to get suggestions for")
	fs.StringVar(&o.proof, "proof", "", "Text or HTML file to proofread")
	fs.StringVar(&o.pageURL, "url", "http://localhost/", "Base URL of the HTML file given to -proof")
	fs.StringVar(&o.build, "build", "", "Word list (JSON or TSV) to compile into -out")
	fs.StringVar(&o.locale, "locale", "", "Locale code written by -build")
	fs.StringVar(&o.title, "title", "", "Display title written by -build")
	fs.StringVar(&o.out, "out", "", "Archive written by -build")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "spellbridge: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintf(stdout, "spellbridge %s\n", Version)
		return nil
	}

	cfg := config.Default()
	if o.configPath != "" {
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	mergeFlags(&cfg, o)
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}

	level := cfg.Level()
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if o.build != "" {
		return buildArchive(o, stdout)
	}

	path, err := archivePath(cfg)
	if err != nil {
		return err
	}
	if cfg.Source != "" {
		if err := dictionary.EnsureArchive(ctx, path, cfg.Source, logger); err != nil {
			return err
		}
	}
	if o.check == "" && o.suggest == "" && o.proof == "" {
		return errors.New("nothing to do: give -check, -suggest, -proof or -build")
	}
	return serve(ctx, cfg, path, o, stdout, logger)
}

// mergeFlags lets command line flags override the config file.
func mergeFlags(cfg *config.Config, o *options) {
	if o.archive != "" {
		cfg.Archive = o.archive
	}
	if o.dictDir != "" {
		cfg.DictDir = o.dictDir
	}
	if o.fetch != "" {
		cfg.Source = o.fetch
	}
	if o.cachePath != "" {
		cfg.CachePath = o.cachePath
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.nBest > 0 {
		cfg.Suggest.NBest = o.nBest
	}
}

func buildArchive(o *options, stdout io.Writer) error {
	if o.out == "" {
		return errors.New("-build needs -out")
	}
	entries, err := dictionary.LoadWordList(o.build)
	if err != nil {
		return err
	}
	var meta *archive.Metadata
	if o.locale != "" || o.title != "" {
		meta = &archive.Metadata{Info: archive.Info{Locale: o.locale}}
		if o.title != "" {
			meta.Info.Titles = []archive.Title{archive.Tagged(o.locale, o.title)}
		}
	}
	n, err := dictionary.Compile(entries, meta, o.out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Compiled %d words into %s\n", n, o.out)
	return nil
}

// archivePath returns the configured archive, or the archive in DictDir
// matching the system locale.
func archivePath(cfg config.Config) (string, error) {
	if cfg.Archive != "" {
		return cfg.Archive, nil
	}
	if cfg.DictDir == "" {
		return "", errors.New("no archive: give -archive or -dict-dir")
	}
	locales, err := locale.GetLocales()
	if err != nil {
		return "", fmt.Errorf("detect system locale: %w", err)
	}
	return findArchive(cfg.DictDir, locales)
}

// findArchive looks for <locale>.zhfst in dir, trying each locale in order
// and then its base language.
func findArchive(dir string, locales []string) (string, error) {
	var tried []string
	for _, l := range locales {
		candidates := []string{l}
		if tag, err := language.Parse(l); err == nil {
			base, _ := tag.Base()
			candidates = append(candidates, tag.String(), base.String())
		}
		for _, c := range candidates {
			path := filepath.Join(dir, c+dictionary.ArchiveExt)
			tried = append(tried, path)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no archive for locales %v in %s (tried %s)", locales, dir, strings.Join(tried, ", "))
}

// serve runs the host loop and drives queries through it until every
// requested query has been answered.
func serve(ctx context.Context, cfg config.Config, path string, o *options, stdout io.Writer, logger *slog.Logger) error {
	loop := hostloop.New(hostloop.WithLogger(logger))
	pool := worker.NewWorkerPool(cfg.Workers, 0)
	pool.OnError = func(err error) { logger.Debug("job failed", "err", err) }
	pool.Start(ctx)
	defer pool.Close()

	sched := bridge.NewScheduler(loop, pool, bridge.WithLogger(logger))
	opts := []spellchecker.Option{
		spellchecker.WithConfig(cfg.Suggest),
		spellchecker.WithLogger(logger),
	}
	if cfg.CachePath != "" {
		store, err := cache.OpenFile(cfg.CachePath, cache.Options{FlushInterval: time.Second, Logger: logger})
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing cache", "err", err)
			}
		}()
		opts = append(opts, spellchecker.WithCache(store))
	}

	sc, err := spellchecker.Open(sched, path, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		defer loop.Close()
		defer sc.Close()
		return drive(gctx, loop, sc, o, stdout, logger)
	})
	return g.Wait()
}

// onLoop calls start on the loop goroutine and waits for the promise it returns.
func onLoop[T any](ctx context.Context, loop *hostloop.Loop, start func() *hostloop.Promise[T]) (T, error) {
	ch := make(chan *hostloop.Promise[T], 1)
	if err := loop.Post(func() { ch <- start() }); err != nil {
		var zero T
		return zero, err
	}
	select {
	case p := <-ch:
		return p.Await(ctx)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func splitWords(s string) []string {
	var out []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func drive(ctx context.Context, loop *hostloop.Loop, sc *spellchecker.SpellChecker, o *options, stdout io.Writer, logger *slog.Logger) error {
	out := termenv.NewOutput(stdout)
	bad := func(s string) string { return out.String(s).Foreground(out.Color("1")).Underline().String() }
	good := func(s string) string { return out.String(s).Foreground(out.Color("2")).String() }

	loc, _ := sc.Locale()
	if name, ok := sc.LocaleName(); ok {
		fmt.Fprintf(stdout, "Archive: %s (%s)\n", name, loc)
	}

	for _, w := range splitWords(o.check) {
		ok, err := onLoop(ctx, loop, func() *hostloop.Promise[bool] { return sc.IsCorrect(w) })
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(stdout, "%s: %s\n", w, good("correct"))
		} else {
			fmt.Fprintf(stdout, "%s: %s\n", w, bad("incorrect"))
		}
	}

	for _, w := range splitWords(o.suggest) {
		list, err := onLoop(ctx, loop, func() *hostloop.Promise[[]string] { return sc.Suggest(w) })
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintf(stdout, "%s: no suggestions\n", w)
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", w, strings.Join(list, ", "))
	}

	if o.proof == "" {
		return nil
	}
	content, err := os.ReadFile(o.proof)
	if err != nil {
		return err
	}
	text := string(content)
	if textcheck.LooksLikeHTML(content) {
		article, err := textcheck.ExtractArticle(content, o.pageURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Title: %s\n", article.Title)
		text = article.Text
	}
	seg, err := textcheck.NewSegmenter(loc)
	if err != nil {
		return err
	}
	p := &textcheck.Proofer{Checker: sc, Segmenter: seg, Loop: loop, Logger: logger}
	report, err := onLoop(ctx, loop, func() *hostloop.Promise[textcheck.Report] {
		return p.Proof(text, func(f textcheck.Finding) {
			line, col := position(text, f.Token.Offset)
			switch {
			case f.Err != nil:
				fmt.Fprintf(stdout, "%d:%d %s: check failed: %v\n", line, col, f.Token.Surface, f.Err)
			case len(f.Suggestions) == 0:
				fmt.Fprintf(stdout, "%d:%d %s\n", line, col, bad(f.Token.Surface))
			default:
				fmt.Fprintf(stdout, "%d:%d %s -> %s\n", line, col, bad(f.Token.Surface), strings.Join(f.Suggestions, ", "))
			}
		})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Proofread %d words (%d distinct): %d misspelled.\n",
		report.Tokens, report.Distinct, report.Misspelled())
	return nil
}

// position converts a byte offset into a 1-based line and rune column.
func position(text string, offset int) (line, col int) {
	line, col = 1, 1
	for _, r := range text[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
