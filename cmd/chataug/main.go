// Command chataug augments a chat web page with a quick-action panel,
// input guidance and keyboard shortcuts, and keeps them in place while the
// page re-renders.
//
// Usage:
//
//	chataug -config chataug.yaml                 # augment pages from YAML config
//	chataug -url http://localhost:8000           # augment a single page
//	chataug -preview page.html -out out.html     # augment a saved page offline
//	chataug -preview page.html -out out.html -watch
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/chataug/augment"
)

func main() {
	configPath := flag.String("config", "", "path to chataug.yaml config file")
	singleURL := flag.String("url", "", "augment a single URL")
	previewPath := flag.String("preview", "", "augment a saved HTML page without a browser")
	outPath := flag.String("out", "", "preview output file (default stdout)")
	watch := flag.Bool("watch", false, "with -preview: re-render whenever the page file changes")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *previewPath, *outPath, *watch); err != nil {
		logger.Error("chataug: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, previewPath, outPath string, watch bool) error {
	cfg := augment.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = augment.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if previewPath != "" {
		return runPreview(ctx, logger, cfg, previewPath, outPath, watch)
	}

	if singleURL != "" {
		if err := singlePage(cfg, singleURL); err != nil {
			return fmt.Errorf("-url: %w", err)
		}
		return runLive(ctx, logger, cfg)
	}

	if configPath != "" {
		return runLive(ctx, logger, cfg)
	}

	fmt.Fprintln(os.Stderr, "usage: chataug -config <file> | -url <url> | -preview <file> [-out <file>] [-watch]")
	os.Exit(2)
	return nil
}

// singlePage points cfg at url alone, with the same checks a config file
// gets.
func singlePage(cfg *augment.Config, url string) error {
	cfg.Pages = []augment.PageConfig{{ID: "page-1", URL: url}}
	return cfg.Validate()
}

func runLive(ctx context.Context, logger *slog.Logger, cfg *augment.Config) error {
	if len(cfg.Pages) == 0 {
		return fmt.Errorf("no pages configured")
	}
	a := augment.New(cfg, logger, augment.SinksFromConfig(cfg, nil, logger)...)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	for id, st := range a.Stats() {
		logger.Info("chataug: page stats", "id", id,
			"batches", st.Batches, "echoes", st.SelfEchoes,
			"restorations", st.Restorations, "dispatches", st.Dispatches)
	}
	a.Stop()
	return nil
}

func runPreview(ctx context.Context, logger *slog.Logger, cfg *augment.Config, path, outPath string, watch bool) error {
	// Activity goes to stderr so the rendered page can go to stdout.
	a := augment.New(cfg, logger, augment.NewStdoutSink(os.Stderr))
	defer a.Stop()

	var selectors map[string][]string
	if len(cfg.Pages) > 0 {
		selectors = cfg.Pages[0].Selectors
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	p, err := a.Preview("preview", f, selectors)
	f.Close()
	if err != nil {
		return err
	}
	if err := p.Settle(); err != nil {
		return err
	}
	if err := writePreview(p, outPath); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	return watchPreview(ctx, logger, p, path, outPath)
}

// watchPreview watches the page's directory rather than the file: editors
// save by renaming over it.
func watchPreview(ctx context.Context, logger *slog.Logger, p *augment.Preview, path, outPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("chataug: watching", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("chataug: watch error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := reload(p, abs, outPath); err != nil {
				logger.Warn("chataug: reload", "path", abs, "error", err)
				continue
			}
			st := p.Session().Stats()
			logger.Info("chataug: re-rendered", "restorations", st.Restorations)
		}
	}
}

func reload(p *augment.Preview, path, outPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := p.Reload(f); err != nil {
		return err
	}
	return writePreview(p, outPath)
}

func writePreview(p *augment.Preview, outPath string) error {
	if outPath == "" {
		return p.Render(os.Stdout)
	}
	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := p.Render(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}
