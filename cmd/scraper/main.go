package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"wholesale-scraper/internal/pipeline"
	"wholesale-scraper/internal/types"
)

func main() {
	godotenv.Load()

	cfg := types.DefaultConfig()
	stageName := flag.String("stage", "all", "pipeline stage to run: discover, fetch, extract or all")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	refetchIncomplete := flag.Bool("refetch-incomplete", false, "delete saved pages that fail the completeness check before fetching")
	flag.StringVar(&cfg.CookieFile, "cookies", cfg.CookieFile, "path to the exported session cookie file")
	flag.StringVar(&cfg.CategoryFile, "categories", cfg.CategoryFile, "optional file with category entry URLs, one per line")
	flag.StringVar(&cfg.ArtifactDir, "html-dir", cfg.ArtifactDir, "directory for saved rendered pages")
	flag.StringVar(&cfg.OutputDir, "out-dir", cfg.OutputDir, "directory for the xlsx report")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "maximum simultaneous page loads")
	flag.IntVar(&cfg.BrowserContexts, "contexts", cfg.BrowserContexts, "number of browser tab contexts to spread loads across")
	flag.BoolVar(&cfg.FullRefresh, "full-refresh", false, "refetch pages even when a saved copy exists")
	flag.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run the browser headless")
	flag.BoolVar(&cfg.BlockResources, "block-resources", cfg.BlockResources, "block images, fonts and analytics requests during page loads")
	flag.BoolVar(&cfg.UseImageFormula, "image-formulas", cfg.UseImageFormula, "render image cells as IMAGE() formulas instead of hyperlinks")
	flag.Parse()

	logger := newLogger(*verbose)

	stage, err := pipeline.ParseStage(*stageName)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(2)
	}
	if cfg.Concurrency < 1 || cfg.BrowserContexts < 1 {
		logger.Error("concurrency and contexts must both be at least 1")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, logger)
	if *refetchIncomplete {
		if err := p.AuditIncomplete(); err != nil {
			logger.Errorf("Artifact audit failed: %v", err)
			os.Exit(1)
		}
	}

	summary, err := p.Run(ctx, stage)
	if err != nil {
		logger.Errorf("Run failed: %v", err)
		os.Exit(1)
	}

	printSummary(logger, stage, summary)
}

const summaryRounding = 100 * time.Millisecond

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	level := logrus.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func printSummary(logger *logrus.Logger, stage pipeline.Stage, summary *pipeline.Summary) {
	logger.Infof("Stage %s finished in %s", stage, summary.Elapsed.Round(summaryRounding))
	for _, c := range summary.Categories {
		logger.Infof("  %-16s urls=%d fetched=%d skipped=%d failed=%d extracted=%d",
			c.Name, c.URLs, c.Succeeded, c.Skipped, c.Failed, c.Extracted)
	}
	urls, succeeded, failed, extracted := summary.Totals()
	logger.Infof("Totals: %d urls, %d pages available, %d failed, %d products extracted",
		urls, succeeded, failed, extracted)
	if summary.PeakInFlight > 0 {
		logger.Infof("Peak concurrent page loads: %d", summary.PeakInFlight)
	}
	if summary.ReportPath != "" {
		fmt.Printf("Report written to %s\n", summary.ReportPath)
	}
}
