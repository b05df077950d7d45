// Command harvester fetches trademark application records from the IPOS
// trademarks endpoint on data.gov.sg for a date range and writes them to a
// single JSON document, optionally downloading the referenced document
// images alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ipharvest/trademark-harvester/pkg/cache"
	"github.com/ipharvest/trademark-harvester/pkg/client"
	"github.com/ipharvest/trademark-harvester/pkg/config"
	"github.com/ipharvest/trademark-harvester/pkg/daterange"
	"github.com/ipharvest/trademark-harvester/pkg/images"
	"github.com/ipharvest/trademark-harvester/pkg/logging"
	"github.com/ipharvest/trademark-harvester/pkg/output"
	"github.com/ipharvest/trademark-harvester/pkg/ratelimit"
	"github.com/ipharvest/trademark-harvester/pkg/registry"
	"github.com/ipharvest/trademark-harvester/pkg/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		startDate      = flag.String("start-date", "", "First lodgement date to harvest (YYYY-MM-DD, required)")
		endDate        = flag.String("end-date", "", "Last lodgement date to harvest (YYYY-MM-DD, required)")
		outputPath     = flag.String("output", "trademark_data.json", "Output JSON file path")
		chunkSize      = flag.Int("chunk-size", 0, "Days per fetch chunk (overrides config)")
		concurrency    = flag.Int("concurrency", 0, "Maximum chunks in flight (overrides config)")
		downloadImages = flag.Bool("download-images", false, "Download document images referenced by records")
		imagesDir      = flag.String("images-dir", "", "Directory for downloaded images (overrides config)")
		configPath     = flag.String("config", "", "Optional config file (YAML)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *chunkSize > 0 {
		cfg.Fetch.ChunkSizeDays = *chunkSize
	}
	if *concurrency > 0 {
		cfg.Fetch.Concurrency = *concurrency
	}
	if *downloadImages {
		cfg.Images.Enabled = true
	}
	if *imagesDir != "" {
		cfg.Images.Dir = *imagesDir
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	if *startDate == "" || *endDate == "" {
		flag.Usage()
		return fmt.Errorf("--start-date and --end-date are required")
	}

	r, err := daterange.Parse(*startDate, *endDate)
	if err != nil {
		return fmt.Errorf("parse date range: %w", err)
	}
	chunks, err := daterange.Split(r, cfg.Fetch.ChunkSizeDays)
	if err != nil {
		return fmt.Errorf("split date range: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg := cfg.ClientConfig()
	clientCfg.Limiter = ratelimit.New(cfg.API.RPS, cfg.API.Burst, logging.NewLogger("ratelimit"))

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Cache.Addr, err)
		}
		defer redisClient.Close()
		clientCfg.Cache = cache.NewManager(redisClient, cfg.CacheTTL())
		logger.Info().Str("addr", cfg.Cache.Addr).Msg("Chunk cache enabled")
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create registry client: %w", err)
	}

	logger.Info().
		Str("range", r.String()).
		Int("chunks", len(chunks)).
		Int("chunk_size_days", cfg.Fetch.ChunkSizeDays).
		Int("concurrency", cfg.Fetch.Concurrency).
		Msg("Starting harvest")

	sched := scheduler.New(apiClient, cfg.RetryPolicy(), scheduler.Config{
		Concurrency: cfg.Fetch.Concurrency,
	})
	results, err := sched.Run(ctx, chunks)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	if err := output.NewWriter().Write(results, *outputPath); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if cfg.Images.Enabled {
		if err := downloadAllImages(ctx, cfg, results); err != nil {
			return err
		}
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
			logger.Error().
				Err(res.Err).
				Str("chunk", res.Date).
				Msg("Chunk left unharvested")
		}
	}
	logger.Info().
		Int("chunks", len(results)).
		Int("failed", failed).
		Str("output", *outputPath).
		Msg("Harvest complete")

	return nil
}

// downloadAllImages fetches every document image referenced by the harvested
// records. Individual image failures are logged inside the downloader and do
// not fail the run.
func downloadAllImages(ctx context.Context, cfg config.Config, results []registry.FetchResult) error {
	var refs []registry.ImageRef
	for _, res := range results {
		refs = append(refs, registry.ImageRefs(res.Items)...)
	}
	if len(refs) == 0 {
		return nil
	}

	downloader, err := images.New(cfg.DownloaderConfig())
	if err != nil {
		return fmt.Errorf("create image downloader: %w", err)
	}
	if _, err := downloader.Download(ctx, refs); err != nil {
		return fmt.Errorf("download images: %w", err)
	}
	return nil
}
