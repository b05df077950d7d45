// Package images downloads trademark document images referenced by fetched
// records. Downloads are idempotent: a file that already exists on disk is
// never re-fetched, so interrupted runs can be resumed by running again.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ipharvest/trademark-harvester/pkg/logging"
	"github.com/ipharvest/trademark-harvester/pkg/registry"
)

var (
	imagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_images_total",
		Help: "Total image downloads by outcome",
	}, []string{"status"})

	imageBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_image_bytes_total",
		Help: "Total bytes written for downloaded images",
	})
)

// Status is the outcome of one image download.
type Status string

const (
	// StatusDownloaded means the file was fetched and written.
	StatusDownloaded Status = "downloaded"

	// StatusSkipped means the file already existed on disk.
	StatusSkipped Status = "skipped"

	// StatusFailed means the fetch or write failed.
	StatusFailed Status = "failed"
)

// Result records the outcome of one image download.
type Result struct {
	Ref    registry.ImageRef
	Path   string
	Status Status
	Bytes  int64
	Err    error
}

// Summary aggregates a download batch.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Config controls the downloader.
type Config struct {
	// Dir is the root directory for downloaded images.
	Dir string

	// Concurrency is the number of parallel downloads.
	Concurrency int

	// Timeout bounds each individual download.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Dir:         "images",
		Concurrency: 5,
		Timeout:     60 * time.Second,
	}
}

// Downloader fetches image files concurrently.
type Downloader struct {
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger
}

// New creates a Downloader.
func New(cfg Config) (*Downloader, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("image directory is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logging.NewLogger("images"),
	}, nil
}

// Download fetches every referenced image under a worker pool. Individual
// failures are recorded and do not stop the batch; the returned error covers
// only setup problems or context cancellation.
func (d *Downloader) Download(ctx context.Context, refs []registry.ImageRef) ([]Result, error) {
	if len(refs) == 0 {
		return []Result{}, nil
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}

	d.logger.Info().
		Int("images", len(refs)).
		Int("concurrency", d.cfg.Concurrency).
		Str("dir", d.cfg.Dir).
		Msg("Starting image downloads")

	results := make([]Result, len(refs))

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range refs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < d.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.downloadOne(ctx, refs[i])
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summary Summary
	for _, res := range results {
		switch res.Status {
		case StatusDownloaded:
			summary.Downloaded++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}
	d.logger.Info().
		Int("downloaded", summary.Downloaded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Image downloads complete")

	return results, nil
}

// downloadOne fetches a single image to its target path. An existing file is
// left untouched; a crashed run never leaves a half-written target because
// data goes to a temp file first and reaches the final name via rename.
func (d *Downloader) downloadOne(ctx context.Context, ref registry.ImageRef) Result {
	res := Result{Ref: ref, Path: d.Path(ref)}

	if _, err := os.Stat(res.Path); err == nil {
		imagesTotal.WithLabelValues(string(StatusSkipped)).Inc()
		res.Status = StatusSkipped
		d.logger.Debug().Str("path", res.Path).Msg("Image already present, skipping")
		return res
	}

	n, err := d.fetch(ctx, ref.URL, res.Path)
	if err != nil {
		imagesTotal.WithLabelValues(string(StatusFailed)).Inc()
		res.Status = StatusFailed
		res.Err = err
		d.logger.Warn().
			Err(err).
			Str("application_num", ref.ApplicationNum).
			Str("url", ref.URL).
			Msg("Image download failed")
		return res
	}

	imagesTotal.WithLabelValues(string(StatusDownloaded)).Inc()
	imageBytesTotal.Add(float64(n))
	res.Status = StatusDownloaded
	res.Bytes = n
	d.logger.Debug().
		Str("path", res.Path).
		Int64("bytes", n).
		Msg("Image downloaded")
	return res
}

func (d *Downloader) fetch(ctx context.Context, rawURL, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".partial-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return 0, fmt.Errorf("finalize image: %w", err)
	}
	return n, nil
}

// Path returns the on-disk location for an image: one directory per
// application, file named <applicationNum>_<fileName>.
func (d *Downloader) Path(ref registry.ImageRef) string {
	app := sanitize(ref.ApplicationNum)
	file := sanitize(ref.FileName)
	return filepath.Join(d.cfg.Dir, app, app+"_"+file)
}

// sanitize strips path separators from registry-supplied name components so
// they cannot escape the image directory.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, string(filepath.Separator), "_")
	return strings.ReplaceAll(s, "..", "_")
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (d *Downloader) SetHTTPClient(client *http.Client) {
	d.httpClient = client
}
