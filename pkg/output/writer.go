// Package output persists harvest results as a single JSON document.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ipharvest/trademark-harvester/pkg/logging"
	"github.com/ipharvest/trademark-harvester/pkg/registry"
)

// Writer serializes harvest results to disk.
type Writer struct {
	logger zerolog.Logger
}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{logger: logging.NewLogger("output")}
}

// Write serializes results as an indented JSON array and writes it to path.
// The write is atomic: data goes to a temp file in the target directory and
// is renamed into place, so a crash never leaves a truncated output file and
// any previous file at path survives a failed write intact.
func (w *Writer) Write(results []registry.FetchResult, path string) error {
	if results == nil {
		results = []registry.FetchResult{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}

	w.logger.Info().
		Str("path", path).
		Int("results", len(results)).
		Int("bytes", len(data)).
		Msg("Results written")

	return nil
}
