// Package export dumps the record store to CSV and JSON artifacts.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/store"
)

var csvHeader = []string{"id", "full_name", "star_count", "updated_at", "last_crawled_at"}

// Exporter writes store contents to timestamped files under a directory.
type Exporter struct {
	store  store.Store
	dir    string
	clock  crawler.Clock
	logger *zap.Logger
}

// New builds an exporter writing into dir.
func New(st store.Store, dir string, clock crawler.Clock, logger *zap.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: st, dir: dir, clock: clock, logger: logger}
}

// Result names the artifacts one export produced.
type Result struct {
	CSVPath  string
	JSONPath string
	Records  int
}

// Export reads every record (ordered by stars descending) and writes one
// CSV and one JSON artifact. Partial files are removed on failure.
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	records, err := e.store.All(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read records: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	stamp := e.now().Format("20060102_150405")
	csvPath := filepath.Join(e.dir, fmt.Sprintf("repositories_%s.csv", stamp))
	jsonPath := filepath.Join(e.dir, fmt.Sprintf("repositories_%s.json", stamp))

	if err := writeFile(csvPath, func(w io.Writer) error {
		return WriteCSV(w, records)
	}); err != nil {
		return Result{}, err
	}
	if err := writeFile(jsonPath, func(w io.Writer) error {
		return WriteJSON(w, records)
	}); err != nil {
		_ = os.Remove(csvPath)
		return Result{}, err
	}

	e.logger.Info("export complete",
		zap.Int("records", len(records)),
		zap.String("csv", csvPath),
		zap.String("json", jsonPath),
	)
	return Result{CSVPath: csvPath, JSONPath: jsonPath, Records: len(records)}, nil
}

func (e *Exporter) now() time.Time {
	if e.clock != nil {
		return e.clock.Now()
	}
	return time.Now().UTC()
}

func writeFile(path string, fill func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err = fill(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []crawler.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.FullName,
			strconv.Itoa(rec.StarCount),
			rec.UpdatedAt.UTC().Format(time.RFC3339),
			rec.LastCrawledAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []crawler.Record) error {
	if records == nil {
		records = []crawler.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
