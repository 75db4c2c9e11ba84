// Package labs imports clinical lab reports: it reads a PDF file or a
// report URL, extracts the markers through an LLM and stores them.
package labs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/fetcher"
	"github.com/pbaille/holoself/internal/llm"
	"go.uber.org/zap"
)

// MaxPDFSize is the largest report accepted, local or downloaded
const MaxPDFSize = fetcher.MaxPDFSize

var (
	// ErrNotPDF is returned for local files without a .pdf extension
	ErrNotPDF = errors.New("only PDF files are accepted")
	// ErrTooLarge is returned for reports over MaxPDFSize
	ErrTooLarge = fetcher.ErrTooLarge
	// ErrNoMarkers is returned when extraction found nothing to store
	ErrNoMarkers = errors.New("no markers found in report")
)

// Store persists extracted lab results
type Store interface {
	AddLabResults(ctx context.Context, results []domain.LabResult) ([]domain.LabResult, error)
}

// FetchFunc downloads a report URL
type FetchFunc func(ctx context.Context, url string) (*fetcher.Report, error)

// Importer extracts and stores lab reports
type Importer struct {
	extractor llm.LabExtractor
	store     Store
	fetch     FetchFunc
	logger    *zap.Logger
}

// Result is what an import stored
type Result struct {
	Source  string             `json:"source"`
	Lab     string             `json:"lab,omitempty"`
	Date    string             `json:"date,omitempty"`
	Results []domain.LabResult `json:"results"`
}

// NewImporter creates an importer. fetch may be nil to use fetcher.Fetch.
func NewImporter(extractor llm.LabExtractor, store Store, fetch FetchFunc, logger *zap.Logger) *Importer {
	if fetch == nil {
		fetch = fetcher.Fetch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{extractor: extractor, store: store, fetch: fetch, logger: logger}
}

// ImportFile imports a local PDF report
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, ErrNotPDF
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat report: %w", err)
	}
	if info.Size() > MaxPDFSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), MaxPDFSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return im.Import(ctx, llm.Document{Name: filepath.Base(path), PDF: data})
}

// ImportURL downloads a report and imports it
func (im *Importer) ImportURL(ctx context.Context, url string) (*Result, error) {
	report, err := im.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	return im.Import(ctx, llm.Document{Name: report.URL, PDF: report.PDF, Text: report.Text})
}

// Import extracts markers from doc and stores them
func (im *Importer) Import(ctx context.Context, doc llm.Document) (*Result, error) {
	if im.extractor == nil {
		return nil, llm.ErrNotConfigured
	}
	if len(doc.PDF) > MaxPDFSize {
		return nil, ErrTooLarge
	}

	ocr, err := im.extractor.ExtractLabs(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract labs: %w", err)
	}

	rows := ocr.LabResults(doc.Name)
	if len(rows) == 0 {
		return nil, ErrNoMarkers
	}

	stored, err := im.store.AddLabResults(ctx, rows)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: doc.Name, Results: stored}
	if ocr.Lab != nil {
		res.Lab = *ocr.Lab
	}
	res.Date = stored[0].TestDate

	im.logger.Info("Lab report imported",
		zap.String("source", doc.Name),
		zap.Int("markers", len(stored)))

	return res, nil
}
