package labs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/fetcher"
	"github.com/pbaille/holoself/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeExtractor struct {
	result *llm.OCRResult
	err    error
	docs   []llm.Document
}

func (f *fakeExtractor) ExtractLabs(ctx context.Context, doc llm.Document) (*llm.OCRResult, error) {
	f.docs = append(f.docs, doc)
	return f.result, f.err
}

type memStore struct {
	rows []domain.LabResult
	err  error
}

func (m *memStore) AddLabResults(ctx context.Context, results []domain.LabResult) ([]domain.LabResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range results {
		results[i].ID = "lab-" + results[i].Marker
	}
	m.rows = append(m.rows, results...)
	return results, nil
}

func strPtr(s string) *string { return &s }

func extraction() *llm.OCRResult {
	return &llm.OCRResult{
		Date: strPtr("2025-02-20"),
		Lab:  strPtr("Synlab"),
		Markers: []llm.ClinicalResult{
			{Marker: "Vitamin D", Value: 25.3, Unit: "ng/mL", Status: "low"},
			{Marker: "Zinc", Value: 80, Unit: "µg/dL"},
		},
	}
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 fake"), 0o644))
	return path
}

func TestImportFile(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ex := &fakeExtractor{result: extraction()}
	st := &memStore{}
	im := NewImporter(ex, st, nil, zap.New(core))

	res, err := im.ImportFile(context.Background(), writePDF(t, "Analises-2025.PDF"))
	require.NoError(t, err)

	assert.Equal(t, "Analises-2025.PDF", res.Source)
	assert.Equal(t, "Synlab", res.Lab)
	assert.Equal(t, "2025-02-20", res.Date)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "lab-Zinc", res.Results[1].ID)
	assert.Equal(t, "unknown", res.Results[1].Status)
	assert.Equal(t, "2025-02-20", st.rows[0].TestDate)

	require.Len(t, ex.docs, 1)
	assert.Equal(t, []byte("%PDF-1.7 fake"), ex.docs[0].PDF)
	assert.Equal(t, 1, logs.FilterMessage("Lab report imported").Len())
}

func TestImportFile_Rejects(t *testing.T) {
	im := NewImporter(&fakeExtractor{result: extraction()}, &memStore{}, nil, nil)
	ctx := context.Background()

	_, err := im.ImportFile(ctx, writePDF(t, "report.txt"))
	assert.ErrorIs(t, err, ErrNotPDF)

	_, err = im.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestImport_NoMarkers(t *testing.T) {
	st := &memStore{}
	ex := &fakeExtractor{result: &llm.OCRResult{Markers: []llm.ClinicalResult{{Marker: "  "}}}}
	im := NewImporter(ex, st, nil, nil)

	_, err := im.Import(context.Background(), llm.Document{Name: "r.pdf", PDF: []byte("x")})
	assert.ErrorIs(t, err, ErrNoMarkers)
	assert.Empty(t, st.rows)
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()
	doc := llm.Document{Name: "r.pdf", PDF: []byte("x")}

	_, err := NewImporter(nil, &memStore{}, nil, nil).Import(ctx, doc)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	_, err = NewImporter(&fakeExtractor{err: llm.ErrUnsupportedDocument}, &memStore{}, nil, nil).Import(ctx, doc)
	assert.ErrorIs(t, err, llm.ErrUnsupportedDocument)

	_, err = NewImporter(&fakeExtractor{result: extraction()}, &memStore{err: errors.New("disk full")}, nil, nil).Import(ctx, doc)
	assert.EqualError(t, err, "disk full")
}

func TestImportURL(t *testing.T) {
	ex := &fakeExtractor{result: extraction()}
	fetch := func(ctx context.Context, url string) (*fetcher.Report, error) {
		assert.Equal(t, "www.lab.example.pt/r/1", url)
		return &fetcher.Report{URL: "https://www.lab.example.pt/r/1", Text: "Vitamina D | 25.3 | ng/mL"}, nil
	}
	im := NewImporter(ex, &memStore{}, fetch, nil)

	res, err := im.ImportURL(context.Background(), "www.lab.example.pt/r/1")
	require.NoError(t, err)

	assert.Equal(t, "https://www.lab.example.pt/r/1", res.Source)
	assert.Equal(t, "https://www.lab.example.pt/r/1", res.Results[0].PDFSource)
	assert.Equal(t, "Vitamina D | 25.3 | ng/mL", ex.docs[0].Text)
	assert.Nil(t, ex.docs[0].PDF)
}

func TestImportURL_FetchError(t *testing.T) {
	fetch := func(ctx context.Context, url string) (*fetcher.Report, error) {
		return nil, errors.New("HTTP 404: 404 Not Found")
	}
	im := NewImporter(&fakeExtractor{}, &memStore{}, fetch, nil)

	_, err := im.ImportURL(context.Background(), "https://x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch report")
}

func TestImportURL_TooLarge(t *testing.T) {
	fetch := func(ctx context.Context, url string) (*fetcher.Report, error) {
		return nil, fmt.Errorf("%w: over %d bytes", fetcher.ErrTooLarge, MaxPDFSize)
	}
	ex := &fakeExtractor{result: extraction()}
	im := NewImporter(ex, &memStore{}, fetch, nil)

	_, err := im.ImportURL(context.Background(), "https://lab.example.pt/big.pdf")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, ex.docs)
}

func TestImport_DropsUnreadableDate(t *testing.T) {
	ocr := extraction()
	ocr.Date = strPtr("março 2024")
	st := &memStore{}
	im := NewImporter(&fakeExtractor{result: ocr}, st, nil, nil)

	res, err := im.Import(context.Background(), llm.Document{Name: "r.pdf", PDF: []byte("x")})
	require.NoError(t, err)
	assert.Empty(t, res.Date)
	for _, row := range st.rows {
		assert.Empty(t, row.TestDate)
	}
}
