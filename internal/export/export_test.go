package export

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/models"
)

func TestGenerateMiniCodeModular(t *testing.T) {
	got := GenerateMiniCode("D30", "Placa espuma 600x200x200")
	assert.Equal(t, "D30-200x600x200", got)
}

func TestGenerateMiniCodeComposed(t *testing.T) {
	got := GenerateMiniCode("PL-200x300x150", "Placa standard")
	assert.Equal(t, "200x300x150", got)
}

func TestGenerateMiniCodeFallsBackToSupplierCode(t *testing.T) {
	got := GenerateMiniCode("ESP-BRANCA-01", "Espuma branca")
	assert.Equal(t, "ESP-BRANCA-01", got)
}

func TestParseDimensionsSeparators(t *testing.T) {
	d, ok := ParseDimensions("bloco 2000 x 1200x600")
	require.True(t, ok)
	assert.Equal(t, Dimensions{Length: 2000, Width: 1200, Height: 600}, d)

	_, ok = ParseDimensions("sem medidas")
	assert.False(t, ok)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// the cut point lands on the second byte of ã and must back off
	got := truncate("designação comprida", 11)
	assert.Equal(t, "designaç…", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "intacto", truncate("intacto", 20))
}

// --- fakes -----------------------------------------------------------------

type fakeDocs struct{ doc *models.Document }

func (f *fakeDocs) CreateIfNew(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	return doc, true, nil
}

func (f *fakeDocs) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.doc, nil
}

func (f *fakeDocs) ListByStatus(ctx context.Context, status constants.DocStatus, limit int) ([]models.Document, error) {
	return nil, nil
}
func (f *fakeDocs) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocStatus) error {
	return nil
}
func (f *fakeDocs) SetSupplier(ctx context.Context, id uuid.UUID, supplierID uint) error { return nil }
func (f *fakeDocs) SetNumbers(ctx context.Context, id uuid.UUID, number, poNumber string) error {
	return nil
}
func (f *fakeDocs) SetDocType(ctx context.Context, id uuid.UUID, docType constants.DocType) error {
	return nil
}
func (f *fakeDocs) SetPayload(ctx context.Context, id uuid.UUID, payload []byte) error { return nil }
func (f *fakeDocs) ReplacePages(ctx context.Context, id uuid.UUID, pages []models.Page) error {
	return nil
}
func (f *fakeDocs) ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.LineItem) error {
	return nil
}

type fakeMatches struct {
	result *models.MatchResult
	tasks  []models.ExceptionTask
}

func (f *fakeMatches) UpsertResult(ctx context.Context, result *models.MatchResult) error { return nil }

func (f *fakeMatches) GetResult(ctx context.Context, documentID uuid.UUID) (*models.MatchResult, error) {
	if f.result == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.result, nil
}

func (f *fakeMatches) AddException(ctx context.Context, task *models.ExceptionTask) error {
	return nil
}

func (f *fakeMatches) ReplaceBusinessExceptions(ctx context.Context, documentID uuid.UUID, tasks []models.ExceptionTask) error {
	return nil
}

func (f *fakeMatches) ListOpenExceptions(ctx context.Context, documentID uuid.UUID) ([]models.ExceptionTask, error) {
	return f.tasks, nil
}

func (f *fakeMatches) ResolveException(ctx context.Context, id uint) error { return nil }

type fakeMiniCodes struct {
	byIdentifier map[string]*models.MiniCode
	upserted     []models.MiniCode
}

func (f *fakeMiniCodes) Upsert(ctx context.Context, mc *models.MiniCode) error { return nil }

func (f *fakeMiniCodes) FindByIdentifier(ctx context.Context, identifier string) (*models.MiniCode, error) {
	if mc, ok := f.byIdentifier[identifier]; ok {
		return mc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMiniCodes) FindByCode(ctx context.Context, code string) (*models.MiniCode, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMiniCodes) BulkUpsert(ctx context.Context, mcs []models.MiniCode) (int, error) {
	f.upserted = append(f.upserted, mcs...)
	return len(mcs), nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- tests -----------------------------------------------------------------

func TestExportDocumentXLSX(t *testing.T) {
	docID := uuid.New()
	docs := &fakeDocs{doc: &models.Document{
		ID:       docID,
		Number:   "GR 5512/2026",
		PONumber: "2026/044",
		Lines: []models.LineItem{
			{
				SupplierCode: "ESP-100",
				InternalSKU:  "ESP-100",
				Description:  "Espuma tecnica",
				Unit:         "UN",
				Qty:          decimal.NewFromInt(12),
				Source:       "parser:espumalar",
			},
			{
				SupplierCode: "D30",
				Description:  "Placa 600x200x200",
				Unit:         "UN",
				Qty:          decimal.NewFromInt(4),
				OrderRef:     "2026/118",
				Source:       "llm",
			},
		},
	}}
	matches := &fakeMatches{
		result: &models.MatchResult{DocumentID: docID, Status: constants.MatchStatusExceptions, Summary: []byte(`{"groups":1}`)},
		tasks: []models.ExceptionTask{
			{Kind: constants.ExcQuantityExceeded, LineRef: "ESP-100", Detail: "received 12 against ordered 10", CreatedAt: time.Now()},
		},
	}
	minis := &fakeMiniCodes{byIdentifier: map[string]*models.MiniCode{
		"ESP-100": {Code: "MC-ESP", Identifier: "ESP-100"},
	}}

	svc := NewService(docs, matches, minis, quiet())
	raw, err := svc.ExportDocumentXLSX(context.Background(), docID)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer wb.Close()

	get := func(sheet, cell string) string {
		v, err := wb.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "ESP-100", get(linesSheet, "A2"))
	assert.Equal(t, "MC-ESP", get(linesSheet, "B2"), "imported table wins over derivation")
	assert.Equal(t, "2026/044", get(linesSheet, "G2"), "empty order ref falls back to the document-level one")
	assert.Equal(t, "D30-200x600x200", get(linesSheet, "B3"), "derived from density and dimensions")
	assert.Equal(t, "2026/118", get(linesSheet, "G3"))
	assert.Equal(t, "exceptions", get(linesSheet, "K1"))

	assert.Equal(t, "QuantityExceeded", get(exceptionsSheet, "A2"))
	assert.Equal(t, "ESP-100", get(exceptionsSheet, "B2"))
}

func TestImportMiniCodesXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minicodes.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Tabela de Mini Codigos FPOL"},
		{"Familia", "Mini Codigo", "Referencia", "Designacao", "Identificador", "Tipo"},
		{"ESPUMA", "MC-001", "REF-1", "Espuma D30", "ESP-100", "modular"},
		{"", "", "", "sem codigo, ignorada", "X-1", ""},
		{"PLACA", "MC-002", "REF-2", "Placa composta", "PL-200", "composto"},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	repo := &fakeMiniCodes{}
	stats, err := ImportMiniCodesXLSX(context.Background(), repo, path, quiet())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.Upserted)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "MC-001", repo.upserted[0].Code)
	assert.Equal(t, "ESP-100", repo.upserted[0].Identifier)
}
