package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/models"
)

// hashDocs dedupes by content hash the way the real repository does.
type hashDocs struct {
	byHash map[string]*models.Document
}

func newHashDocs() *hashDocs { return &hashDocs{byHash: map[string]*models.Document{}} }

func (f *hashDocs) CreateIfNew(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	key := string(doc.ContentHash)
	if existing, ok := f.byHash[key]; ok {
		return existing, false, nil
	}
	doc.ID = uuid.New()
	f.byHash[key] = doc
	return doc, true, nil
}

func (f *hashDocs) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *hashDocs) ListByStatus(ctx context.Context, status constants.DocStatus, limit int) ([]models.Document, error) {
	return nil, nil
}

func (f *hashDocs) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocStatus) error {
	return nil
}
func (f *hashDocs) SetSupplier(ctx context.Context, id uuid.UUID, supplierID uint) error { return nil }
func (f *hashDocs) SetNumbers(ctx context.Context, id uuid.UUID, number, poNumber string) error {
	return nil
}
func (f *hashDocs) SetDocType(ctx context.Context, id uuid.UUID, docType constants.DocType) error {
	return nil
}
func (f *hashDocs) SetPayload(ctx context.Context, id uuid.UUID, payload []byte) error { return nil }
func (f *hashDocs) ReplacePages(ctx context.Context, id uuid.UUID, pages []models.Page) error {
	return nil
}
func (f *hashDocs) ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.LineItem) error {
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestIngestPathRegistersQueuedDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "guia.pdf", "%PDF-1.4 fake")
	ing := NewFSIngestor(newHashDocs(), quiet())

	res, err := ing.IngestPath(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.NotEqual(t, uuid.Nil, res.DocumentID)
	assert.Equal(t, constants.PDF, res.Format)
	assert.Len(t, res.HashHex, 64)
}

func TestIngestPathDeduplicatesByContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "same bytes")
	b := writeFile(t, dir, "b.pdf", "same bytes")
	ing := NewFSIngestor(newHashDocs(), quiet())

	first, err := ing.IngestPath(context.Background(), a)
	require.NoError(t, err)
	second, err := ing.IngestPath(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
}

func TestIngestPathRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.docx", "not supported")
	ing := NewFSIngestor(newHashDocs(), quiet())

	_, err := ing.IngestPath(context.Background(), path)
	assert.Error(t, err)
}

func TestIngestDirectoryStats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.pdf", "first")
	writeFile(t, dir, "two.xlsx", "second")
	writeFile(t, dir, "copy.pdf", "first")
	writeFile(t, dir, "skip.docx", "ignored")
	writeFile(t, dir, ".hidden.pdf", "hidden")
	ing := NewFSIngestor(newHashDocs(), quiet())

	results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Len(t, results, 3)
}
