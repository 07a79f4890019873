package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/models"
)

// DocumentRepository manages documents, their pages and extracted lines.
type DocumentRepository interface {
	// CreateIfNew registers a document unless one with the same content hash
	// already exists; the bool reports whether a row was created.
	CreateIfNew(ctx context.Context, doc *models.Document) (*models.Document, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByStatus(ctx context.Context, status constants.DocStatus, limit int) ([]models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocStatus) error
	SetSupplier(ctx context.Context, id uuid.UUID, supplierID uint) error
	// SetNumbers records the document number and document-level order
	// reference once metadata extraction has run.
	SetNumbers(ctx context.Context, id uuid.UUID, number, poNumber string) error
	// SetDocType records the classified document kind.
	SetDocType(ctx context.Context, id uuid.UUID, docType constants.DocType) error
	SetPayload(ctx context.Context, id uuid.UUID, payload []byte) error
	// ReplacePages swaps a document's pages for the given set.
	ReplacePages(ctx context.Context, id uuid.UUID, pages []models.Page) error
	// ReplaceLines swaps a document's extracted lines. Only one source's set
	// is ever retained.
	ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.LineItem) error
}

type documentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) DocumentRepository {
	return &documentRepository{db: db, logger: logger}
}

func (r *documentRepository) CreateIfNew(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	if len(doc.ContentHash) > 0 {
		var existing models.Document
		err := r.db.WithContext(ctx).Where("content_hash = ?", doc.ContentHash).First(&existing).Error
		if err == nil {
			r.logger.Info("document.duplicate", "id", existing.ID, "path", doc.SourcePath)
			return &existing, false, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, false, err
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, false, err
	}
	r.logger.Info("document.created", "id", doc.ID, "path", doc.SourcePath, "doc_type", doc.DocType)
	return doc, true, nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Pages").Preload("Lines").Preload("Exceptions").
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByStatus(ctx context.Context, status constants.DocStatus, limit int) ([]models.Document, error) {
	var docs []models.Document
	q := r.db.WithContext(ctx).Where("status = ?", status).Order("received_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&docs).Error
	return docs, err
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocStatus) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).Update("status", status).Error
}

func (r *documentRepository) SetSupplier(ctx context.Context, id uuid.UUID, supplierID uint) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).Update("supplier_id", supplierID).Error
}

func (r *documentRepository) SetNumbers(ctx context.Context, id uuid.UUID, number, poNumber string) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"number": number, "po_number": poNumber}).Error
}

func (r *documentRepository) SetDocType(ctx context.Context, id uuid.UUID, docType constants.DocType) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).Update("doc_type", docType).Error
}

func (r *documentRepository) SetPayload(ctx context.Context, id uuid.UUID, payload []byte) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).Update("payload", payload).Error
}

func (r *documentRepository) ReplacePages(ctx context.Context, id uuid.UUID, pages []models.Page) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Page{}).Error; err != nil {
			return err
		}
		for i := range pages {
			pages[i].ID = 0
			pages[i].DocumentID = id
		}
		if len(pages) == 0 {
			return nil
		}
		return tx.Create(&pages).Error
	})
}

func (r *documentRepository) ReplaceLines(ctx context.Context, id uuid.UUID, lines []models.LineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].ID = 0
			lines[i].DocumentID = id
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
}
