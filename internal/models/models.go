// Package models defines the persisted entities of the inbound pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmaia/inbound-recon/constants"
)

// Supplier is a counterparty that sends inbound documents.
type Supplier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Name      string    `gorm:"uniqueIndex;size:200;not null" json:"name"`
	Email     string    `gorm:"size:200" json:"email"`
	TaxID     string    `gorm:"size:20;index" json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PurchaseOrder is a registered order that inbound receipts reconcile against.
type PurchaseOrder struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Number     string    `gorm:"uniqueIndex;size:100;not null" json:"number"`
	SupplierID uint      `gorm:"index;not null" json:"supplier_id"`
	Supplier   Supplier  `json:"-"`
	AutoCreated bool     `gorm:"default:false" json:"auto_created"` // created from a purchase_order document, not by hand
	Lines      []POLine  `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// POLine is one ordered product on a PurchaseOrder, unique per (po, sku).
// Conflicting inserts aggregate quantities instead of overwriting.
type POLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PurchaseOrderID uint            `gorm:"uniqueIndex:idx_po_sku;not null" json:"purchase_order_id"`
	InternalSKU     string          `gorm:"uniqueIndex:idx_po_sku;size:120;not null" json:"internal_sku"`
	Description     string          `gorm:"size:255" json:"description"`
	Unit            string          `gorm:"size:20;default:UN" json:"unit"`
	QtyOrdered      decimal.Decimal `gorm:"type:numeric(12,3)" json:"qty_ordered"`
	QtyReceived     decimal.Decimal `gorm:"type:numeric(12,3)" json:"qty_received"`
	// Tolerance is the admitted over-receipt fraction. Null means the line
	// falls back to the configured default; an explicit zero admits nothing.
	Tolerance decimal.NullDecimal `gorm:"type:numeric(6,3)" json:"tolerance"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// QtyRemaining is the quantity still expected on this line.
func (l *POLine) QtyRemaining() decimal.Decimal {
	return l.QtyOrdered.Sub(l.QtyReceived)
}

// IsComplete reports whether the line has been fully received.
func (l *POLine) IsComplete() bool {
	return l.QtyRemaining().LessThanOrEqual(decimal.Zero)
}

// CodeMapping translates a supplier's product code to the internal SKU,
// unique per (supplier, supplier_code). Unknown but well-formed codes
// self-register with the quantity of their first occurrence as reference.
type CodeMapping struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SupplierID   uint            `gorm:"uniqueIndex:idx_supplier_code;not null" json:"supplier_id"`
	SupplierCode string          `gorm:"uniqueIndex:idx_supplier_code;size:120;not null" json:"supplier_code"`
	InternalSKU  string          `gorm:"size:120;not null" json:"internal_sku"`
	QtyReference decimal.Decimal `gorm:"type:numeric(12,3)" json:"qty_reference"`
	Confidence   float64         `gorm:"default:1" json:"confidence"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Document is one submitted file. Content is immutable; only extraction and
// reconciliation results are attached after creation.
type Document struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	SupplierID  *uint              `gorm:"index" json:"supplier_id,omitempty"` // nullable until resolved
	DocType     constants.DocType  `gorm:"size:20;not null;index" json:"doc_type"`
	Number      string             `gorm:"size:120" json:"number"`
	SourcePath  string             `gorm:"size:1024;not null" json:"source_path"`
	ContentHash []byte             `gorm:"index" json:"-"`
	Format      string             `gorm:"size:16" json:"format"`
	Status      constants.DocStatus `gorm:"size:16;default:QUEUED" json:"status"`
	PONumber    string             `gorm:"size:100" json:"po_number"` // document-level order reference, if any
	Payload     []byte             `gorm:"type:jsonb" json:"payload"` // structured extraction output
	ReceivedAt  time.Time          `json:"received_at"`
	Pages       []Page             `gorm:"constraint:OnDelete:CASCADE" json:"pages"`
	Lines       []LineItem         `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
	Exceptions  []ExceptionTask    `gorm:"constraint:OnDelete:CASCADE" json:"exceptions"`
}

// Page is the unit of extraction within a document, retried independently of
// its siblings.
type Page struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	DocumentID uuid.UUID          `gorm:"type:uuid;index;not null" json:"document_id"`
	Index      int                `gorm:"not null" json:"index"`
	Text       string             `gorm:"type:text" json:"text"`
	QRPayloads []byte             `gorm:"type:jsonb" json:"qr_payloads"` // JSON array of detected QR strings
	Method     string             `gorm:"size:32" json:"method"`
	Attempts   int                `json:"attempts"`
	State      constants.PageState `gorm:"size:16;default:UNATTEMPTED" json:"state"`
}

// LineItem is one extracted product row. Immutable once produced by a source;
// only one source's set is retained per document.
type LineItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	DocumentID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"document_id"`
	SupplierCode string          `gorm:"size:120" json:"supplier_code"`
	InternalSKU  string          `gorm:"size:120" json:"internal_sku"` // mapping result, may be empty
	Description  string          `gorm:"size:255" json:"description"`
	Unit         string          `gorm:"size:20;default:UN" json:"unit"`
	Qty          decimal.Decimal `gorm:"type:numeric(12,3)" json:"qty"`
	UnitPrice    *decimal.Decimal `gorm:"type:numeric(12,4)" json:"unit_price,omitempty"`
	OrderRef     string          `gorm:"size:100" json:"order_ref"` // per-line order annotation, if any
	Source       string          `gorm:"size:40" json:"source"`     // "parser:<name>" | "llm"
}

// MatchResult is the single reconciliation outcome per document.
type MatchResult struct {
	ID         uint                  `gorm:"primaryKey" json:"id"`
	DocumentID uuid.UUID             `gorm:"type:uuid;uniqueIndex;not null" json:"document_id"`
	Status     constants.MatchStatus `gorm:"size:16;default:pending" json:"status"`
	Summary    []byte                `gorm:"type:jsonb" json:"summary"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// ExceptionTask is a flagged discrepancy requiring human review. Rows with
// LineRef == constants.OCRLineRef belong to the acquisition/structuring stage
// and survive reprocessing.
type ExceptionTask struct {
	ID         uint                    `gorm:"primaryKey" json:"id"`
	DocumentID uuid.UUID               `gorm:"type:uuid;index;not null" json:"document_id"`
	Kind       constants.ExceptionKind `gorm:"size:32;not null" json:"kind"`
	LineRef    string                  `gorm:"size:120" json:"line_ref"`
	Detail     string                  `gorm:"size:1024" json:"detail"`
	Resolved   bool                    `gorm:"default:false;index" json:"resolved"`
	CreatedAt  time.Time               `json:"created_at"`
}

// MiniCode maps a supplier identifier to the simplified internal mini code
// used by the Excel exports.
type MiniCode struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Family      string `gorm:"size:50" json:"family"`
	Code        string `gorm:"uniqueIndex;size:120;not null" json:"code"`
	Reference   string `gorm:"size:120" json:"reference"`
	Designation string `gorm:"size:500" json:"designation"`
	Identifier  string `gorm:"size:120;index" json:"identifier"`
	Kind        string `gorm:"size:50" json:"kind"`
}

// All lists every model for migration.
func All() []any {
	return []any{
		&Supplier{},
		&PurchaseOrder{},
		&POLine{},
		&CodeMapping{},
		&Document{},
		&Page{},
		&LineItem{},
		&MatchResult{},
		&ExceptionTask{},
		&MiniCode{},
	}
}
