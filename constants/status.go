package constants

// DocType distinguishes the two inbound document kinds. A purchase_order
// document creates/updates a PurchaseOrder; a delivery_note is reconciled
// against one.
type DocType string

const (
	DocTypePurchaseOrder DocType = "purchase_order"
	DocTypeDeliveryNote  DocType = "delivery_note"
)

// MatchStatus is the derived status on a document's MatchResult.
// Exactly one rule sets it per reconciliation pass: error if any
// acquisition/structuring exception exists, else exceptions if any business
// exception was emitted, else matched. pending means no pass has run yet.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusMatched    MatchStatus = "matched"
	MatchStatusExceptions MatchStatus = "exceptions"
	MatchStatusError      MatchStatus = "error"
)

// PageState tracks a page through the acquisition state machine.
type PageState string

const (
	PageUnattempted PageState = "UNATTEMPTED"
	PageAttempting  PageState = "ATTEMPTING"
	PageSucceeded   PageState = "SUCCEEDED"
	PageFailed      PageState = "FAILED"
)

// DocStatus is the processing status for a document's pipeline run.
type DocStatus string

const (
	DocStatusQueued    DocStatus = "QUEUED"
	DocStatusRunning   DocStatus = "RUNNING"
	DocStatusAcquired  DocStatus = "ACQUIRED"   // raw text extracted
	DocStatusStructured DocStatus = "STRUCTURED" // line items produced
	DocStatusDone      DocStatus = "DONE"       // match result written
	DocStatusFailed    DocStatus = "FAILED"
)
