// Package pipeline coordinates the per-document run: text acquisition,
// parser-first structuring with LLM fallback, and reconciliation. A document
// enters QUEUED and leaves DONE with a MatchResult, or FAILED.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/acquire"
	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/parse"
	"github.com/tmaia/inbound-recon/internal/reconcile"
	"github.com/tmaia/inbound-recon/internal/repository"
	"github.com/tmaia/inbound-recon/internal/structurer"
)

// TextStructurer is the LLM fallback boundary; nil disables the fallback.
type TextStructurer interface {
	Structure(ctx context.Context, text string) (structurer.Result, error)
}

// Processor runs the full pipeline for one document at a time. Concurrent
// documents coordinate only through the store's atomic get-or-create rows.
type Processor struct {
	Docs       repository.DocumentRepository
	Suppliers  repository.SupplierRepository
	Matches    repository.MatchRepository
	Acquirer   *acquire.Acquirer
	Registry   *parse.Registry
	Structurer TextStructurer
	Engine     *reconcile.Engine
	Logger     *slog.Logger
}

func NewProcessor(docs repository.DocumentRepository, suppliers repository.SupplierRepository, matches repository.MatchRepository, acq *acquire.Acquirer, registry *parse.Registry, ts TextStructurer, engine *reconcile.Engine, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Docs:       docs,
		Suppliers:  suppliers,
		Matches:    matches,
		Acquirer:   acq,
		Registry:   registry,
		Structurer: ts,
		Engine:     engine,
		Logger:     logger,
	}
}

// Process runs acquisition, structuring and reconciliation for a document.
// firstPass applies received quantities to order lines; reprocessing passes
// recompute everything else but leave received quantities alone.
func (p *Processor) Process(ctx context.Context, docID uuid.UUID, firstPass bool) error {
	doc, err := p.Docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if err := p.Docs.UpdateStatus(ctx, docID, constants.DocStatusRunning); err != nil {
		return err
	}

	start := time.Now()
	res, err := p.acquireStage(ctx, doc)
	if err != nil {
		p.Logger.Error("pipeline.acquire.failed", "document_id", docID, "error", err)
		_ = p.Docs.UpdateStatus(ctx, docID, constants.DocStatusFailed)
		return err
	}

	items, method, sres := p.structureStage(ctx, doc, res)

	fields := parse.ExtractFields(res.Text)
	p.mergeLLMFields(&fields, sres)
	if doc.PONumber == "" {
		doc.PONumber = fields.OrderNumber
	}
	if doc.Number == "" {
		doc.Number = fields.DocNumber
	}
	if err := p.Docs.SetNumbers(ctx, docID, doc.Number, doc.PONumber); err != nil {
		return err
	}
	if fields.DocKind != "" && constants.DocType(fields.DocKind) != doc.DocType {
		doc.DocType = constants.DocType(fields.DocKind)
		if err := p.Docs.SetDocType(ctx, docID, doc.DocType); err != nil {
			return err
		}
	}

	if err := p.persistStructuring(ctx, doc, items, method, fields, res); err != nil {
		return err
	}

	supplier, err := p.resolveSupplier(ctx, doc, fields)
	if err != nil {
		_ = p.Docs.UpdateStatus(ctx, docID, constants.DocStatusFailed)
		return err
	}

	if err := p.reconcileStage(ctx, doc, supplier, items, firstPass); err != nil {
		_ = p.Docs.UpdateStatus(ctx, docID, constants.DocStatusFailed)
		return err
	}

	if err := p.Docs.UpdateStatus(ctx, docID, constants.DocStatusDone); err != nil {
		return err
	}
	p.Logger.Info("pipeline.done",
		"document_id", docID, "doc_type", doc.DocType,
		"items", len(items), "method", method,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// acquireStage runs the cascade and persists per-page outcomes.
func (p *Processor) acquireStage(ctx context.Context, doc *models.Document) (acquire.Result, error) {
	src, err := acquire.NewSource(doc.SourcePath)
	if err != nil {
		return acquire.Result{}, err
	}
	res, err := p.Acquirer.Acquire(ctx, src)
	if err != nil {
		return acquire.Result{}, err
	}

	pages := make([]models.Page, 0, len(res.Pages))
	for _, pg := range res.Pages {
		qrs, _ := json.Marshal(pg.QRPayloads)
		pages = append(pages, models.Page{
			Index:      pg.Index,
			Text:       pg.Text,
			QRPayloads: qrs,
			Method:     pg.Method,
			Attempts:   pg.Attempts,
			State:      pg.State,
		})
	}
	if err := p.Docs.ReplacePages(ctx, doc.ID, pages); err != nil {
		return acquire.Result{}, err
	}
	if err := p.Docs.UpdateStatus(ctx, doc.ID, constants.DocStatusAcquired); err != nil {
		return acquire.Result{}, err
	}

	if res.Illegible {
		p.raiseStageException(ctx, doc.ID, constants.ExcIllegibleDocument,
			"acquired text below legibility threshold with no QR data")
	}
	return res, nil
}

// structureStage applies the priority rule: the parser registry dispatches
// first, and the LLM runs only when every applicable parser came up empty.
func (p *Processor) structureStage(ctx context.Context, doc *models.Document, res acquire.Result) ([]extract.Item, string, *structurer.Result) {
	items, source := p.Registry.Dispatch(res.Text)
	if len(items) > 0 {
		return items, source, nil
	}

	if p.Structurer != nil && len(res.Text) > 0 {
		sres, err := p.Structurer.Structure(ctx, res.Text)
		if err != nil {
			p.Logger.Warn("pipeline.structure.llm_failed", "document_id", doc.ID, "error", err)
		} else if len(sres.Items) > 0 {
			return sres.Items, "llm", &sres
		}
	}

	if !res.Illegible {
		// a legible document that still produced nothing is its own problem
		p.raiseStageException(ctx, doc.ID, constants.ExcStructuringEmpty,
			"neither parser nor structurer produced line items")
	}
	return nil, "", nil
}

// raiseStageException records an acquisition/structuring exception once;
// reprocessing a still-broken document must not stack duplicates.
func (p *Processor) raiseStageException(ctx context.Context, docID uuid.UUID, kind constants.ExceptionKind, detail string) {
	open, err := p.Matches.ListOpenExceptions(ctx, docID)
	if err == nil {
		for _, t := range open {
			if t.Kind == kind && constants.IsProcessingStage(t.LineRef) {
				return
			}
		}
	}
	_ = p.Matches.AddException(ctx, &models.ExceptionTask{
		DocumentID: docID,
		Kind:       kind,
		LineRef:    constants.OCRLineRef,
		Detail:     detail,
	})
}

func (p *Processor) mergeLLMFields(fields *extract.DocFields, sres *structurer.Result) {
	if sres == nil {
		return
	}
	if fields.SupplierName == "" {
		fields.SupplierName = sres.Supplier
	}
	if fields.SupplierTaxID == "" {
		fields.SupplierTaxID = sres.SupplierNIF
	}
	if fields.OrderNumber == "" {
		fields.OrderNumber = sres.OrderNumber
	}
}

// persistStructuring stores the retained item set and the structured payload.
func (p *Processor) persistStructuring(ctx context.Context, doc *models.Document, items []extract.Item, method string, fields extract.DocFields, res acquire.Result) error {
	lines := make([]models.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.LineItem{
			SupplierCode: it.Code,
			Description:  it.Description,
			Unit:         it.Unit,
			Qty:          it.Qty,
			UnitPrice:    it.UnitPrice,
			OrderRef:     it.OrderRef,
			Source:       it.Source,
		})
	}
	if err := p.Docs.ReplaceLines(ctx, doc.ID, lines); err != nil {
		return err
	}

	payload := extract.Payload{
		SupplierNIF:      fields.SupplierTaxID,
		SupplierName:     fields.SupplierName,
		DocumentNumber:   fields.DocNumber,
		Products:         items,
		ExtractionMethod: method,
		Confidence:       confidenceFor(fields, items, res),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.Docs.SetPayload(ctx, doc.ID, raw); err != nil {
		return err
	}
	return p.Docs.UpdateStatus(ctx, doc.ID, constants.DocStatusStructured)
}

// confidenceFor scores an extraction from what it managed to find.
func confidenceFor(fields extract.DocFields, items []extract.Item, res acquire.Result) float64 {
	c := 0.35
	if fields.DocKind != "" {
		c += 0.15
	}
	if fields.DocDate != "" {
		c += 0.15
	}
	if len(items) > 0 {
		c += 0.25
	}
	if res.Illegible {
		c = 0.0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// resolveSupplier finds the counterparty by tax id first, then by name with
// auto-registration. A document with no supplier signal at all falls back to
// a catch-all so reconciliation can still record its outcome.
func (p *Processor) resolveSupplier(ctx context.Context, doc *models.Document, fields extract.DocFields) (*models.Supplier, error) {
	if s, err := p.Suppliers.FindByTaxID(ctx, fields.SupplierTaxID); err == nil {
		_ = p.Docs.SetSupplier(ctx, doc.ID, s.ID)
		return s, nil
	}
	name := fields.SupplierName
	if name == "" {
		name = "Fornecedor desconhecido"
	}
	s, err := p.Suppliers.GetOrCreateByName(ctx, name, fields.SupplierTaxID)
	if err != nil {
		return nil, err
	}
	_ = p.Docs.SetSupplier(ctx, doc.ID, s.ID)
	return s, nil
}

// reconcileStage dispatches on document kind: purchase_order documents
// materialize an order; delivery notes reconcile against one.
func (p *Processor) reconcileStage(ctx context.Context, doc *models.Document, supplier *models.Supplier, items []extract.Item, firstPass bool) error {
	if doc.DocType == constants.DocTypePurchaseOrder {
		number := doc.PONumber
		if number == "" {
			number = doc.Number
		}
		if number == "" {
			number = "AUTO-" + doc.ID.String()[:8]
		}
		if _, err := p.Engine.RegisterOrder(ctx, supplier, number, items); err != nil {
			return err
		}
		summary, _ := json.Marshal(map[string]any{"registered_order": number, "lines": len(items)})
		return p.Matches.UpsertResult(ctx, &models.MatchResult{
			DocumentID: doc.ID,
			Status:     constants.MatchStatusMatched,
			Summary:    summary,
			UpdatedAt:  time.Now().UTC(),
		})
	}

	_, err := p.Engine.Reconcile(ctx, doc, supplier, items, firstPass)
	return err
}
