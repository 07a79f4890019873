// Package reconcile attaches extracted line items to purchase orders,
// validates quantities against the linked order lines, and maintains the
// exception ledger. All quantity arithmetic is exact decimal; floating point
// never touches a quantity.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/repository"
)

// Engine is one reconciliation pass over a document's extracted lines.
type Engine struct {
	orders   repository.OrderRepository
	mappings repository.MappingRepository
	matches  repository.MatchRepository
	cfg      common.MatchConfig
	logger   *slog.Logger
}

func NewEngine(orders repository.OrderRepository, mappings repository.MappingRepository, matches repository.MatchRepository, cfg common.MatchConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 70
	}
	if cfg.DefaultTolerance == "" {
		cfg.DefaultTolerance = "0.08"
	}
	return &Engine{orders: orders, mappings: mappings, matches: matches, cfg: cfg, logger: logger}
}

// line is an extracted item after SKU resolution and per-group aggregation.
type line struct {
	SupplierCode string
	InternalSKU  string
	Description  string
	Unit         string
	Qty          decimal.Decimal
}

// groupSummary records the linkage outcome of one order group.
type groupSummary struct {
	OrderRef    string   `json:"order_ref"`
	OrderNumber string   `json:"order_number,omitempty"` // linked order, if any
	Inferred    bool     `json:"inferred,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Lines       int      `json:"lines"`
	SKUs        []string `json:"skus,omitempty"`
}

// Summary is the persisted MatchResult payload.
type Summary struct {
	Groups         []groupSummary `json:"groups"`
	TotalLines     int            `json:"total_lines"`
	InvalidLines   int            `json:"invalid_lines"`
	BusinessIssues int            `json:"business_issues"`
}

// Reconcile runs the full pass for a delivery-note document and persists the
// MatchResult and business exceptions. updateReceived applies received
// quantities to the linked order lines; reprocessing passes leave them alone.
func (e *Engine) Reconcile(ctx context.Context, doc *models.Document, supplier *models.Supplier, items []extract.Item, updateReceived bool) (*models.MatchResult, error) {
	var exceptions []models.ExceptionTask
	summary := Summary{TotalLines: len(items)}

	// majority-invalid extraction flags the whole document
	invalid := 0
	for _, it := range items {
		if !it.Normalize().Valid() {
			invalid++
		}
	}
	summary.InvalidLines = invalid
	if len(items) > 0 && invalid*2 > len(items) {
		exceptions = append(exceptions, models.ExceptionTask{
			Kind:    constants.ExcInvalidProduct,
			LineRef: "document",
			Detail:  fmt.Sprintf("%d of %d extracted items fail validity", invalid, len(items)),
		})
	}

	groups := groupByOrderRef(items, doc.PONumber)

	for _, g := range groups {
		lines, err := e.resolveAndAggregate(ctx, supplier.ID, g.items)
		if err != nil {
			return nil, err
		}

		gs := groupSummary{OrderRef: g.ref, Lines: len(lines)}
		po, inferred, err := e.linkOrder(ctx, supplier.ID, g.ref, lines, &gs, &exceptions)
		if err != nil {
			return nil, err
		}
		// linkage outcome is recorded even when no order was found; only
		// then are the quantity rules applied
		if po != nil {
			gs.OrderNumber = po.Number
			gs.Inferred = inferred
			e.validateQuantities(ctx, po, lines, &exceptions, updateReceived)
		}
		summary.Groups = append(summary.Groups, gs)
	}

	status := e.deriveStatus(ctx, doc, exceptions)
	summary.BusinessIssues = len(exceptions)

	if err := e.matches.ReplaceBusinessExceptions(ctx, doc.ID, exceptions); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	result := &models.MatchResult{
		DocumentID: doc.ID,
		Status:     status,
		Summary:    payload,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := e.matches.UpsertResult(ctx, result); err != nil {
		return nil, err
	}
	e.logger.Info("reconcile.done",
		"document_id", doc.ID, "status", status,
		"groups", len(summary.Groups), "business_issues", len(exceptions))
	return result, nil
}

type orderGroup struct {
	ref   string
	items []extract.Item
}

// groupByOrderRef splits items by their per-line order annotation; items
// without one fall back to the document-level number. Group order follows
// first appearance.
func groupByOrderRef(items []extract.Item, docRef string) []orderGroup {
	index := make(map[string]int)
	var groups []orderGroup
	for _, it := range items {
		ref := it.OrderRef
		if ref == "" {
			ref = docRef
		}
		i, ok := index[ref]
		if !ok {
			i = len(groups)
			index[ref] = i
			groups = append(groups, orderGroup{ref: ref})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

// resolveAndAggregate maps supplier codes to internal SKUs, self-registering
// unknown well-formed codes, and merges duplicate SKUs by exact decimal sum.
// Description and unit stick with the first occurrence.
func (e *Engine) resolveAndAggregate(ctx context.Context, supplierID uint, items []extract.Item) ([]*line, error) {
	index := make(map[string]int)
	var lines []*line
	for _, it := range items {
		it = it.Normalize()
		if !it.Valid() {
			continue
		}
		sku := ""
		if it.Code != "" {
			m, err := e.mappings.GetOrCreate(ctx, &models.CodeMapping{
				SupplierID:   supplierID,
				SupplierCode: it.Code,
				InternalSKU:  it.Code,
				QtyReference: it.Qty,
			})
			if err != nil {
				return nil, err
			}
			sku = m.InternalSKU
		}
		key := sku
		if key == "" {
			key = "\x00desc:" + it.DedupeKey()
		}
		if i, ok := index[key]; ok {
			lines[i].Qty = lines[i].Qty.Add(it.Qty)
			continue
		}
		index[key] = len(lines)
		lines = append(lines, &line{
			SupplierCode: it.Code,
			InternalSKU:  sku,
			Description:  it.Description,
			Unit:         it.Unit,
			Qty:          it.Qty,
		})
	}
	return lines, nil
}

// linkOrder resolves the target order for a group: direct lookup when a
// reference exists, scored inference otherwise. A failed linkage raises
// UnresolvedOrder and returns nil.
func (e *Engine) linkOrder(ctx context.Context, supplierID uint, ref string, lines []*line, gs *groupSummary, exceptions *[]models.ExceptionTask) (*models.PurchaseOrder, bool, error) {
	if ref != "" {
		po, err := e.orders.GetByNumber(ctx, ref)
		if err == nil {
			if po.SupplierID != supplierID {
				*exceptions = append(*exceptions, models.ExceptionTask{
					Kind:    constants.ExcUnresolvedOrder,
					LineRef: ref,
					Detail:  fmt.Sprintf("order %q belongs to another supplier", ref),
				})
				return nil, false, nil
			}
			return po, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
		*exceptions = append(*exceptions, models.ExceptionTask{
			Kind:    constants.ExcUnresolvedOrder,
			LineRef: ref,
			Detail:  fmt.Sprintf("order %q not registered", ref),
		})
		return nil, false, nil
	}

	cand, score, detail, err := e.inferOrder(ctx, supplierID, lines)
	if err != nil {
		return nil, false, err
	}
	gs.Score = score
	if cand == nil {
		*exceptions = append(*exceptions, models.ExceptionTask{
			Kind:    constants.ExcUnresolvedOrder,
			LineRef: "document",
			Detail:  detail,
		})
		return nil, false, nil
	}
	return cand, true, nil
}

// validateQuantities applies the per-line tolerance of the linked order. A
// received quantity over ordered*(1+tolerance) raises QuantityExceeded; a
// SKU absent from the order validates against zero ordered.
func (e *Engine) validateQuantities(ctx context.Context, po *models.PurchaseOrder, lines []*line, exceptions *[]models.ExceptionTask, updateReceived bool) {
	bySKU := make(map[string]*models.POLine, len(po.Lines))
	for i := range po.Lines {
		bySKU[po.Lines[i].InternalSKU] = &po.Lines[i]
	}
	defaultTol, err := decimal.NewFromString(e.cfg.DefaultTolerance)
	if err != nil {
		defaultTol = decimal.NewFromFloat(0.08)
	}

	for _, ln := range lines {
		pol, onOrder := bySKU[ln.InternalSKU]
		if !onOrder {
			*exceptions = append(*exceptions, models.ExceptionTask{
				Kind:    constants.ExcQuantityExceeded,
				LineRef: ln.SupplierCode,
				Detail:  fmt.Sprintf("sku %q not on order %s; received %s against ordered 0", ln.InternalSKU, po.Number, ln.Qty),
			})
			continue
		}
		tol := defaultTol
		if pol.Tolerance.Valid {
			tol = pol.Tolerance.Decimal
		}
		limit := pol.QtyOrdered.Mul(decimal.NewFromInt(1).Add(tol))
		received := pol.QtyReceived.Add(ln.Qty)
		if !updateReceived {
			// on reprocessing the stored total already carries this receipt
			// when the line validated on the first pass; a line that raised
			// an exception was never applied, so its quantity stands alone
			received = decimal.Max(pol.QtyReceived, ln.Qty)
		}
		if received.GreaterThan(limit) {
			*exceptions = append(*exceptions, models.ExceptionTask{
				Kind:    constants.ExcQuantityExceeded,
				LineRef: ln.SupplierCode,
				Detail: fmt.Sprintf("sku %q: received %s exceeds ordered %s with tolerance %s on order %s",
					ln.InternalSKU, received, pol.QtyOrdered, tol, po.Number),
			})
			continue
		}
		if updateReceived {
			if err := e.orders.AddReceived(ctx, pol.ID, ln.Qty); err != nil {
				e.logger.Error("reconcile.add_received.failed", "line_id", pol.ID, "error", err)
			}
		}
	}
}

// deriveStatus ranks outcomes: any surviving acquisition-stage exception
// forces error; any business exception from this pass yields exceptions;
// otherwise matched.
func (e *Engine) deriveStatus(ctx context.Context, doc *models.Document, business []models.ExceptionTask) constants.MatchStatus {
	open, err := e.matches.ListOpenExceptions(ctx, doc.ID)
	if err != nil {
		e.logger.Error("reconcile.list_exceptions.failed", "document_id", doc.ID, "error", err)
	}
	for _, t := range open {
		if constants.IsProcessingStage(t.LineRef) {
			return constants.MatchStatusError
		}
	}
	if len(business) > 0 {
		return constants.MatchStatusExceptions
	}
	return constants.MatchStatusMatched
}
