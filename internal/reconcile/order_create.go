package reconcile

import (
	"context"

	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/models"
)

// RegisterOrder materializes a purchase order from a purchase_order document.
// Items are grouped, resolved and aggregated exactly like a receipt, then
// written as order lines; a duplicate SKU across embedded groups ends up as
// one line with the summed ordered quantity.
func (e *Engine) RegisterOrder(ctx context.Context, supplier *models.Supplier, number string, items []extract.Item) (*models.PurchaseOrder, error) {
	po, err := e.orders.GetOrCreate(ctx, number, supplier.ID, true)
	if err != nil {
		return nil, err
	}

	for _, g := range groupByOrderRef(items, number) {
		lines, err := e.resolveAndAggregate(ctx, supplier.ID, g.items)
		if err != nil {
			return nil, err
		}
		for _, ln := range lines {
			if ln.InternalSKU == "" {
				continue
			}
			// tolerance stays unset so the configured default governs at
			// validation time
			err := e.orders.UpsertLine(ctx, &models.POLine{
				PurchaseOrderID: po.ID,
				InternalSKU:     ln.InternalSKU,
				Description:     ln.Description,
				Unit:            ln.Unit,
				QtyOrdered:      ln.Qty,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	e.logger.Info("reconcile.order_registered", "number", number, "supplier_id", supplier.ID)
	return po, nil
}
