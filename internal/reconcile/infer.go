package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmaia/inbound-recon/internal/models"
)

// inferOrder scores every open order of the supplier against the resolved
// SKU set: matched_skus / total_line_items * 100. The best candidate wins if
// it reaches the acceptance threshold; below it nothing is guessed and the
// returned detail carries the best score and both SKU sets for manual review.
func (e *Engine) inferOrder(ctx context.Context, supplierID uint, lines []*line) (*models.PurchaseOrder, float64, string, error) {
	if len(lines) == 0 {
		return nil, 0, "no resolvable line items to infer an order from", nil
	}
	candidates, err := e.orders.ListOpenBySupplier(ctx, supplierID)
	if err != nil {
		return nil, 0, "", err
	}
	if len(candidates) == 0 {
		return nil, 0, "no open orders registered for supplier", nil
	}

	docSKUs := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln.InternalSKU != "" {
			docSKUs = append(docSKUs, ln.InternalSKU)
		}
	}

	var (
		best      *models.PurchaseOrder
		bestScore float64
		bestSKUs  []string
	)
	// candidates arrive most recent first; a later candidate must strictly
	// beat the running best so recency breaks ties
	for i := range candidates {
		po := &candidates[i]
		onOrder := make(map[string]struct{}, len(po.Lines))
		for _, l := range po.Lines {
			onOrder[l.InternalSKU] = struct{}{}
		}
		matched := 0
		for _, sku := range docSKUs {
			if _, ok := onOrder[sku]; ok {
				matched++
			}
		}
		score := float64(matched) / float64(len(lines)) * 100
		if best == nil || score > bestScore {
			best = po
			bestScore = score
			bestSKUs = skuSet(onOrder)
		}
	}

	if bestScore >= e.cfg.ScoreThreshold {
		e.logger.Info("reconcile.infer.accepted",
			"order", best.Number, "score", bestScore, "threshold", e.cfg.ScoreThreshold)
		return best, bestScore, "", nil
	}

	sort.Strings(docSKUs)
	detail := fmt.Sprintf("best candidate %s scored %.0f (threshold %.0f); document skus [%s]; order skus [%s]",
		best.Number, bestScore, e.cfg.ScoreThreshold,
		strings.Join(docSKUs, " "), strings.Join(bestSKUs, " "))
	e.logger.Warn("reconcile.infer.rejected", "best_order", best.Number, "score", bestScore)
	return nil, bestScore, detail, nil
}

func skuSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for sku := range m {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}
