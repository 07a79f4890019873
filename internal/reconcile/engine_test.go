package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/common"
	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/models"
)

type fakeOrders struct {
	orders     []*models.PurchaseOrder
	nextPOID   uint
	nextLineID uint
}

func (f *fakeOrders) GetByNumber(_ context.Context, number string) (*models.PurchaseOrder, error) {
	for _, po := range f.orders {
		if po.Number == number {
			return po, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) GetOrCreate(_ context.Context, number string, supplierID uint, autoCreated bool) (*models.PurchaseOrder, error) {
	for _, po := range f.orders {
		if po.Number == number {
			return po, nil
		}
	}
	f.nextPOID++
	po := &models.PurchaseOrder{ID: f.nextPOID, Number: number, SupplierID: supplierID, AutoCreated: autoCreated}
	f.orders = append(f.orders, po)
	return po, nil
}

func (f *fakeOrders) ListOpenBySupplier(_ context.Context, supplierID uint) ([]models.PurchaseOrder, error) {
	var out []models.PurchaseOrder
	// most recent first
	for i := len(f.orders) - 1; i >= 0; i-- {
		po := f.orders[i]
		if po.SupplierID != supplierID {
			continue
		}
		for j := range po.Lines {
			if !po.Lines[j].IsComplete() {
				out = append(out, *po)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOrders) UpsertLine(_ context.Context, ln *models.POLine) error {
	for _, po := range f.orders {
		if po.ID != ln.PurchaseOrderID {
			continue
		}
		for i := range po.Lines {
			if po.Lines[i].InternalSKU == ln.InternalSKU {
				po.Lines[i].QtyOrdered = po.Lines[i].QtyOrdered.Add(ln.QtyOrdered)
				return nil
			}
		}
		f.nextLineID++
		ln.ID = f.nextLineID
		po.Lines = append(po.Lines, *ln)
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeOrders) AddReceived(_ context.Context, lineID uint, qty decimal.Decimal) error {
	for _, po := range f.orders {
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].QtyReceived = po.Lines[i].QtyReceived.Add(qty)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeMappings struct {
	byKey  map[string]*models.CodeMapping
	nextID uint
}

func mappingKey(supplierID uint, code string) string {
	return fmt.Sprintf("%d/%s", supplierID, code)
}

func (f *fakeMappings) Resolve(_ context.Context, supplierID uint, code string) (*models.CodeMapping, error) {
	if m, ok := f.byKey[mappingKey(supplierID, code)]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMappings) GetOrCreate(_ context.Context, m *models.CodeMapping) (*models.CodeMapping, error) {
	if f.byKey == nil {
		f.byKey = make(map[string]*models.CodeMapping)
	}
	key := mappingKey(m.SupplierID, m.SupplierCode)
	if ex, ok := f.byKey[key]; ok {
		return ex, nil
	}
	f.nextID++
	m.ID = f.nextID
	f.byKey[key] = m
	return m, nil
}

func (f *fakeMappings) ListBySupplier(_ context.Context, supplierID uint) ([]models.CodeMapping, error) {
	var out []models.CodeMapping
	for _, m := range f.byKey {
		if m.SupplierID == supplierID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeMatches struct {
	results map[uuid.UUID]*models.MatchResult
	tasks   []models.ExceptionTask
	nextID  uint
}

func (f *fakeMatches) UpsertResult(_ context.Context, r *models.MatchResult) error {
	if f.results == nil {
		f.results = make(map[uuid.UUID]*models.MatchResult)
	}
	f.results[r.DocumentID] = r
	return nil
}

func (f *fakeMatches) GetResult(_ context.Context, documentID uuid.UUID) (*models.MatchResult, error) {
	if r, ok := f.results[documentID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMatches) AddException(_ context.Context, t *models.ExceptionTask) error {
	f.nextID++
	t.ID = f.nextID
	f.tasks = append(f.tasks, *t)
	return nil
}

func (f *fakeMatches) ReplaceBusinessExceptions(_ context.Context, documentID uuid.UUID, tasks []models.ExceptionTask) error {
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if t.DocumentID != documentID || constants.IsProcessingStage(t.LineRef) {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	for _, t := range tasks {
		f.nextID++
		t.ID = f.nextID
		t.DocumentID = documentID
		f.tasks = append(f.tasks, t)
	}
	return nil
}

func (f *fakeMatches) ListOpenExceptions(_ context.Context, documentID uuid.UUID) ([]models.ExceptionTask, error) {
	var out []models.ExceptionTask
	for _, t := range f.tasks {
		if t.DocumentID == documentID && !t.Resolved {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeMatches) ResolveException(_ context.Context, id uint) error {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Resolved = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func newTestEngine() (*Engine, *fakeOrders, *fakeMappings, *fakeMatches) {
	orders := &fakeOrders{}
	mappings := &fakeMappings{}
	matches := &fakeMatches{}
	cfg := common.MatchConfig{ScoreThreshold: 70, DefaultTolerance: "0.08"}
	return NewEngine(orders, mappings, matches, cfg, nil), orders, mappings, matches
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedOrder(orders *fakeOrders, number string, supplierID uint, skus map[string]string) *models.PurchaseOrder {
	po, _ := orders.GetOrCreate(context.Background(), number, supplierID, false)
	for sku, q := range skus {
		_ = orders.UpsertLine(context.Background(), &models.POLine{
			PurchaseOrderID: po.ID,
			InternalSKU:     sku,
			QtyOrdered:      qty(q),
		})
	}
	return po
}

func item(code, ref, q string) extract.Item {
	return extract.Item{Code: code, Description: "desc for " + code, Qty: qty(q), OrderRef: ref}
}

func TestRegisterOrderAggregatesDuplicateSKUs(t *testing.T) {
	e, _, _, _ := newTestEngine()
	supplier := &models.Supplier{ID: 1, Code: "acme", Name: "Acme"}

	// two embedded order groups both carry SKU X
	items := []extract.Item{
		item("X", "G1", "2"),
		item("X", "G2", "3"),
		item("Y", "G1", "7"),
	}
	po, err := e.RegisterOrder(context.Background(), supplier, "2026/100", items)
	require.NoError(t, err)

	require.Len(t, po.Lines, 2)
	var lineX *models.POLine
	for i := range po.Lines {
		if po.Lines[i].InternalSKU == "X" {
			lineX = &po.Lines[i]
		}
	}
	require.NotNil(t, lineX)
	assert.True(t, lineX.QtyOrdered.Equal(qty("5")), "2+3 aggregates to a single line of 5, got %s", lineX.QtyOrdered)
}

func TestExplicitLinkageAndTolerance(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	supplier := &models.Supplier{ID: 1}
	seedOrder(orders, "2026/200", 1, map[string]string{"A": "100", "B": "50"})
	doc := &models.Document{ID: uuid.New(), DocType: constants.DocTypeDeliveryNote, PONumber: "2026/200"}

	t.Run("within tolerance matches", func(t *testing.T) {
		res, err := e.Reconcile(context.Background(), doc, supplier,
			[]extract.Item{item("A", "", "105"), item("B", "", "50")}, false)
		require.NoError(t, err)
		assert.Equal(t, constants.MatchStatusMatched, res.Status, "105 <= 100*1.08")
		tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
		assert.Empty(t, tasks)
	})

	t.Run("beyond tolerance raises QuantityExceeded", func(t *testing.T) {
		res, err := e.Reconcile(context.Background(), doc, supplier,
			[]extract.Item{item("A", "", "109")}, false)
		require.NoError(t, err)
		assert.Equal(t, constants.MatchStatusExceptions, res.Status, "109 > 100*1.08")
		tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
		require.Len(t, tasks, 1)
		assert.Equal(t, constants.ExcQuantityExceeded, tasks[0].Kind)
		assert.Equal(t, "A", tasks[0].LineRef)
	})
}

func TestUnregisteredOrderNumberRaisesUnresolved(t *testing.T) {
	e, _, _, matches := newTestEngine()
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/999"}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "1")}, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status)
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.ExcUnresolvedOrder, tasks[0].Kind)
}

func TestInferenceThreshold(t *testing.T) {
	mkItems := func(n int) []extract.Item {
		items := make([]extract.Item, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, item(fmt.Sprintf("SKU-%02d", i), "", "1"))
		}
		return items
	}
	seedMatching := func(orders *fakeOrders, number string, matching int) {
		skus := make(map[string]string, matching)
		for i := 0; i < matching; i++ {
			skus[fmt.Sprintf("SKU-%02d", i)] = "10"
		}
		seedOrder(orders, number, 1, skus)
	}

	t.Run("7 of 10 matching is accepted", func(t *testing.T) {
		e, orders, _, _ := newTestEngine()
		seedMatching(orders, "2026/300", 7)
		doc := &models.Document{ID: uuid.New()}
		res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, mkItems(10), false)
		require.NoError(t, err)
		var summary Summary
		require.NoError(t, json.Unmarshal(res.Summary, &summary))
		require.Len(t, summary.Groups, 1)
		assert.Equal(t, "2026/300", summary.Groups[0].OrderNumber)
		assert.True(t, summary.Groups[0].Inferred)
		assert.InDelta(t, 70, summary.Groups[0].Score, 0.01)
	})

	t.Run("6 of 10 is rejected with score 60", func(t *testing.T) {
		e, orders, _, matches := newTestEngine()
		seedMatching(orders, "2026/301", 6)
		doc := &models.Document{ID: uuid.New()}
		res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, mkItems(10), false)
		require.NoError(t, err)
		assert.Equal(t, constants.MatchStatusExceptions, res.Status)
		tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
		require.Len(t, tasks, 1)
		assert.Equal(t, constants.ExcUnresolvedOrder, tasks[0].Kind)
		assert.Contains(t, tasks[0].Detail, "scored 60")
		assert.Contains(t, tasks[0].Detail, "SKU-00", "detail carries the compared sku sets")
	})
}

func TestStatusErrorWinsOverBusinessExceptions(t *testing.T) {
	e, _, _, matches := newTestEngine()
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/404"}

	require.NoError(t, matches.AddException(context.Background(), &models.ExceptionTask{
		DocumentID: doc.ID,
		Kind:       constants.ExcIllegibleDocument,
		LineRef:    constants.OCRLineRef,
		Detail:     "text below legibility threshold",
	}))

	// the unregistered order would normally yield status exceptions
	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "1")}, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusError, res.Status)
}

func TestReprocessingIsIdempotent(t *testing.T) {
	e, _, _, matches := newTestEngine()
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/500"}

	require.NoError(t, matches.AddException(context.Background(), &models.ExceptionTask{
		DocumentID: doc.ID,
		Kind:       constants.ExcIllegibleDocument,
		LineRef:    constants.OCRLineRef,
	}))

	items := []extract.Item{item("A", "", "1")}
	_, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, false)
	require.NoError(t, err)
	_, err = e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, false)
	require.NoError(t, err)

	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	ocr, business := 0, 0
	for _, task := range tasks {
		if constants.IsProcessingStage(task.LineRef) {
			ocr++
		} else {
			business++
		}
	}
	assert.Equal(t, 1, ocr, "acquisition-stage exception persists across passes")
	assert.Equal(t, 1, business, "business exceptions are recomputed, not duplicated")
}

func TestGroupingLinksEachRefSeparately(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	seedOrder(orders, "2026/601", 1, map[string]string{"A": "10"})
	seedOrder(orders, "2026/602", 1, map[string]string{"B": "20"})
	doc := &models.Document{ID: uuid.New()}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "2026/601", "10"), item("B", "2026/602", "20")}, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusMatched, res.Status)
	var summary Summary
	require.NoError(t, json.Unmarshal(res.Summary, &summary))
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, "2026/601", summary.Groups[0].OrderNumber)
	assert.Equal(t, "2026/602", summary.Groups[1].OrderNumber)
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	assert.Empty(t, tasks)
}

func TestReceivedQuantitiesApplyOnlyWhenRequested(t *testing.T) {
	e, orders, _, _ := newTestEngine()
	po := seedOrder(orders, "2026/700", 1, map[string]string{"A": "100"})
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/700"}

	_, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "40")}, true)
	require.NoError(t, err)
	assert.True(t, po.Lines[0].QtyReceived.Equal(qty("40")))

	_, err = e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "40")}, false)
	require.NoError(t, err)
	assert.True(t, po.Lines[0].QtyReceived.Equal(qty("40")), "reprocessing must not double-count receipts")
}

func TestFullReceiptStaysMatchedOnReprocessing(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	po := seedOrder(orders, "2026/701", 1, map[string]string{"A": "100"})
	doc := &models.Document{ID: uuid.New(), DocType: constants.DocTypeDeliveryNote, PONumber: "2026/701"}
	items := []extract.Item{item("A", "", "100")}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, true)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusMatched, res.Status)
	require.True(t, po.Lines[0].QtyReceived.Equal(qty("100")))

	// the stored total already carries this document's receipt
	res, err = e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusMatched, res.Status, "a fully received line must not exceed on reprocessing")
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	assert.Empty(t, tasks)
	assert.True(t, po.Lines[0].QtyReceived.Equal(qty("100")))
}

func TestExceededLineStaysExceededOnReprocessing(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	po := seedOrder(orders, "2026/702", 1, map[string]string{"A": "100"})
	doc := &models.Document{ID: uuid.New(), DocType: constants.DocTypeDeliveryNote, PONumber: "2026/702"}
	items := []extract.Item{item("A", "", "120")}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, true)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status)
	require.True(t, po.Lines[0].QtyReceived.IsZero(), "an exceeded receipt is never applied")

	res, err = e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status)
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.ExcQuantityExceeded, tasks[0].Kind)
}

func TestExplicitRefToForeignSupplierOrder(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	po := seedOrder(orders, "2026/900", 2, map[string]string{"A": "10"})
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/900"}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "10")}, true)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status)
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.ExcUnresolvedOrder, tasks[0].Kind)
	assert.Contains(t, tasks[0].Detail, "another supplier")
	assert.True(t, po.Lines[0].QtyReceived.IsZero(), "the foreign order stays untouched")
}

func TestExplicitZeroToleranceAdmitsNoOverReceipt(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	po, _ := orders.GetOrCreate(context.Background(), "2026/901", 1, false)
	require.NoError(t, orders.UpsertLine(context.Background(), &models.POLine{
		PurchaseOrderID: po.ID,
		InternalSKU:     "A",
		QtyOrdered:      qty("100"),
		Tolerance:       decimal.NewNullDecimal(decimal.Zero),
	}))
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/901"}

	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1},
		[]extract.Item{item("A", "", "101")}, true)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status, "zero tolerance must not fall back to the default")
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.ExcQuantityExceeded, tasks[0].Kind)
}

func TestMajorityInvalidItemsFlagInvalidProduct(t *testing.T) {
	e, orders, _, matches := newTestEngine()
	seedOrder(orders, "2026/800", 1, map[string]string{"A": "10"})
	doc := &models.Document{ID: uuid.New(), PONumber: "2026/800"}

	items := []extract.Item{
		item("A", "", "5"),
		{Code: "", Description: "", Qty: decimal.Zero},
		{Code: "", Description: "", Qty: decimal.Zero},
	}
	res, err := e.Reconcile(context.Background(), doc, &models.Supplier{ID: 1}, items, false)
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStatusExceptions, res.Status)
	tasks, _ := matches.ListOpenExceptions(context.Background(), doc.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.ExcInvalidProduct, tasks[0].Kind)
}
