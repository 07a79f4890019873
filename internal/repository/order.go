package repository

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmaia/inbound-recon/internal/models"
)

// OrderRepository manages purchase orders and their lines.
type OrderRepository interface {
	GetByNumber(ctx context.Context, number string) (*models.PurchaseOrder, error)
	// GetOrCreate registers an order on first sight. AutoCreated marks orders
	// materialized from purchase_order documents rather than entered by hand.
	GetOrCreate(ctx context.Context, number string, supplierID uint, autoCreated bool) (*models.PurchaseOrder, error)
	ListOpenBySupplier(ctx context.Context, supplierID uint) ([]models.PurchaseOrder, error)
	// UpsertLine inserts an order line; a conflicting (po, sku) pair
	// aggregates the ordered quantity instead of overwriting it.
	UpsertLine(ctx context.Context, line *models.POLine) error
	// AddReceived accumulates a received quantity onto a line.
	AddReceived(ctx context.Context, lineID uint, qty decimal.Decimal) error
}

type orderRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewOrderRepository(db *gorm.DB, logger *slog.Logger) OrderRepository {
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.WithContext(ctx).Preload("Lines").Where("number = ?", number).First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *orderRepository) GetOrCreate(ctx context.Context, number string, supplierID uint, autoCreated bool) (*models.PurchaseOrder, error) {
	po := models.PurchaseOrder{Number: number, SupplierID: supplierID, AutoCreated: autoCreated}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "number"}}, DoNothing: true}).
		Create(&po).Error
	if err != nil {
		return nil, err
	}
	if po.ID == 0 {
		if err := r.db.WithContext(ctx).Preload("Lines").Where("number = ?", number).First(&po).Error; err != nil {
			return nil, err
		}
	} else {
		r.logger.Info("order.registered", "number", number, "auto_created", autoCreated)
	}
	return &po, nil
}

func (r *orderRepository) ListOpenBySupplier(ctx context.Context, supplierID uint) ([]models.PurchaseOrder, error) {
	var pos []models.PurchaseOrder
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	// open means at least one line still expects quantity
	open := pos[:0]
	for _, po := range pos {
		for i := range po.Lines {
			if !po.Lines[i].IsComplete() {
				open = append(open, po)
				break
			}
		}
	}
	return open, nil
}

func (r *orderRepository) UpsertLine(ctx context.Context, line *models.POLine) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "purchase_order_id"}, {Name: "internal_sku"}},
			DoUpdates: clause.Assignments(map[string]any{
				"qty_ordered": gorm.Expr("po_lines.qty_ordered + EXCLUDED.qty_ordered"),
			}),
		}).
		Create(line).Error
}

func (r *orderRepository) AddReceived(ctx context.Context, lineID uint, qty decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.POLine{}).
		Where("id = ?", lineID).
		UpdateColumn("qty_received", gorm.Expr("qty_received + ?", qty)).Error
}
