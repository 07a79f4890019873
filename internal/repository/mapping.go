package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmaia/inbound-recon/internal/models"
)

// MappingRepository translates supplier product codes to internal SKUs.
type MappingRepository interface {
	Resolve(ctx context.Context, supplierID uint, supplierCode string) (*models.CodeMapping, error)
	// GetOrCreate self-registers an unknown code atomically; concurrent
	// first sights of the same code converge on one row.
	GetOrCreate(ctx context.Context, mapping *models.CodeMapping) (*models.CodeMapping, error)
	ListBySupplier(ctx context.Context, supplierID uint) ([]models.CodeMapping, error)
}

type mappingRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMappingRepository(db *gorm.DB, logger *slog.Logger) MappingRepository {
	return &mappingRepository{db: db, logger: logger}
}

func (r *mappingRepository) Resolve(ctx context.Context, supplierID uint, supplierCode string) (*models.CodeMapping, error) {
	var m models.CodeMapping
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND supplier_code = ?", supplierID, supplierCode).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepository) GetOrCreate(ctx context.Context, mapping *models.CodeMapping) (*models.CodeMapping, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "supplier_id"}, {Name: "supplier_code"}},
			DoNothing: true,
		}).
		Create(mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return r.Resolve(ctx, mapping.SupplierID, mapping.SupplierCode)
	}
	r.logger.Info("mapping.auto_registered",
		"supplier_id", mapping.SupplierID,
		"supplier_code", mapping.SupplierCode,
		"internal_sku", mapping.InternalSKU)
	return mapping, nil
}

func (r *mappingRepository) ListBySupplier(ctx context.Context, supplierID uint) ([]models.CodeMapping, error) {
	var ms []models.CodeMapping
	err := r.db.WithContext(ctx).Where("supplier_id = ?", supplierID).Find(&ms).Error
	return ms, err
}
