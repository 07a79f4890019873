package repository

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmaia/inbound-recon/internal/models"
)

// SupplierRepository resolves and auto-registers counterparties.
type SupplierRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Supplier, error)
	FindByTaxID(ctx context.Context, taxID string) (*models.Supplier, error)
	// GetOrCreateByName resolves a supplier by name, registering it with a
	// slug code on first sight. Concurrent callers converge on one row.
	GetOrCreateByName(ctx context.Context, name, taxID string) (*models.Supplier, error)
}

type supplierRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewSupplierRepository(db *gorm.DB, logger *slog.Logger) SupplierRepository {
	return &supplierRepository{db: db, logger: logger}
}

func (r *supplierRepository) GetByCode(ctx context.Context, code string) (*models.Supplier, error) {
	var s models.Supplier
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *supplierRepository) FindByTaxID(ctx context.Context, taxID string) (*models.Supplier, error) {
	if taxID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var s models.Supplier
	if err := r.db.WithContext(ctx).Where("tax_id = ?", taxID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *supplierRepository) GetOrCreateByName(ctx context.Context, name, taxID string) (*models.Supplier, error) {
	name = strings.TrimSpace(name)
	s := models.Supplier{Name: name, Code: Slugify(name), TaxID: taxID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&s).Error
	if err != nil {
		return nil, err
	}
	// ON CONFLICT DO NOTHING leaves the struct without an ID on conflict
	if s.ID == 0 {
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
			return nil, err
		}
	} else {
		r.logger.Info("supplier.auto_registered", "name", name, "code", s.Code)
	}
	return &s, nil
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a stable supplier code from a display name.
func Slugify(name string) string {
	low := strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e", "í", "i",
		"ó", "o", "õ", "o", "ô", "o",
		"ú", "u", "ç", "c",
	)
	low = replacer.Replace(low)
	slug := strings.Trim(reNonSlug.ReplaceAllString(low, "-"), "-")
	if len(slug) > 50 {
		slug = slug[:50]
	}
	if slug == "" {
		slug = "supplier"
	}
	return slug
}
