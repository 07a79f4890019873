package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmaia/inbound-recon/internal/models"
)

// MiniCodeRepository stores the simplified internal codes shown on exports.
type MiniCodeRepository interface {
	Upsert(ctx context.Context, mc *models.MiniCode) error
	FindByIdentifier(ctx context.Context, identifier string) (*models.MiniCode, error)
	FindByCode(ctx context.Context, code string) (*models.MiniCode, error)
	BulkUpsert(ctx context.Context, mcs []models.MiniCode) (int, error)
}

type miniCodeRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMiniCodeRepository(db *gorm.DB, logger *slog.Logger) MiniCodeRepository {
	return &miniCodeRepository{db: db, logger: logger}
}

func (r *miniCodeRepository) Upsert(ctx context.Context, mc *models.MiniCode) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"family", "reference", "designation", "identifier", "kind"}),
		}).
		Create(mc).Error
}

func (r *miniCodeRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.MiniCode, error) {
	var mc models.MiniCode
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&mc).Error
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (r *miniCodeRepository) FindByCode(ctx context.Context, code string) (*models.MiniCode, error) {
	var mc models.MiniCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&mc).Error
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (r *miniCodeRepository) BulkUpsert(ctx context.Context, mcs []models.MiniCode) (int, error) {
	count := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range mcs {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"family", "reference", "designation", "identifier", "kind"}),
			}).Create(&mcs[i]).Error
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("minicode.bulk_upsert", "rows", count)
	return count, nil
}
