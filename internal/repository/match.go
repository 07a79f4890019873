package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/models"
)

// MatchRepository persists reconciliation outcomes and the exception ledger.
type MatchRepository interface {
	// UpsertResult keeps the single MatchResult row per document current.
	UpsertResult(ctx context.Context, result *models.MatchResult) error
	GetResult(ctx context.Context, documentID uuid.UUID) (*models.MatchResult, error)
	AddException(ctx context.Context, task *models.ExceptionTask) error
	// ReplaceBusinessExceptions recomputes the business-stage exceptions of a
	// document. Acquisition-stage rows (LineRef == constants.OCRLineRef)
	// survive every reprocessing pass.
	ReplaceBusinessExceptions(ctx context.Context, documentID uuid.UUID, tasks []models.ExceptionTask) error
	ListOpenExceptions(ctx context.Context, documentID uuid.UUID) ([]models.ExceptionTask, error)
	ResolveException(ctx context.Context, id uint) error
}

type matchRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMatchRepository(db *gorm.DB, logger *slog.Logger) MatchRepository {
	return &matchRepository{db: db, logger: logger}
}

func (r *matchRepository) UpsertResult(ctx context.Context, result *models.MatchResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "summary", "updated_at"}),
		}).
		Create(result).Error
}

func (r *matchRepository) GetResult(ctx context.Context, documentID uuid.UUID) (*models.MatchResult, error) {
	var res models.MatchResult
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *matchRepository) AddException(ctx context.Context, task *models.ExceptionTask) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return err
	}
	r.logger.Info("exception.raised",
		"document_id", task.DocumentID, "kind", task.Kind, "line_ref", task.LineRef)
	return nil
}

func (r *matchRepository) ReplaceBusinessExceptions(ctx context.Context, documentID uuid.UUID, tasks []models.ExceptionTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("document_id = ? AND line_ref <> ?", documentID, constants.OCRLineRef).
			Delete(&models.ExceptionTask{}).Error
		if err != nil {
			return err
		}
		for i := range tasks {
			tasks[i].ID = 0
			tasks[i].DocumentID = documentID
		}
		if len(tasks) == 0 {
			return nil
		}
		return tx.Create(&tasks).Error
	})
}

func (r *matchRepository) ListOpenExceptions(ctx context.Context, documentID uuid.UUID) ([]models.ExceptionTask, error) {
	var tasks []models.ExceptionTask
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND resolved = false", documentID).
		Order("id").Find(&tasks).Error
	return tasks, err
}

func (r *matchRepository) ResolveException(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.ExceptionTask{}).
		Where("id = ?", id).Update("resolved", true).Error
}
