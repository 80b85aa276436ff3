package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gar-rock/resume-crunch/internal/models"
)

var (
	ErrResumeNotFound   = errors.New("resume not found")
	ErrResumeProcessing = errors.New("resume is being processed")
)

// ResumeRepository is the metadata store. Update is an atomic
// read-modify-write of a single record; mutate runs on a private copy and
// its error aborts the write.
type ResumeRepository interface {
	Create(ctx context.Context, record *models.ResumeRecord) error
	FindByFilename(ctx context.Context, filename string) (*models.ResumeRecord, error)
	FindAll(ctx context.Context) ([]models.ResumeRecord, error)
	FindByStatus(ctx context.Context, status models.ProcessingStatus, limit int) ([]models.ResumeRecord, error)
	Update(ctx context.Context, filename string, mutate func(*models.ResumeRecord) error) (*models.ResumeRecord, error)
	Delete(ctx context.Context, filename string) error
}

type resumeRepository struct {
	db *gorm.DB
}

func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

// Create implements ResumeRepository. Re-uploading a file replaces its
// record unless an evaluation is running.
func (r *resumeRepository) Create(ctx context.Context, record *models.ResumeRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ResumeRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("filename = ?", record.Filename).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.ProcessingStatus == models.StatusProcessing {
				return fmt.Errorf("%s: %w", record.Filename, ErrResumeProcessing)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
	})
	if err != nil {
		if errors.Is(err, ErrResumeProcessing) {
			return err
		}
		return fmt.Errorf("failed to create resume: %w", err)
	}

	return nil
}

// FindByFilename implements ResumeRepository.
func (r *resumeRepository) FindByFilename(ctx context.Context, filename string) (*models.ResumeRecord, error) {
	var rec models.ResumeRecord
	if err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
		}
		return nil, fmt.Errorf("failed to find resume: %w", err)
	}

	return &rec, nil
}

// FindAll implements ResumeRepository.
func (r *resumeRepository) FindAll(ctx context.Context) ([]models.ResumeRecord, error) {
	var recs []models.ResumeRecord
	if err := r.db.WithContext(ctx).Order("filename ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}

	return recs, nil
}

// FindByStatus implements ResumeRepository.
func (r *resumeRepository) FindByStatus(ctx context.Context, status models.ProcessingStatus, limit int) ([]models.ResumeRecord, error) {
	q := r.db.WithContext(ctx).
		Where("processing_status = ?", status).
		Order("upload_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []models.ResumeRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to find resumes by status: %w", err)
	}

	return recs, nil
}

// Update implements ResumeRepository. The row is locked for the duration of
// the transaction.
func (r *resumeRepository) Update(ctx context.Context, filename string, mutate func(*models.ResumeRecord) error) (*models.ResumeRecord, error) {
	var rec models.ResumeRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("filename = ?", filename).
			First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
			}
			return fmt.Errorf("failed to load resume: %w", err)
		}

		if err := mutate(&rec); err != nil {
			return err
		}

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to update resume: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Delete implements ResumeRepository.
func (r *resumeRepository) Delete(ctx context.Context, filename string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.ResumeRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("filename = ?", filename).
			First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
			}
			return fmt.Errorf("failed to load resume: %w", err)
		}

		if rec.ProcessingStatus == models.StatusProcessing {
			return fmt.Errorf("%s: %w", filename, ErrResumeProcessing)
		}

		if err := tx.Where("filename = ?", filename).Delete(&models.ResumeRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete resume: %w", err)
		}
		return nil
	})
}
