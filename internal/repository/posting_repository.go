package repository

import (
	"time"

	"github.com/aldirahman/toolradar/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostingRepositoryInterface interface {
	SaveBatch(postings []model.Posting) (int, error)
	FindUnprocessed(limit int) ([]model.Posting, error)
	MarkProcessed(id string, analyzedAt time.Time) error
	ResetProcessed(ids []string) (int64, error)
	Counts() (total int64, unprocessed int64, err error)
}

type PostingRepository struct {
	db *gorm.DB
}

func NewPostingRepository(db *gorm.DB) *PostingRepository {
	return &PostingRepository{db}
}

// SaveBatch inserts postings and silently skips rows whose identifier already
// exists, which is what makes re-ingestion idempotent. Returns the number of
// rows actually inserted.
func (r *PostingRepository) SaveBatch(postings []model.Posting) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&postings)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// FindUnprocessed returns up to limit postings in creation order, oldest
// first, so analysis is FIFO-fair.
func (r *PostingRepository) FindUnprocessed(limit int) ([]model.Posting, error) {
	var postings []model.Posting
	err := r.db.
		Where("processed = ?", false).
		Order("scraped_at ASC, id ASC").
		Limit(limit).
		Find(&postings).Error
	return postings, err
}

func (r *PostingRepository) MarkProcessed(id string, analyzedAt time.Time) error {
	return r.db.Model(&model.Posting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":   true,
			"analyzed_at": analyzedAt,
		}).Error
}

// ResetProcessed re-queues postings for analysis. Maintenance path only.
func (r *PostingRepository) ResetProcessed(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&model.Posting{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"processed":   false,
			"analyzed_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *PostingRepository) Counts() (int64, int64, error) {
	var total, unprocessed int64
	if err := r.db.Model(&model.Posting{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&model.Posting{}).Where("processed = ?", false).Count(&unprocessed).Error; err != nil {
		return 0, 0, err
	}
	return total, unprocessed, nil
}
