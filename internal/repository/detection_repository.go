package repository

import (
	"fmt"

	"github.com/aldirahman/toolradar/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DetectionRepositoryInterface interface {
	Upsert(d *model.Detection) error
	FindAll() ([]model.Detection, error)
	FindPage(page, pageSize int) ([]model.Detection, int64, error)
	DeleteByIDs(ids []uuid.UUID) (int64, error)
	Count() (int64, error)
	CompaniesWithConfidentDetection() ([]string, error)
}

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db}
}

// confidenceRankSQL mirrors model.ConfidenceRank so the upsert can compare
// confidence levels inside Postgres. Keep the two in sync.
func confidenceRankSQL(column string) string {
	return fmt.Sprintf(
		"CASE lower(%s) WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END",
		column,
	)
}

// Upsert inserts a detection or, when (company, tool) already exists, updates
// the evidence — but only if the new confidence is at least as high as the
// stored one. identified_at is never updated, so the earliest sighting wins.
func (r *DetectionRepository) Upsert(d *model.Detection) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `
        INSERT INTO detections (id, company, tool, signal_type, context, confidence, job_title, job_url, identified_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (company, tool) DO UPDATE SET
            signal_type = EXCLUDED.signal_type,
            context     = EXCLUDED.context,
            confidence  = EXCLUDED.confidence,
            job_title   = EXCLUDED.job_title,
            job_url     = EXCLUDED.job_url
        WHERE ` + confidenceRankSQL("EXCLUDED.confidence") + ` >= ` + confidenceRankSQL("detections.confidence")
	return r.db.Exec(query,
		d.ID, d.Company, d.Tool, d.SignalType, d.Context,
		d.Confidence, d.JobTitle, d.JobURL, d.IdentifiedAt,
	).Error
}

// FindAll returns every detection ordered by identified_at ascending, which
// the consolidator relies on to keep the earliest record of each group.
func (r *DetectionRepository) FindAll() ([]model.Detection, error) {
	var detections []model.Detection
	err := r.db.Order("identified_at ASC, id ASC").Find(&detections).Error
	return detections, err
}

func (r *DetectionRepository) FindPage(page, pageSize int) ([]model.Detection, int64, error) {
	var total int64
	if err := r.db.Model(&model.Detection{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var detections []model.Detection
	err := r.db.
		Order("identified_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&detections).Error
	return detections, total, err
}

func (r *DetectionRepository) DeleteByIDs(ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Where("id IN ?", ids).Delete(&model.Detection{})
	return result.RowsAffected, result.Error
}

func (r *DetectionRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&model.Detection{}).Count(&total).Error
	return total, err
}

// CompaniesWithConfidentDetection returns companies that already have a
// high-confidence detection. These feed the never-analyze list.
func (r *DetectionRepository) CompaniesWithConfidentDetection() ([]string, error) {
	var companies []string
	err := r.db.Model(&model.Detection{}).
		Distinct("company").
		Where("lower(confidence) = ? AND tool <> ?", model.ConfidenceHigh, model.ToolNone).
		Pluck("company", &companies).Error
	return companies, err
}
