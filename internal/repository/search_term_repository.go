package repository

import (
	"time"

	"github.com/aldirahman/toolradar/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SearchTermRepositoryInterface interface {
	FindAll() ([]model.SearchTerm, error)
	FindActive() ([]model.SearchTerm, error)
	TouchAfterScrape(term string, scrapedAt time.Time, jobsFound int) error
	SeedIfEmpty(terms []string) error
}

type SearchTermRepository struct {
	db *gorm.DB
}

func NewSearchTermRepository(db *gorm.DB) *SearchTermRepository {
	return &SearchTermRepository{db}
}

func (r *SearchTermRepository) FindAll() ([]model.SearchTerm, error) {
	var terms []model.SearchTerm
	err := r.db.Order("term ASC").Find(&terms).Error
	return terms, err
}

func (r *SearchTermRepository) FindActive() ([]model.SearchTerm, error) {
	var terms []model.SearchTerm
	err := r.db.Where("active = ?", true).Order("term ASC").Find(&terms).Error
	return terms, err
}

// TouchAfterScrape records that one term has just been scraped. Called right
// after each term's run, not batched, so a crash mid-cycle leaves finished
// terms correctly marked.
func (r *SearchTermRepository) TouchAfterScrape(term string, scrapedAt time.Time, jobsFound int) error {
	return r.db.Model(&model.SearchTerm{}).
		Where("term = ?", term).
		Updates(map[string]interface{}{
			"last_scraped_at":  scrapedAt,
			"jobs_found_count": jobsFound,
		}).Error
}

// SeedIfEmpty inserts the given terms when the table has none yet, ignoring
// conflicts so it is safe to call on every startup.
func (r *SearchTermRepository) SeedIfEmpty(terms []string) error {
	if len(terms) == 0 {
		return nil
	}
	var count int64
	if err := r.db.Model(&model.SearchTerm{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	rows := make([]model.SearchTerm, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, model.SearchTerm{Term: t, Active: true})
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
