package model

import "time"

// SearchTerm is one query string the weekly scheduler scrapes for.
// LastScrapedAt is nil until the term has been scraped at least once.
type SearchTerm struct {
	Term           string     `gorm:"type:varchar(100);primaryKey" json:"term"`
	LastScrapedAt  *time.Time `json:"last_scraped_at"`
	JobsFoundCount int        `json:"jobs_found_count"`
	Active         bool       `gorm:"default:true" json:"active"`
}

func (t *SearchTerm) TableName() string {
	return "search_terms"
}
