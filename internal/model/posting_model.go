package model

import (
	"time"
)

// Posting is one scraped job listing. The ID is stable across re-scrapes
// (platform-prefixed native ID, or a synthetic content hash), so re-ingesting
// the same search term never creates duplicate rows.
type Posting struct {
	ID          string     `gorm:"type:varchar(100);primaryKey" json:"id"`
	Platform    string     `gorm:"type:varchar(50)" json:"platform"`
	Company     string     `gorm:"type:varchar(255);index" json:"company"`
	Title       string     `gorm:"type:varchar(500)" json:"title"`
	Location    string     `gorm:"type:varchar(255)" json:"location"`
	Description string     `gorm:"type:text" json:"description"`
	URL         string     `gorm:"type:text" json:"url"`
	SearchTerm  string     `gorm:"type:varchar(100);index" json:"search_term"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	Processed   bool       `gorm:"index" json:"processed"`
	AnalyzedAt  *time.Time `json:"analyzed_at"`
}

func (p *Posting) TableName() string {
	return "postings"
}
