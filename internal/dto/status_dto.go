package dto

import "time"

// StatusDTO is the pipeline health snapshot returned by GET /status.
type StatusDTO struct {
	TotalPostings    int64           `json:"total_postings"`
	UnprocessedCount int64           `json:"unprocessed_count"`
	TotalDetections  int64           `json:"total_detections"`
	Terms            []TermStatusDTO `json:"terms"`
}

type TermStatusDTO struct {
	Term           string     `json:"term"`
	Active         bool       `json:"active"`
	LastScrapedAt  *time.Time `json:"last_scraped_at"`
	JobsFoundCount int        `json:"jobs_found_count"`
}

// ScrapeRequestDTO is the body of POST /scrape.
type ScrapeRequestDTO struct {
	Title    string `json:"title"`
	MaxItems int    `json:"max_items"`
}

// RequeueRequestDTO is the body of POST /requeue-failed: posting IDs to put
// back in the analyzer queue.
type RequeueRequestDTO struct {
	IDs []string `json:"ids"`
}
