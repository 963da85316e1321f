package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/aldirahman/toolradar/internal/model"
	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/aldirahman/toolradar/internal/service"
	"github.com/google/uuid"
)

// syntheticIDPrefix marks identifiers derived from posting content because
// the provider supplied no native ID.
const syntheticIDPrefix = "gen_"

// syntheticIDHashWidth is the number of hex characters kept from the content
// hash. Wide enough that collisions are not a practical concern at this
// corpus's scale.
const syntheticIDHashWidth = 16

// IngestResult reports one scrape run for a single search term.
type IngestResult struct {
	RunID        string `json:"run_id"`
	SearchTerm   string `json:"search_term"`
	TotalScraped int    `json:"total_scraped"`
	SavedCount   int    `json:"saved_count"`
	FailedCount  int    `json:"failed_count"`
}

// Ingester is the contract the scheduler drives. Satisfied by IngestUsecase.
type Ingester interface {
	Ingest(ctx context.Context, searchTerm string, maxItems int) (*IngestResult, error)
}

// IngestUsecase captures postings losslessly: it never deduplicates company
// names — that is the analyzer's and consolidator's job — it only guarantees
// that the same upstream posting always lands under the same identifier.
type IngestUsecase struct {
	scraper   service.ScraperServiceInterface
	postings  repository.PostingRepositoryInterface
	platform  string
	batchSize int
}

func NewIngestUsecase(
	scraper service.ScraperServiceInterface,
	postings repository.PostingRepositoryInterface,
	platform string,
	batchSize int,
) *IngestUsecase {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &IngestUsecase{
		scraper:   scraper,
		postings:  postings,
		platform:  platform,
		batchSize: batchSize,
	}
}

// Ingest pulls up to maxItems postings for searchTerm and persists the new
// ones. A failed batch is logged and counted but does not abort the run.
func (uc *IngestUsecase) Ingest(ctx context.Context, searchTerm string, maxItems int) (*IngestResult, error) {
	result := &IngestResult{
		RunID:      uuid.New().String(),
		SearchTerm: searchTerm,
	}

	jobs, err := uc.scraper.FetchPostings(ctx, searchTerm, maxItems)
	if err != nil {
		return nil, fmt.Errorf("fetch postings for %q: %w", searchTerm, err)
	}
	result.TotalScraped = len(jobs)

	scrapedAt := time.Now()
	postings := make([]model.Posting, 0, len(jobs))
	for _, job := range jobs {
		postings = append(postings, model.Posting{
			ID:          uc.stablePostingID(job),
			Platform:    uc.platform,
			Company:     job.CompanyName,
			Title:       job.Title,
			Location:    job.Location,
			Description: job.Description,
			URL:         job.JobURL,
			SearchTerm:  searchTerm,
			ScrapedAt:   scrapedAt,
			Processed:   false,
		})
	}

	for start := 0; start < len(postings); start += uc.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := start + uc.batchSize
		if end > len(postings) {
			end = len(postings)
		}
		batch := postings[start:end]

		saved, err := uc.postings.SaveBatch(batch)
		if err != nil {
			log.Printf("[ingest] Batch insert failed for %q (%d rows): %v — continuing", searchTerm, len(batch), err)
			result.FailedCount += len(batch)
			continue
		}
		result.SavedCount += saved
	}

	log.Printf("[ingest] Run %s for %q done — scraped=%d saved=%d failed=%d",
		result.RunID, searchTerm, result.TotalScraped, result.SavedCount, result.FailedCount)
	return result, nil
}

// stablePostingID derives the idempotent identifier: native provider IDs are
// prefixed with the platform, everything else gets a content hash so
// re-scraping the same posting always collides with its earlier row.
func (uc *IngestUsecase) stablePostingID(job service.ScrapedJob) string {
	if job.ID != "" {
		return fmt.Sprintf("%s_%s", uc.platform, job.ID)
	}
	sum := sha256.Sum256([]byte(job.CompanyName + "|" + job.Title + "|" + job.Location + "|" + job.JobURL))
	return syntheticIDPrefix + hex.EncodeToString(sum[:])[:syntheticIDHashWidth]
}
