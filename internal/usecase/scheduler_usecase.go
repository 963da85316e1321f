package usecase

import (
	"context"
	"log"
	"time"

	"github.com/aldirahman/toolradar/internal/repository"
)

// ScrapeCycleResult reports one full pass over the active search terms.
type ScrapeCycleResult struct {
	TermsScraped int `json:"terms_scraped"`
	TermsFailed  int `json:"terms_failed"`
	TotalSaved   int `json:"total_saved"`
}

// SchedulerUsecase decides when the weekly scrape is due and drives the
// ingestion service across all active terms, strictly one term at a time so
// the scraping provider is never hit concurrently.
type SchedulerUsecase struct {
	terms  repository.SearchTermRepositoryInterface
	ingest Ingester

	maxItemsPerTerm int
	scrapeInterval  time.Duration
	interTermDelay  time.Duration
	checkInterval   time.Duration
	errorBackoff    time.Duration
}

type SchedulerOptions struct {
	MaxItemsPerTerm int
	ScrapeInterval  time.Duration
	InterTermDelay  time.Duration
	CheckInterval   time.Duration
	ErrorBackoff    time.Duration
}

func NewSchedulerUsecase(
	terms repository.SearchTermRepositoryInterface,
	ingest Ingester,
	opts SchedulerOptions,
) *SchedulerUsecase {
	if opts.MaxItemsPerTerm <= 0 {
		opts.MaxItemsPerTerm = 100
	}
	if opts.ScrapeInterval <= 0 {
		opts.ScrapeInterval = 7 * 24 * time.Hour
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Hour
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 10 * time.Minute
	}
	return &SchedulerUsecase{
		terms:           terms,
		ingest:          ingest,
		maxItemsPerTerm: opts.MaxItemsPerTerm,
		scrapeInterval:  opts.ScrapeInterval,
		interTermDelay:  opts.InterTermDelay,
		checkInterval:   opts.CheckInterval,
		errorBackoff:    opts.ErrorBackoff,
	}
}

// IsDue gates on the OLDEST last-scraped timestamp, not the newest: every
// term must be refreshed at least once per interval, not just whichever one
// happened to be touched recently. A term never scraped makes the cycle due
// immediately.
func (uc *SchedulerUsecase) IsDue() (bool, error) {
	terms, err := uc.terms.FindActive()
	if err != nil {
		return false, err
	}
	if len(terms) == 0 {
		return false, nil
	}

	var oldest *time.Time
	for i := range terms {
		last := terms[i].LastScrapedAt
		if last == nil {
			return true, nil
		}
		if oldest == nil || last.Before(*oldest) {
			oldest = last
		}
	}
	return time.Since(*oldest) > uc.scrapeInterval, nil
}

// RunWeeklyScrape ingests every active term sequentially. Each term's
// last-scraped timestamp is updated right after its own run — not batched at
// the end — so a crash mid-cycle only re-attempts the remaining terms.
func (uc *SchedulerUsecase) RunWeeklyScrape(ctx context.Context) (*ScrapeCycleResult, error) {
	terms, err := uc.terms.FindActive()
	if err != nil {
		return nil, err
	}

	result := &ScrapeCycleResult{}
	log.Printf("[scheduler] Scrape cycle started — %d active term(s)", len(terms))

	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		runResult, err := uc.ingest.Ingest(ctx, term.Term, uc.maxItemsPerTerm)
		if err != nil {
			// The term stays untouched so the next cycle retries it.
			log.Printf("[scheduler] Ingest failed for %q: %v — continuing", term.Term, err)
			result.TermsFailed++
		} else {
			if err := uc.terms.TouchAfterScrape(term.Term, time.Now(), runResult.TotalScraped); err != nil {
				log.Printf("[scheduler] Could not update term %q after scrape: %v", term.Term, err)
			}
			result.TermsScraped++
			result.TotalSaved += runResult.SavedCount
		}

		if uc.interTermDelay > 0 && i < len(terms)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(uc.interTermDelay):
			}
		}
	}

	log.Printf("[scheduler] Scrape cycle complete — scraped=%d failed=%d saved=%d",
		result.TermsScraped, result.TermsFailed, result.TotalSaved)
	return result, nil
}

// Run is the long-running loop: re-check due-ness on a coarse interval,
// back off (without exiting) after unexpected errors, stop only when ctx is
// cancelled.
func (uc *SchedulerUsecase) Run(ctx context.Context) error {
	log.Printf("[scheduler] Started — interval=%v check=%v", uc.scrapeInterval, uc.checkInterval)
	for {
		wait := uc.checkInterval

		due, err := uc.IsDue()
		if err != nil {
			log.Printf("[scheduler] Due check failed: %v — retrying in %v", err, uc.errorBackoff)
			wait = uc.errorBackoff
		} else if due {
			if _, err := uc.RunWeeklyScrape(ctx); err != nil {
				if ctx.Err() != nil {
					log.Println("[scheduler] Stopping")
					return nil
				}
				log.Printf("[scheduler] Scrape cycle error: %v — retrying in %v", err, uc.errorBackoff)
				wait = uc.errorBackoff
			}
		}

		select {
		case <-ctx.Done():
			log.Println("[scheduler] Stopping")
			return nil
		case <-time.After(wait):
		}
	}
}
