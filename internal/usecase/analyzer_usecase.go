package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aldirahman/toolradar/internal/dedup"
	"github.com/aldirahman/toolradar/internal/model"
	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/aldirahman/toolradar/internal/service"
	"github.com/aldirahman/toolradar/internal/skiplist"
)

// analyzeAction is the decision for one posting. The transition table is:
//
//	processed                → actionNone   (terminal, never re-analyzed)
//	company on skip list     → actionSkip   (marked processed, no LLM call)
//	otherwise                → actionAnalyze
type analyzeAction int

const (
	actionNone analyzeAction = iota
	actionSkip
	actionAnalyze
)

// nextAction is the pure transition function for the per-posting state
// machine; the loop below only executes what it decides.
func nextAction(p model.Posting, onSkipList bool) analyzeAction {
	if p.Processed {
		return actionNone
	}
	if onSkipList {
		return actionSkip
	}
	return actionAnalyze
}

// AnalyzeResult reports one analyzer pass. Returned per run instead of
// accumulated in shared state, so callers aggregate as they see fit.
type AnalyzeResult struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Detected  int `json:"detected"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// AnalyzerUsecase drains unprocessed postings through the language model,
// strictly sequentially, and merges detections into the company registry.
type AnalyzerUsecase struct {
	postings   repository.PostingRepositoryInterface
	detections repository.DetectionRepositoryInterface
	gemini     service.GeminiServiceInterface
	skip       skiplist.Checker

	batchSize int
	callDelay time.Duration
	idleDelay time.Duration
}

type AnalyzerOptions struct {
	BatchSize int
	CallDelay time.Duration
	IdleDelay time.Duration
}

func NewAnalyzerUsecase(
	postings repository.PostingRepositoryInterface,
	detections repository.DetectionRepositoryInterface,
	gemini service.GeminiServiceInterface,
	skip skiplist.Checker,
	opts AnalyzerOptions,
) *AnalyzerUsecase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = 30 * time.Second
	}
	return &AnalyzerUsecase{
		postings:   postings,
		detections: detections,
		gemini:     gemini,
		skip:       skip,
		batchSize:  opts.BatchSize,
		callDelay:  opts.CallDelay,
		idleDelay:  opts.IdleDelay,
	}
}

// RunOnce analyzes a single FIFO batch of unprocessed postings. It returns
// early with the partial result when ctx is cancelled; the posting being
// worked on finishes first, so no posting is ever left half-done.
func (uc *AnalyzerUsecase) RunOnce(ctx context.Context, batchSize int) (*AnalyzeResult, error) {
	if batchSize <= 0 {
		batchSize = uc.batchSize
	}
	result := &AnalyzeResult{}

	batch, err := uc.postings.FindUnprocessed(batchSize)
	if err != nil {
		return result, err
	}
	result.Fetched = len(batch)
	if len(batch) == 0 {
		return result, nil
	}

	for i, posting := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		uc.analyzeOne(ctx, posting, result)

		// Fixed pause between LLM calls to respect provider rate limits.
		if uc.callDelay > 0 && i < len(batch)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(uc.callDelay):
			}
		}
	}

	log.Printf("[analyzer] Pass done — fetched=%d processed=%d detected=%d skipped=%d errors=%d",
		result.Fetched, result.Processed, result.Detected, result.Skipped, result.Errors)
	return result, nil
}

func (uc *AnalyzerUsecase) analyzeOne(ctx context.Context, posting model.Posting, result *AnalyzeResult) {
	onSkipList := uc.skip != nil && uc.skip.Contains(ctx, dedup.Normalize(posting.Company))

	switch nextAction(posting, onSkipList) {
	case actionNone:
		return

	case actionSkip:
		result.Skipped++
		uc.markProcessed(posting.ID, result)
		return

	case actionAnalyze:
		judgment, err := uc.gemini.DetectTool(ctx, service.ToolDetectionInput{
			Company:     posting.Company,
			Title:       posting.Title,
			Description: posting.Description,
		})
		if err != nil {
			result.Errors++
			if errors.Is(err, service.ErrMalformedResponse) {
				// A judgment we cannot parse is terminal for this posting:
				// mark it processed rather than loop on it forever. Operators
				// re-queue via the maintenance endpoint when needed.
				log.Printf("[analyzer] Malformed judgment for posting %s: %v", posting.ID, err)
				uc.markProcessed(posting.ID, result)
				return
			}
			// Collaborator unavailable: leave the posting unprocessed so the
			// next scheduled pass retries it.
			log.Printf("[analyzer] Detection call failed for posting %s: %v", posting.ID, err)
			return
		}

		if judgment.UsesTool && judgment.ToolDetected != model.ToolNone {
			detection := &model.Detection{
				Company:      posting.Company,
				Tool:         judgment.ToolDetected,
				SignalType:   judgment.SignalType,
				Context:      judgment.Context,
				Confidence:   judgment.Confidence,
				JobTitle:     posting.Title,
				JobURL:       posting.URL,
				IdentifiedAt: time.Now(),
			}
			if err := uc.detections.Upsert(detection); err != nil {
				// Processed is only ever set after the upsert completes, so a
				// failure here leaves the posting eligible for reprocessing.
				log.Printf("[analyzer] Detection upsert failed for posting %s: %v", posting.ID, err)
				result.Errors++
				return
			}
			result.Detected++
		}

		uc.markProcessed(posting.ID, result)
	}
}

func (uc *AnalyzerUsecase) markProcessed(id string, result *AnalyzeResult) {
	if err := uc.postings.MarkProcessed(id, time.Now()); err != nil {
		log.Printf("[analyzer] Mark processed failed for posting %s: %v", id, err)
		result.Errors++
		return
	}
	result.Processed++
}

// RunForever loops RunOnce until ctx is cancelled, sleeping when the queue is
// empty and refreshing the never-analyze list between passes.
func (uc *AnalyzerUsecase) RunForever(ctx context.Context) error {
	log.Printf("[analyzer] Worker started — batch=%d callDelay=%v", uc.batchSize, uc.callDelay)
	for {
		if err := ctx.Err(); err != nil {
			log.Printf("[analyzer] Worker stopping: %v", err)
			return nil
		}

		uc.refreshSkipList(ctx)

		result, err := uc.RunOnce(ctx, uc.batchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Printf("[analyzer] Worker stopping: %v", err)
				return nil
			}
			log.Printf("[analyzer] Pass error: %v — backing off", err)
		}

		if err != nil || result.Fetched == 0 {
			select {
			case <-ctx.Done():
				log.Println("[analyzer] Worker stopping")
				return nil
			case <-time.After(uc.idleDelay):
			}
		}
	}
}

// refreshSkipList rebuilds the never-analyze set from companies that already
// have a high-confidence detection. Failures only disable the optimization.
func (uc *AnalyzerUsecase) refreshSkipList(ctx context.Context) {
	if uc.skip == nil {
		return
	}
	companies, err := uc.detections.CompaniesWithConfidentDetection()
	if err != nil {
		log.Printf("[analyzer] Skip list query failed: %v", err)
		return
	}
	keys := make([]string, 0, len(companies))
	for _, c := range companies {
		if k := dedup.Normalize(c); k != "" {
			keys = append(keys, k)
		}
	}
	if err := uc.skip.Refresh(ctx, keys); err != nil {
		log.Printf("[analyzer] Skip list refresh failed: %v", err)
	}
}
