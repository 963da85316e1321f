package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aldirahman/toolradar/internal/model"
	"github.com/aldirahman/toolradar/internal/service"
	"github.com/google/uuid"
)

// fakeScraper returns a scripted dataset.
type fakeScraper struct {
	jobs      []service.ScrapedJob
	err       error
	lastTerm  string
	lastLimit int
}

func (f *fakeScraper) FetchPostings(_ context.Context, searchTerm string, maxItems int) ([]service.ScrapedJob, error) {
	f.lastTerm = searchTerm
	f.lastLimit = maxItems
	if f.err != nil {
		return nil, f.err
	}
	jobs := f.jobs
	if len(jobs) > maxItems {
		jobs = jobs[:maxItems]
	}
	return jobs, nil
}

// fakePostingRepo is an in-memory postings table with the same
// insert-or-ignore semantics as the real repository.
type fakePostingRepo struct {
	mu          sync.Mutex
	rows        map[string]*model.Posting
	order       []string
	failBatches int // fail the first N SaveBatch calls
	markErr     error
}

func newFakePostingRepo() *fakePostingRepo {
	return &fakePostingRepo{rows: make(map[string]*model.Posting)}
}

func (f *fakePostingRepo) SaveBatch(postings []model.Posting) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatches > 0 {
		f.failBatches--
		return 0, assertErr("batch insert failed")
	}
	saved := 0
	for _, p := range postings {
		if _, exists := f.rows[p.ID]; exists {
			continue
		}
		cp := p
		f.rows[p.ID] = &cp
		f.order = append(f.order, p.ID)
		saved++
	}
	return saved, nil
}

func (f *fakePostingRepo) FindUnprocessed(limit int) ([]model.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Posting
	for _, id := range f.order {
		if len(out) >= limit {
			break
		}
		if p := f.rows[id]; !p.Processed {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePostingRepo) MarkProcessed(id string, analyzedAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok {
		p.Processed = true
		p.AnalyzedAt = &analyzedAt
	}
	return nil
}

func (f *fakePostingRepo) ResetProcessed(ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := f.rows[id]; ok && p.Processed {
			p.Processed = false
			p.AnalyzedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakePostingRepo) Counts() (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var unprocessed int64
	for _, p := range f.rows {
		if !p.Processed {
			unprocessed++
		}
	}
	return int64(len(f.rows)), unprocessed, nil
}

func (f *fakePostingRepo) get(id string) *model.Posting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

// fakeDetectionRepo mirrors the confidence-ranked upsert of the real
// repository: an existing (company, tool) row is only overwritten by equal or
// higher confidence, and identified_at never changes.
type fakeDetectionRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.Detection
	upsertErr error
}

func newFakeDetectionRepo() *fakeDetectionRepo {
	return &fakeDetectionRepo{rows: make(map[string]*model.Detection)}
}

func detectionKey(company, tool string) string {
	return company + "|" + tool
}

func (f *fakeDetectionRepo) Upsert(d *model.Detection) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := detectionKey(d.Company, d.Tool)
	if existing, ok := f.rows[key]; ok {
		if model.ConfidenceRank(d.Confidence) >= model.ConfidenceRank(existing.Confidence) {
			existing.SignalType = d.SignalType
			existing.Context = d.Context
			existing.Confidence = d.Confidence
			existing.JobTitle = d.JobTitle
			existing.JobURL = d.JobURL
		}
		return nil
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	f.rows[key] = &cp
	return nil
}

func (f *fakeDetectionRepo) FindAll() ([]model.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Detection, 0, len(f.rows))
	for _, d := range f.rows {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IdentifiedAt.Equal(out[j].IdentifiedAt) {
			return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
		}
		return out[i].IdentifiedAt.Before(out[j].IdentifiedAt)
	})
	return out, nil
}

func (f *fakeDetectionRepo) FindPage(page, pageSize int) ([]model.Detection, int64, error) {
	all, _ := f.FindAll()
	return all, int64(len(all)), nil
}

func (f *fakeDetectionRepo) DeleteByIDs(ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		for key, d := range f.rows {
			if d.ID == id {
				delete(f.rows, key)
				deleted++
			}
		}
	}
	return deleted, nil
}

func (f *fakeDetectionRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeDetectionRepo) CompaniesWithConfidentDetection() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, d := range f.rows {
		if strings.ToLower(d.Confidence) == model.ConfidenceHigh && d.Tool != model.ToolNone {
			if _, ok := seen[d.Company]; !ok {
				seen[d.Company] = struct{}{}
				out = append(out, d.Company)
			}
		}
	}
	return out, nil
}

func (f *fakeDetectionRepo) get(company, tool string) *model.Detection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[detectionKey(company, tool)]
}

// fakeGemini returns scripted judgments keyed by company and records the
// order of calls.
type fakeGemini struct {
	mu        sync.Mutex
	judgments map[string]*service.ToolJudgment
	errs      map[string]error
	calls     []string
}

func newFakeGemini() *fakeGemini {
	return &fakeGemini{
		judgments: make(map[string]*service.ToolJudgment),
		errs:      make(map[string]error),
	}
}

func (f *fakeGemini) DetectTool(_ context.Context, input service.ToolDetectionInput) (*service.ToolJudgment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input.Company)
	f.mu.Unlock()
	if err, ok := f.errs[input.Company]; ok {
		return nil, err
	}
	if j, ok := f.judgments[input.Company]; ok {
		cp := *j
		return &cp, nil
	}
	return &service.ToolJudgment{UsesTool: false, ToolDetected: model.ToolNone}, nil
}

// fakeTermRepo is an in-memory search_terms table that records touch order.
type fakeTermRepo struct {
	mu      sync.Mutex
	terms   []model.SearchTerm
	touched []string
	events  *[]string // optional shared event log for ordering assertions
}

func (f *fakeTermRepo) FindAll() ([]model.SearchTerm, error) {
	return f.terms, nil
}

func (f *fakeTermRepo) FindActive() ([]model.SearchTerm, error) {
	var out []model.SearchTerm
	for _, t := range f.terms {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTermRepo) TouchAfterScrape(term string, scrapedAt time.Time, jobsFound int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, term)
	if f.events != nil {
		*f.events = append(*f.events, "touch:"+term)
	}
	for i := range f.terms {
		if f.terms[i].Term == term {
			t := scrapedAt
			f.terms[i].LastScrapedAt = &t
			f.terms[i].JobsFoundCount = jobsFound
		}
	}
	return nil
}

func (f *fakeTermRepo) SeedIfEmpty([]string) error { return nil }

// fakeIngester stands in for the ingest usecase when testing the scheduler.
type fakeIngester struct {
	mu      sync.Mutex
	results map[string]*IngestResult
	errs    map[string]error
	calls   []string
	events  *[]string
}

func (f *fakeIngester) Ingest(_ context.Context, searchTerm string, maxItems int) (*IngestResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchTerm)
	if f.events != nil {
		*f.events = append(*f.events, "ingest:"+searchTerm)
	}
	f.mu.Unlock()
	if err, ok := f.errs[searchTerm]; ok {
		return nil, err
	}
	if r, ok := f.results[searchTerm]; ok {
		return r, nil
	}
	return &IngestResult{SearchTerm: searchTerm}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func daysAgo(n int) *time.Time {
	t := time.Now().Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}
