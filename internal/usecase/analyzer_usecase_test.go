package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aldirahman/toolradar/internal/model"
	"github.com/aldirahman/toolradar/internal/service"
	"github.com/aldirahman/toolradar/internal/skiplist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPosting(t *testing.T, repo *fakePostingRepo, id, company, title, description string) {
	t.Helper()
	_, err := repo.SaveBatch([]model.Posting{{
		ID:          id,
		Platform:    "linkedin",
		Company:     company,
		Title:       title,
		Description: description,
		URL:         "https://jobs.example.com/" + id,
		SearchTerm:  "sdr",
		ScrapedAt:   time.Now(),
	}})
	require.NoError(t, err)
}

func newAnalyzer(postings *fakePostingRepo, detections *fakeDetectionRepo, gemini *fakeGemini, skip skiplist.Checker) *AnalyzerUsecase {
	return NewAnalyzerUsecase(postings, detections, gemini, skip, AnalyzerOptions{BatchSize: 50})
}

func TestNextAction(t *testing.T) {
	tests := []struct {
		name       string
		processed  bool
		onSkipList bool
		want       analyzeAction
	}{
		{"already processed", true, false, actionNone},
		{"processed wins over skip list", true, true, actionNone},
		{"company on skip list", false, true, actionSkip},
		{"fresh posting", false, false, actionAnalyze},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextAction(model.Posting{Processed: tt.processed}, tt.onSkipList)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzerRecordsDetection(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_1", "Acme Inc", "SDR", "Daily prospecting in Outreach.io")

	detections := newFakeDetectionRepo()
	gemini := newFakeGemini()
	gemini.judgments["Acme Inc"] = &service.ToolJudgment{
		UsesTool:     true,
		ToolDetected: model.ToolOutreach,
		SignalType:   "requirement",
		Context:      "Daily prospecting in Outreach.io",
		Confidence:   model.ConfidenceHigh,
	}

	uc := newAnalyzer(postings, detections, gemini, skiplist.NewMemorySet())
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Detected)
	assert.Equal(t, 0, result.Errors)

	d := detections.get("Acme Inc", model.ToolOutreach)
	require.NotNil(t, d)
	assert.Equal(t, model.ConfidenceHigh, d.Confidence)
	assert.Equal(t, "SDR", d.JobTitle)
	assert.False(t, d.IdentifiedAt.IsZero())

	p := postings.get("linkedin_1")
	assert.True(t, p.Processed)
	require.NotNil(t, p.AnalyzedAt)
}

func TestAnalyzerGenericMentionYieldsNoDetection(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_2", "Globex", "AE", "Comfortable with cold outreach and email campaigns")

	detections := newFakeDetectionRepo()
	gemini := newFakeGemini()
	gemini.judgments["Globex"] = &service.ToolJudgment{UsesTool: false, ToolDetected: model.ToolNone}

	uc := newAnalyzer(postings, detections, gemini, skiplist.NewMemorySet())
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Detected)

	n, err := detections.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, postings.get("linkedin_2").Processed, "a clean verdict still consumes the posting")
}

func TestAnalyzerMalformedResponseIsTerminal(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_3", "Initech", "BDR", "whatever")

	gemini := newFakeGemini()
	gemini.errs["Initech"] = fmt.Errorf("parse judgment: %w", service.ErrMalformedResponse)

	uc := newAnalyzer(postings, newFakeDetectionRepo(), gemini, skiplist.NewMemorySet())
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Processed, "unparseable judgments must not wedge the queue")
	assert.True(t, postings.get("linkedin_3").Processed)
}

func TestAnalyzerTransportFailureLeavesPostingQueued(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_4", "Umbrella", "SDR", "whatever")

	gemini := newFakeGemini()
	gemini.errs["Umbrella"] = assertErr("llm unavailable")

	uc := newAnalyzer(postings, newFakeDetectionRepo(), gemini, skiplist.NewMemorySet())
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.Processed)
	assert.False(t, postings.get("linkedin_4").Processed, "the next pass must retry it")
}

func TestAnalyzerUpsertFailureLeavesPostingQueued(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_5", "Acme Inc", "SDR", "Outreach.io power user")

	detections := newFakeDetectionRepo()
	detections.upsertErr = assertErr("db down")
	gemini := newFakeGemini()
	gemini.judgments["Acme Inc"] = &service.ToolJudgment{
		UsesTool: true, ToolDetected: model.ToolOutreach, Confidence: model.ConfidenceHigh,
	}

	uc := newAnalyzer(postings, detections, gemini, skiplist.NewMemorySet())
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.False(t, postings.get("linkedin_5").Processed)
}

func TestAnalyzerSkipsListedCompanies(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "linkedin_6", "Acme, Inc.", "SDR", "more Outreach.io evidence")

	skip := skiplist.NewMemorySet()
	// Skip list keys are normalized, so any spelling of the company matches.
	require.NoError(t, skip.Refresh(context.Background(), []string{"acme"}))

	gemini := newFakeGemini()
	uc := newAnalyzer(postings, newFakeDetectionRepo(), gemini, skip)
	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, gemini.calls, "skipped postings never reach the model")
	assert.True(t, postings.get("linkedin_6").Processed)
}

func TestAnalyzerProcessesOldestFirstExactlyOnce(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "a", "First Co", "SDR", "x")
	seedPosting(t, postings, "b", "Second Co", "SDR", "x")
	seedPosting(t, postings, "c", "Third Co", "SDR", "x")

	gemini := newFakeGemini()
	uc := newAnalyzer(postings, newFakeDetectionRepo(), gemini, skiplist.NewMemorySet())

	result, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, []string{"First Co", "Second Co", "Third Co"}, gemini.calls)

	// Processed is monotone: a second pass finds nothing.
	again, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, again.Fetched)
	assert.Len(t, gemini.calls, 3)
}

func TestAnalyzerKeepsSingleRowPerCompanyTool(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "p1", "Acme Inc", "SDR", "Outreach.io in the stack")

	detections := newFakeDetectionRepo()
	gemini := newFakeGemini()
	gemini.judgments["Acme Inc"] = &service.ToolJudgment{
		UsesTool: true, ToolDetected: model.ToolOutreach,
		Confidence: model.ConfidenceHigh, Context: "first sighting",
	}

	uc := newAnalyzer(postings, detections, gemini, skiplist.NewMemorySet())
	_, err := uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	first := detections.get("Acme Inc", model.ToolOutreach)
	require.NotNil(t, first)
	firstSeen := first.IdentifiedAt

	// A later, weaker signal for the same pair must not downgrade the row.
	seedPosting(t, postings, "p2", "Acme Inc", "AE", "maybe Outreach")
	gemini.judgments["Acme Inc"] = &service.ToolJudgment{
		UsesTool: true, ToolDetected: model.ToolOutreach,
		Confidence: model.ConfidenceLow, Context: "second sighting",
	}
	_, err = uc.RunOnce(context.Background(), 0)
	require.NoError(t, err)

	n, err := detections.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	d := detections.get("Acme Inc", model.ToolOutreach)
	assert.Equal(t, model.ConfidenceHigh, d.Confidence)
	assert.Equal(t, "first sighting", d.Context)
	assert.Equal(t, firstSeen, d.IdentifiedAt)
}

func TestAnalyzerStopsOnCancelledContext(t *testing.T) {
	postings := newFakePostingRepo()
	seedPosting(t, postings, "p1", "Acme Inc", "SDR", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := newAnalyzer(postings, newFakeDetectionRepo(), newFakeGemini(), skiplist.NewMemorySet())
	result, err := uc.RunOnce(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Processed)
	assert.False(t, postings.get("p1").Processed)
}

func TestAnalyzerRefreshesSkipListFromConfidentDetections(t *testing.T) {
	detections := newFakeDetectionRepo()
	require.NoError(t, detections.Upsert(&model.Detection{
		Company: "Acme, Inc.", Tool: model.ToolOutreach,
		Confidence: model.ConfidenceHigh, IdentifiedAt: time.Now(),
	}))
	require.NoError(t, detections.Upsert(&model.Detection{
		Company: "Globex", Tool: model.ToolSalesLoft,
		Confidence: model.ConfidenceLow, IdentifiedAt: time.Now(),
	}))

	skip := skiplist.NewMemorySet()
	uc := newAnalyzer(newFakePostingRepo(), detections, newFakeGemini(), skip)
	uc.refreshSkipList(context.Background())

	assert.True(t, skip.Contains(context.Background(), "acme"))
	assert.False(t, skip.Contains(context.Background(), "globex"), "low confidence never lands on the skip list")
}
