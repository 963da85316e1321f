package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// PipelineConfig holds the tunables of the ingestion/analysis pipeline.
// Defaults match production behavior; env vars exist mostly for local runs.
type PipelineConfig struct {
	IngestBatchSize   int           // rows per insert batch
	AnalyzerBatchSize int           // postings fetched per analyzer pass
	MaxItemsPerTerm   int           // cap per scheduled scrape of one term
	AnalyzerCallDelay time.Duration // pause between LLM calls
	AnalyzerIdleDelay time.Duration // pause when no unprocessed postings remain
	InterTermDelay    time.Duration // pause between terms in a scrape cycle
	ScrapeInterval    time.Duration // how stale the oldest term may get
	CheckInterval     time.Duration // how often the scheduler re-checks due-ness
	ErrorBackoff      time.Duration // scheduler wait after an unexpected error
}

var (
	pipelineConfig *PipelineConfig
	pipelineOnce   sync.Once
)

func LoadPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		pipelineConfig = &PipelineConfig{
			IngestBatchSize:   envInt("INGEST_BATCH_SIZE", 50),
			AnalyzerBatchSize: envInt("ANALYZER_BATCH_SIZE", 50),
			MaxItemsPerTerm:   envInt("MAX_ITEMS_PER_TERM", 100),
			AnalyzerCallDelay: envDuration("ANALYZER_CALL_DELAY", 500*time.Millisecond),
			AnalyzerIdleDelay: envDuration("ANALYZER_IDLE_DELAY", 30*time.Second),
			InterTermDelay:    envDuration("INTER_TERM_DELAY", 10*time.Second),
			ScrapeInterval:    envDuration("SCRAPE_INTERVAL", 7*24*time.Hour),
			CheckInterval:     envDuration("SCHEDULER_CHECK_INTERVAL", time.Hour),
			ErrorBackoff:      envDuration("SCHEDULER_ERROR_BACKOFF", 10*time.Minute),
		}
	})
	return pipelineConfig
}

func envInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		log.Printf("Warning: %s=%q is not a positive integer, using %d", key, s, fallback)
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := time.ParseDuration(s)
	if err != nil || v < 0 {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, s, fallback)
		return fallback
	}
	return v
}
