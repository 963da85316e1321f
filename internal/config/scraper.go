package config

import (
	"os"
	"sync"
)

// ScraperConfig points at the hosted scraping provider. URL is the run
// endpoint that returns scraped postings synchronously as a JSON dataset.
type ScraperConfig struct {
	URL      string
	APIToken string
	Platform string
}

var (
	scraperConfig *ScraperConfig
	scraperOnce   sync.Once
)

func LoadScraperConfig() *ScraperConfig {
	scraperOnce.Do(func() {
		platform := os.Getenv("SCRAPER_PLATFORM")
		if platform == "" {
			platform = "linkedin"
		}
		scraperConfig = &ScraperConfig{
			URL:      os.Getenv("SCRAPER_API_URL"),
			APIToken: os.Getenv("SCRAPER_API_TOKEN"),
			Platform: platform,
		}
	})
	return scraperConfig
}
