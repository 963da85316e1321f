package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aldirahman/toolradar/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ScrapedJob is one raw posting as returned by the scraping provider.
// ID may be empty — some sources do not expose a native identifier.
type ScrapedJob struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
	JobURL      string `json:"jobUrl"`
}

type ScraperServiceInterface interface {
	FetchPostings(ctx context.Context, searchTerm string, maxItems int) ([]ScrapedJob, error)
}

// ScraperService calls the hosted scraping provider's synchronous run
// endpoint and decodes the returned dataset.
type ScraperService struct {
	client *resty.Client
	url    string
	token  string
}

func NewScraperService() (*ScraperService, error) {
	scraperConfig := config.LoadScraperConfig()
	if scraperConfig.URL == "" {
		return nil, fmt.Errorf("SCRAPER_API_URL not set")
	}
	return &ScraperService{
		client: resty.New().SetTimeout(3 * time.Minute),
		url:    scraperConfig.URL,
		token:  scraperConfig.APIToken,
	}, nil
}

// FetchPostings requests up to maxItems postings for searchTerm. The provider
// may return the dataset as a bare array or wrapped in an envelope; both are
// accepted.
func (s *ScraperService) FetchPostings(ctx context.Context, searchTerm string, maxItems int) ([]ScrapedJob, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"title":    searchTerm,
			"maxItems": maxItems,
		}).
		Post(s.url)
	if err != nil {
		return nil, fmt.Errorf("scraper request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scraper returned status %d", resp.StatusCode())
	}

	jobs, err := decodeDataset(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(jobs) > maxItems {
		jobs = jobs[:maxItems]
	}
	return jobs, nil
}

// decodeDataset locates the item array in the provider response. Depending on
// the actor version the items arrive at the top level, under "items", or
// under "data.items".
func decodeDataset(body []byte) ([]ScrapedJob, error) {
	root := gjson.ParseBytes(body)
	items := root
	if !root.IsArray() {
		found := false
		for _, path := range []string{"items", "data.items"} {
			if v := root.Get(path); v.IsArray() {
				items = v
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("scraper response has no item array")
		}
	}

	var jobs []ScrapedJob
	if err := json.Unmarshal([]byte(items.Raw), &jobs); err != nil {
		return nil, fmt.Errorf("decode scraper items: %w", err)
	}
	return jobs, nil
}
