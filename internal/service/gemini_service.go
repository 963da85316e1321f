package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"github.com/aldirahman/toolradar/internal/config"
	"github.com/aldirahman/toolradar/internal/model"
	"google.golang.org/genai"
)

// ErrMalformedResponse marks a reply that failed the strict JSON contract.
// The analyzer treats it as a per-posting error: the posting is still marked
// processed, no detection is written.
var ErrMalformedResponse = errors.New("malformed detection response")

// descriptionPrefixLimit bounds how much of a posting's description is sent
// to the model.
const descriptionPrefixLimit = 1500

// ToolDetectionInput is what the analyzer knows about one posting.
type ToolDetectionInput struct {
	Company     string
	Title       string
	Description string
}

// ToolJudgment is the structured verdict the model must return. Anything
// beyond this single JSON object is a contract violation.
type ToolJudgment struct {
	UsesTool     bool   `json:"uses_tool"`
	ToolDetected string `json:"tool_detected"`
	SignalType   string `json:"signal_type"`
	Context      string `json:"context"`
	Confidence   string `json:"confidence"`
}

type GeminiServiceInterface interface {
	DetectTool(ctx context.Context, input ToolDetectionInput) (*ToolJudgment, error)
}

type GeminiService struct {
	Client            *genai.Client
	Model             string
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestTimeout    time.Duration
	consecutiveErrors int
	circuitBreakerMax int
}

func NewGeminiService(ctx context.Context) (*GeminiService, error) {
	geminiConfig := config.LoadGeminiConfig()
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiService{
		Client:            client,
		Model:             geminiConfig.Model,
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          90 * time.Second,
		RequestTimeout:    90 * time.Second,
		circuitBreakerMax: 5,
	}, nil
}

// DetectTool asks the model whether the posting shows the hiring company
// using Outreach.io or SalesLoft, and parses the strict JSON verdict.
func (s *GeminiService) DetectTool(ctx context.Context, input ToolDetectionInput) (*ToolJudgment, error) {
	prompt := BuildDetectionPrompt(input)

	result, err := s.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return ParseJudgment(result.Text())
}

// BuildDetectionPrompt renders the fixed instruction contract. The
// disambiguation of "Outreach" the product from "outreach" the generic word
// is part of the contract — without it generic phrases would pollute the
// registry with false positives.
func BuildDetectionPrompt(input ToolDetectionInput) string {
	description := input.Description
	if len(description) > descriptionPrefixLimit {
		description = description[:descriptionPrefixLimit]
	}

	return fmt.Sprintf(`You are auditing job postings for evidence that the hiring company uses a sales engagement platform.

Tools to detect:
- "Outreach" means the Outreach.io platform. The word "outreach" is also a common English word: phrases like "cold outreach", "outreach efforts" or "community outreach" are NOT the tool. Report Outreach only when the posting names the product, e.g. "Outreach.io", "experience with Outreach required", or Outreach listed alongside other sales software.
- "SalesLoft" (also written "Salesloft").

Respond with a single JSON object and NOTHING else, exactly this schema:
{"uses_tool": <true|false>, "tool_detected": "Outreach"|"SalesLoft"|"Both"|"None", "signal_type": "<short category such as required_skill, tech_stack_mention, preferred_qualification>", "context": "<verbatim quote from the posting that supports the verdict, empty if none>", "confidence": "high"|"medium"|"low"}

Company: %s
Job title: %s
Job description (may be truncated):
%s`, input.Company, input.Title, description)
}

// ParseJudgment parses the model reply under the strict contract: exactly one
// JSON object, no unknown fields, no trailing prose, tool value from the
// closed enumeration. Every violation wraps ErrMalformedResponse.
func ParseJudgment(text string) (*ToolJudgment, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.DisallowUnknownFields()

	var judgment ToolJudgment
	if err := dec.Decode(&judgment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	// Anything after the object (prose, a second object) violates the contract.
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing content after JSON object", ErrMalformedResponse)
	}

	if !model.ValidTool(judgment.ToolDetected) {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrMalformedResponse, judgment.ToolDetected)
	}
	judgment.Confidence = strings.ToLower(judgment.Confidence)
	if judgment.UsesTool && model.ConfidenceRank(judgment.Confidence) == 0 {
		return nil, fmt.Errorf("%w: unknown confidence %q", ErrMalformedResponse, judgment.Confidence)
	}
	return &judgment, nil
}

func (s *GeminiService) generateContent(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	if s.consecutiveErrors >= s.circuitBreakerMax {
		return nil, fmt.Errorf("circuit breaker open: too many consecutive errors (%d)", s.consecutiveErrors)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			log.Printf("Retry attempt %d/%d for DetectTool after %v", attempt, s.MaxRetries, delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
			}
		}

		genConfig := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			ResponseMIMEType: "application/json",
		}

		result, err := s.Client.Models.GenerateContent(
			timeoutCtx,
			s.Model,
			genai.Text(prompt),
			genConfig,
		)

		if err == nil {
			s.consecutiveErrors = 0
			if err := s.validateGenerateResponse(result); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return result, nil
		}

		lastErr = err

		if !s.isRetryableError(err) {
			log.Printf("Non-retryable error: %v", err)
			s.consecutiveErrors++
			return nil, fmt.Errorf("generate content failed: %w", err)
		}

		log.Printf("Retryable error on attempt %d: %v", attempt+1, err)
	}

	s.consecutiveErrors++
	return nil, fmt.Errorf("max retries (%d) exceeded for DetectTool: %w", s.MaxRetries, lastErr)
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := s.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))

	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}

	jitter := time.Duration(float64(delay) * 0.25)
	delay = delay - jitter/2 + time.Duration(float64(jitter)*0.5)

	return delay
}

func (s *GeminiService) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "context canceled") ||
		strings.Contains(errMsg, "context deadline exceeded") {
		return false
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429: // Rate limit
			return true
		case 500, 502, 503, 504: // Server errors
			return true
		case 400, 401, 403, 404: // Client errors
			return false
		}
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "temporary failure") ||
		errors.Is(err, io.EOF) ||
		strings.Contains(errMsg, "EOF") {
		return true
	}

	return false
}

func (s *GeminiService) validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

// ResetCircuitBreaker clears the consecutive-error counter.
func (s *GeminiService) ResetCircuitBreaker() {
	s.consecutiveErrors = 0
	log.Println("Circuit breaker reset")
}

func (s *GeminiService) GetCircuitBreakerStatus() (consecutiveErrors int, isOpen bool) {
	return s.consecutiveErrors, s.consecutiveErrors >= s.circuitBreakerMax
}
