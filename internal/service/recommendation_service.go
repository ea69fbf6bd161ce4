package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emworks/ux-agent/internal/config"
	"github.com/emworks/ux-agent/internal/model"
)

// DefaultRole is used when no role was classified for the round.
const DefaultRole = "Assistant"

// Recommender produces the advisory text shown before the re-vote.
type Recommender interface {
	Generate(ctx context.Context, rc model.RecommendationContext, role string) (string, error)
}

// RecommendationService generates advice via the Gemini API, or from a fixed
// template when no API key is configured.
type RecommendationService struct {
	config     *config.AIConfig
	client     *http.Client
	maxRetries int
	backoff    time.Duration // doubled on every rate-limited attempt
}

func NewRecommendationService(cfg *config.AIConfig) *RecommendationService {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &RecommendationService{
		config:     cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: retries,
		backoff:    time.Second,
	}
}

func (s *RecommendationService) Generate(ctx context.Context, rc model.RecommendationContext, role string) (string, error) {
	if role == "" {
		role = DefaultRole
	}
	if !s.config.IsEnabled() {
		return templateRecommendation(rc, role), nil
	}

	text, err := s.callGemini(ctx, s.config.Model, buildRecommendationPrompt(rc, role))
	if err != nil {
		return "", fmt.Errorf("%w: recommendation: %v", ErrBridge, err)
	}
	return strings.TrimSpace(text), nil
}

// callGemini makes a request to the Gemini API. Rate-limited attempts are
// retried with exponential backoff until ctx expires.
func (s *RecommendationService) callGemini(ctx context.Context, modelName, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature": 0.7,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff << (attempt - 1)
			log.Printf("[Gemini] Rate limited, retry %d/%d in %v", attempt, s.maxRetries-1, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
		}

		body, status, err := s.post(ctx, s.config.ModelEndpoint(modelName), jsonBody)
		if err != nil {
			return "", err
		}
		if status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("gemini returned status %d", status)
			continue
		}
		if status < 200 || status > 299 {
			return "", fmt.Errorf("gemini returned status %d", status)
		}
		return parseGeminiText(body)
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *RecommendationService) post(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func parseGeminiText(body []byte) (string, error) {
	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		if text := geminiResp.Candidates[0].Content.Parts[0].Text; strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("empty response from Gemini")
}

func buildRecommendationPrompt(rc model.RecommendationContext, role string) string {
	ids := make([]string, 0, len(rc.Votes))
	for id := range rc.Votes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	votes := make([]string, 0, len(ids))
	for _, id := range ids {
		votes = append(votes, fmt.Sprintf("%d", rc.Votes[id]))
	}

	return fmt.Sprintf(`You are the %s in a Planning Poker session. The participants estimated the task %q.
Their story point votes: [%s]
Average cognitive load (1-7): %s
Team performance (1-7): %s
Reliance on past recommendations (0-1): %.2f

Give the participants short advice for the re-vote in 1-2 sentences. Reply with the advice only.`,
		role, rc.Task, strings.Join(votes, ", "), formatOptional(rc.AverageCognitiveLoad), formatOptional(rc.TeamPerformance), rc.Reliance)
}

func templateRecommendation(rc model.RecommendationContext, role string) string {
	avgVote := "-"
	if len(rc.Votes) > 0 {
		sum := 0
		for _, v := range rc.Votes {
			sum += v
		}
		avgVote = fmt.Sprintf("%.1f", float64(sum)/float64(len(rc.Votes)))
	}
	return fmt.Sprintf("AI role: %s\nAverage estimate: %s\nAverage load: %s.\nDiscuss the details and refine your estimates.",
		role, avgVote, formatOptional(rc.AverageCognitiveLoad))
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
