package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/account-api/internal/domain/repository"
)

const (
	verdictSafe   = "SAFE"
	verdictUnsafe = "UNSAFE"

	geminiEndpointFmt = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
)

// ModerationService decides whether user supplied content is acceptable.
type ModerationService interface {
	// CheckText returns ErrUnsafeContent when the content is rejected.
	// Transport failures are not treated as rejections.
	CheckText(ctx context.Context, content string) error
	// CheckImageURL fetches the hosted image and classifies it the same way.
	CheckImageURL(ctx context.Context, imageURL string) error
}

// NoopModerationService accepts everything. Used when moderation is disabled.
type NoopModerationService struct{}

func (s *NoopModerationService) CheckText(ctx context.Context, content string) error {
	return nil
}

func (s *NoopModerationService) CheckImageURL(ctx context.Context, imageURL string) error {
	return nil
}

// GeminiModerationService classifies content via the Gemini generateContent
// API. Verdicts are cached so repeated submissions of the same content do
// not burn quota.
type GeminiModerationService struct {
	apiKey     string
	model      string
	cacheRepo  repository.CacheRepository
	cacheTTL   time.Duration
	httpClient *http.Client
}

func NewGeminiModerationService(apiKey, model string, cacheRepo repository.CacheRepository, cacheTTL time.Duration) (*GeminiModerationService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("moderation api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &GeminiModerationService{
		apiKey:     apiKey,
		model:      model,
		cacheRepo:  cacheRepo,
		cacheTTL:   cacheTTL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *GeminiModerationService) CheckText(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	cacheKey := moderationCacheKey(content)
	if s.cacheRepo != nil {
		if verdict, err := s.cacheRepo.Get(cacheKey); err == nil {
			return verdictToError(verdict)
		}
	}

	verdict, err := s.classify(ctx, content)
	if err != nil {
		// The moderation backend being unreachable must not block signups.
		log.Printf("[ModerationService] classify failed, allowing content: %v", err)
		return nil
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.Set(cacheKey, verdict, s.cacheTTL); err != nil {
			log.Printf("[ModerationService] failed to cache verdict: %v", err)
		}
	}

	return verdictToError(verdict)
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiModerationService) CheckImageURL(ctx context.Context, imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil
	}

	cacheKey := moderationCacheKey(imageURL)
	if s.cacheRepo != nil {
		if verdict, err := s.cacheRepo.Get(cacheKey); err == nil {
			return verdictToError(verdict)
		}
	}

	mimeType, data, err := s.fetchImage(ctx, imageURL)
	if err != nil {
		log.Printf("[ModerationService] image fetch failed, allowing content: %v", err)
		return nil
	}

	parts := []geminiPart{
		{Text: "You are a content moderator for a user account service. " +
			"Classify the attached profile image. " +
			"Reply with exactly one word: SAFE if the image is acceptable, " +
			"or UNSAFE if it contains nudity, sexual content, gore, or hateful imagery."},
		{InlineData: &geminiInlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}

	verdict, err := s.generate(ctx, parts)
	if err != nil {
		log.Printf("[ModerationService] image classify failed, allowing content: %v", err)
		return nil
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.Set(cacheKey, verdict, s.cacheTTL); err != nil {
			log.Printf("[ModerationService] failed to cache verdict: %v", err)
		}
	}

	return verdictToError(verdict)
}

func (s *GeminiModerationService) fetchImage(ctx context.Context, imageURL string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create image fetch request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("image fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("image fetch status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return mimeType, data, nil
}

func (s *GeminiModerationService) classify(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a content moderator for a user account service. "+
			"Classify the following user submitted content. "+
			"Reply with exactly one word: SAFE if the content is acceptable, "+
			"or UNSAFE if it contains hate speech, sexual content, harassment, "+
			"or other abusive material.\n\nContent:\n%s",
		content,
	)
	return s.generate(ctx, []geminiPart{{Text: prompt}})
}

func (s *GeminiModerationService) generate(ctx context.Context, parts []geminiPart) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal moderation request: %w", err)
	}

	endpoint := fmt.Sprintf(geminiEndpointFmt, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("moderation status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var payload geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse moderation response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty moderation response")
	}

	answer := strings.ToUpper(strings.TrimSpace(payload.Candidates[0].Content.Parts[0].Text))
	if strings.Contains(answer, verdictUnsafe) {
		return verdictUnsafe, nil
	}
	if strings.Contains(answer, verdictSafe) {
		return verdictSafe, nil
	}
	return "", fmt.Errorf("unrecognized moderation verdict: %q", answer)
}

func verdictToError(verdict string) error {
	if verdict == verdictUnsafe {
		return fmt.Errorf("%w: content rejected by moderation", ErrUnsafeContent)
	}
	return nil
}

func moderationCacheKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "moderation:verdict:" + hex.EncodeToString(sum[:])
}
