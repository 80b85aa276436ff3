package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/metrics"
)

// ErrOracleUnavailable is returned for every failed scoring call.
var ErrOracleUnavailable = errors.New("scoring oracle unavailable")

// ScoringClient sends a job description and resume text to the scoring oracle
// and returns its raw reply.
type ScoringClient interface {
	Score(ctx context.Context, jobDescription, resumeText string) (string, error)
}

// modelsAPI is the part of genai.Models the client uses.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiOptions struct {
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

type geminiService struct {
	models        modelsAPI
	modelName     string
	timeout       time.Duration
	maxAttempts   int
	promptBuilder *PromptBuilder
	log           *zap.Logger
}

func NewGeminiService(ctx context.Context, apiKey string, opts GeminiOptions, log *zap.Logger) (ScoringClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newGeminiService(client.Models, opts, log), nil
}

func newGeminiService(models modelsAPI, opts GeminiOptions, log *zap.Logger) *geminiService {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	// the oracle is billed per call: one retry at most
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MaxAttempts > 2 {
		opts.MaxAttempts = 2
	}

	return &geminiService{
		models:        models,
		modelName:     opts.Model,
		timeout:       opts.Timeout,
		maxAttempts:   opts.MaxAttempts,
		promptBuilder: NewPromptBuilder(),
		log:           logger.OrNop(log),
	}
}

// Score implements ScoringClient. Only transient failures are retried.
func (g *geminiService) Score(ctx context.Context, jobDescription, resumeText string) (string, error) {
	prompt := g.promptBuilder.BuildScoringPrompt(jobDescription, resumeText)
	temperature := float32(0.3)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.promptBuilder.BuildSystemInstruction()}},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		text, err := g.generate(ctx, prompt, config)
		if err == nil {
			metrics.OracleCallsTotal.WithLabelValues("ok").Inc()
			g.log.Debug("📊 Gemini response received",
				zap.Int("attempt", attempt),
				zap.Int("chars", len(text)),
				zap.String("preview", logger.TruncateForLog(text, 200)),
			)
			return text, nil
		}

		lastErr = err
		metrics.OracleCallsTotal.WithLabelValues("error").Inc()

		if ctx.Err() != nil || !isTransient(err) {
			break
		}
		if attempt < g.maxAttempts {
			g.log.Warn("⚠️ Gemini call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
	}

	return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
}

func (g *geminiService) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.models.GenerateContent(callCtx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("nil response")
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("no text content in response")
	}
	return text, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code >= http.StatusInternalServerError || apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}
