package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/generation"
)

// promptTemplate asks for a short summary and a handful of topic tags per
// story, returned as a single JSON document covering the whole batch.
const promptTemplate = `You are a news analyst. For each story below, write a
concise 1-2 sentence summary of what the story is about, judging from its
title and URL, and assign 1-5 topic tags. Prefer broad tags such as
"Tech", "Business", "Science", "Society", and well-known subtopics such as
"AI/ML", "Security", "Startups", "Open Source". Add a specific tag only
when the story clearly warrants one.

Stories:
{{range .Stories}}- id: {{.ExternalID}}
  title: {{.Title}}
  url: {{.URL}}
{{end}}
Respond with JSON only, in this exact shape, with one entry per story id:
{"stories": [{"id": 123, "summary": "...", "tags": ["Tech", "AI/ML"]}]}`

// In-call retry budget for transport-level failures. Anything that
// survives this budget surfaces to the job, which marks the batch
// failed_pending for the recovery sweep.
const (
	callMaxRetries = 2
	callBaseDelay  = 2 * time.Second
)

// responseSchema mirrors the JSON document the model is instructed to return.
type responseSchema struct {
	Stories []storySchema `json:"stories"`
}

type storySchema struct {
	ID      int64    `json:"id"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// genaiModels is the slice of the genai client the enricher depends on,
// extracted so tests can substitute a fake.
type genaiModels interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiEnricher implements the generation.Enricher interface using
// Google's Gemini API to summarize and tag story batches.
type GeminiEnricher struct {
	logger *slog.Logger
	models genaiModels
	tmpl   *template.Template
	model  string
}

var _ generation.Enricher = (*GeminiEnricher)(nil)

// NewGeminiEnricher creates a GeminiEnricher with the provided dependencies.
func NewGeminiEnricher(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiEnricher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	tmpl, err := template.New("enrich").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &GeminiEnricher{
		logger: logger,
		models: client.Models,
		tmpl:   tmpl,
		model:  cfg.ModelName,
	}, nil
}

// EnrichBatch issues one Gemini call covering every story in the batch and
// returns one Enrichment per story. The batch fails as a unit: any call or
// parse failure leaves no story enriched.
func (e *GeminiEnricher) EnrichBatch(ctx context.Context, stories []*domain.Story) ([]generation.Enrichment, error) {
	if len(stories) == 0 {
		return nil, nil
	}

	prompt, err := e.buildPrompt(stories)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "calling enrichment model",
		"model", e.model,
		"batch_size", len(stories),
		"prompt_length", len(prompt))

	schema, err := e.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseEnrichments(schema, stories, e.model)
}

func (e *GeminiEnricher) buildPrompt(stories []*domain.Story) (string, error) {
	var buf bytes.Buffer
	data := struct{ Stories []*domain.Story }{Stories: stories}
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the API, retrying transport failures with
// exponential backoff. Safety blocks and malformed responses are
// permanent and returned immediately.
func (e *GeminiEnricher) callWithRetry(ctx context.Context, prompt string) (*responseSchema, error) {
	backoff := retry.WithMaxRetries(callMaxRetries, retry.NewExponential(callBaseDelay))

	var schema *responseSchema
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := e.models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			e.logger.WarnContext(ctx, "enrichment model call failed", "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %w", generation.ErrEnrichmentFailed, err))
		}

		parsed, err := decodeResponse(resp)
		if err != nil {
			return err
		}
		schema = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// decodeResponse validates the API response envelope and unmarshals the
// JSON body. All failures here are permanent.
func decodeResponse(resp *genai.GenerateContentResponse) (*responseSchema, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response body", generation.ErrInvalidResponse)
	}

	var schema responseSchema
	if err := json.Unmarshal([]byte(text), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return &schema, nil
}

// parseEnrichments maps the model response back onto the requested batch.
// Every story must be covered with a non-empty summary, otherwise the
// whole batch is rejected.
func parseEnrichments(schema *responseSchema, stories []*domain.Story, model string) ([]generation.Enrichment, error) {
	byExternalID := make(map[int64]storySchema, len(schema.Stories))
	for _, s := range schema.Stories {
		byExternalID[s.ID] = s
	}

	results := make([]generation.Enrichment, 0, len(stories))
	for _, story := range stories {
		entry, ok := byExternalID[story.ExternalID]
		if !ok {
			return nil, fmt.Errorf("%w: missing entry for story %d", generation.ErrInvalidResponse, story.ExternalID)
		}
		if entry.Summary == "" {
			return nil, fmt.Errorf("%w: empty summary for story %d", generation.ErrInvalidResponse, story.ExternalID)
		}
		results = append(results, generation.Enrichment{
			StoryID: story.ID,
			Summary: entry.Summary,
			Model:   model,
			Tags:    entry.Tags,
		})
	}
	return results, nil
}
