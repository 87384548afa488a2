package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/generation"
)

// fakeModels scripts GenerateContent responses for tests.
type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	_ string,
	_ []*genai.Content,
	_ *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	var resp *genai.GenerateContentResponse
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func jsonResponse(body string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: body}}}},
		},
	}
}

func testEnricher(t *testing.T, models genaiModels) *GeminiEnricher {
	t.Helper()
	tmpl, err := template.New("enrich").Parse(promptTemplate)
	require.NoError(t, err)
	return &GeminiEnricher{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		models: models,
		tmpl:   tmpl,
		model:  "gemini-test",
	}
}

func testStory(t *testing.T, externalID int64) *domain.Story {
	t.Helper()
	story, err := domain.NewStory(externalID, "A title", "https://example.com/a", "alice", 10, 2, time.Now().UTC())
	require.NoError(t, err)
	story.ID = externalID + 1000
	return story
}

func TestNewGeminiEnricherValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewGeminiEnricher(ctx, nil, config.LLMConfig{GeminiAPIKey: "k", ModelName: "m"})
	assert.Error(t, err)

	_, err = NewGeminiEnricher(ctx, logger, config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewGeminiEnricher(ctx, logger, config.LLMConfig{GeminiAPIKey: "k"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestEnrichBatch(t *testing.T) {
	t.Parallel()

	t.Run("maps response entries onto the batch", func(t *testing.T) {
		t.Parallel()

		models := &fakeModels{responses: []*genai.GenerateContentResponse{jsonResponse(
			`{"stories": [
				{"id": 1, "summary": "First story.", "tags": ["Tech"]},
				{"id": 2, "summary": "Second story.", "tags": ["Science", "Space"]}
			]}`,
		)}}
		e := testEnricher(t, models)

		results, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1), testStory(t, 2)})
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, int64(1001), results[0].StoryID)
		assert.Equal(t, "First story.", results[0].Summary)
		assert.Equal(t, "gemini-test", results[0].Model)
		assert.Equal(t, []string{"Science", "Space"}, results[1].Tags)
	})

	t.Run("rejects a response missing a story", func(t *testing.T) {
		t.Parallel()

		models := &fakeModels{responses: []*genai.GenerateContentResponse{jsonResponse(
			`{"stories": [{"id": 1, "summary": "Only one.", "tags": []}]}`,
		)}}
		e := testEnricher(t, models)

		_, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1), testStory(t, 2)})
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("rejects an empty summary", func(t *testing.T) {
		t.Parallel()

		models := &fakeModels{responses: []*genai.GenerateContentResponse{jsonResponse(
			`{"stories": [{"id": 1, "summary": "", "tags": ["Tech"]}]}`,
		)}}
		e := testEnricher(t, models)

		_, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1)})
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("does not retry malformed JSON", func(t *testing.T) {
		t.Parallel()

		models := &fakeModels{responses: []*genai.GenerateContentResponse{jsonResponse("not json")}}
		e := testEnricher(t, models)

		_, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1)})
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Equal(t, 1, models.calls)
	})

	t.Run("does not retry safety blocks", func(t *testing.T) {
		t.Parallel()

		blocked := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}
		models := &fakeModels{responses: []*genai.GenerateContentResponse{blocked}}
		e := testEnricher(t, models)

		_, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1)})
		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.Equal(t, 1, models.calls)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()

		models := &fakeModels{}
		e := testEnricher(t, models)

		results, err := e.EnrichBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, results)
		assert.Equal(t, 0, models.calls)
	})
}

func TestEnrichBatchRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	models := &fakeModels{
		errs: []error{errors.New("connection reset"), nil},
		responses: []*genai.GenerateContentResponse{
			nil,
			jsonResponse(`{"stories": [{"id": 1, "summary": "Recovered.", "tags": ["Tech"]}]}`),
		},
	}
	e := testEnricher(t, models)

	results, err := e.EnrichBatch(context.Background(), []*domain.Story{testStory(t, 1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Recovered.", results[0].Summary)
	assert.Equal(t, 2, models.calls)
}
