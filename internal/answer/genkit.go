package answer

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/siteguide/siteguide/internal/log"
)

// GenkitGenerator implements Generator on top of a Genkit instance with a
// Google AI model. Calls are rate limited and retried with backoff.
type GenkitGenerator struct {
	g           *genkit.Genkit
	model       string
	temperature float32
	retry       RetryConfig
	limiter     *rate.Limiter
	logger      log.Logger
}

// NewGenkitGenerator creates a generator for the named Google AI model.
// requestsPerSecond zero disables throttling.
func NewGenkitGenerator(g *genkit.Genkit, model string, temperature float32, retry RetryConfig, requestsPerSecond float64, logger log.Logger) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &GenkitGenerator{
		g:           g,
		model:       model,
		temperature: temperature,
		retry:       retry,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Generate produces the model's text for one prompt.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp *ai.ModelResponse
	err := withRetry(ctx, gg.retry, gg.limiter, gg.logger, func() error {
		var genErr error
		resp, genErr = genkit.Generate(ctx, gg.g,
			ai.WithModelName("googleai/"+gg.model),
			ai.WithPrompt(prompt),
			ai.WithConfig(&genai.GenerateContentConfig{
				Temperature: genai.Ptr(gg.temperature),
			}),
		)
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}
