package gateway

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/chemtrace/sds-cli/internal/resilience"
	"github.com/chemtrace/sds-cli/pkg/anthropic"
	"github.com/chemtrace/sds-cli/pkg/perplexity"
)

// GenerateRequest is a single inference request routed to a backend.
type GenerateRequest struct {
	ModelID     string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	FieldName   string // for cost attribution only
}

// GenerateResult is the raw text a backend produced.
type GenerateResult struct {
	Text string
}

// Backend is a single inference provider. Implementations classify their
// failures as transient or permanent via the resilience error types so the
// retry policy can tell them apart.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// Registry maps model identifiers to backends. Unknown model ids are
// rejected at construction time, before any document is processed.
type Registry struct {
	backends map[string]Backend // model id -> backend
}

// NewRegistry validates that every configured model id resolves to a backend.
func NewRegistry(modelIDs []string, anthropicClient anthropic.Client, perplexityClient perplexity.Client) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend, len(modelIDs))}
	for _, id := range modelIDs {
		switch {
		case strings.HasPrefix(id, "claude"):
			if anthropicClient == nil {
				return nil, eris.Errorf("gateway: model %q requires an anthropic client", id)
			}
			r.backends[id] = &anthropicBackend{client: anthropicClient}
		case strings.HasPrefix(id, "sonar"):
			if perplexityClient == nil {
				return nil, eris.Errorf("gateway: model %q requires a perplexity client", id)
			}
			r.backends[id] = &perplexityBackend{client: perplexityClient}
		default:
			return nil, eris.Errorf("gateway: unknown model id %q", id)
		}
	}
	return r, nil
}

// Backend returns the backend serving a model id.
func (r *Registry) Backend(modelID string) (Backend, error) {
	b, ok := r.backends[modelID]
	if !ok {
		return nil, eris.Errorf("gateway: unknown model id %q", modelID)
	}
	return b, nil
}

type anthropicBackend struct {
	client anthropic.Client
}

func (b *anthropicBackend) Name() string { return "anthropic" }

func (b *anthropicBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	temp := req.Temperature
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.ModelID,
		MaxTokens:   int64(req.MaxTokens),
		System:      req.System,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, classifyBackendError(err, anthropic.StatusOf(err))
	}
	resp.Usage.LogCost(req.ModelID, req.FieldName)
	return &GenerateResult{Text: resp.Text}, nil
}

type perplexityBackend struct {
	client perplexity.Client
}

func (b *perplexityBackend) Name() string { return "perplexity" }

func (b *perplexityBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	temp := req.Temperature
	maxTokens := req.MaxTokens
	resp, err := b.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       req.ModelID,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Messages: []perplexity.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, classifyBackendError(err, perplexity.StatusOf(err))
	}
	if len(resp.Choices) == 0 {
		return nil, resilience.NewPermanentError(eris.New("gateway: empty completion"))
	}
	return &GenerateResult{Text: resp.Choices[0].Message.Content}, nil
}

// classifyBackendError maps a provider error to the retry taxonomy. Timeouts,
// 5xx and rate-limit responses are transient; everything else is permanent.
func classifyBackendError(err error, status int) error {
	switch {
	case status == 0:
		// No HTTP status: network-level failure (timeout, connection reset).
		return resilience.NewTransientError(err, 0)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(err, status)
	default:
		return resilience.NewPermanentError(err)
	}
}
