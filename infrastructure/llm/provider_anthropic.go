package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when the config leaves Model empty.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for the Anthropic Messages API.
// The API returns one message per call, so candidates are sampled with
// sequential calls.
type anthropicProvider struct {
	BaseProvider
	client anthropic.Client
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries are owned by RetryMiddleware.
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	return &anthropicProvider{
		BaseProvider: newBaseProvider("anthropic", model),
		client:       anthropic.NewClient(opts...),
	}, nil
}

// DoRequest issues req.Candidates message calls. A failure after at least
// one success returns what was collected so far.
func (p *anthropicProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	req = normalize(req)
	params := p.buildParams(req)

	var resp Response
	for range req.Candidates {
		message, err := p.client.Messages.New(ctx, params)
		if err != nil {
			if len(resp.Texts) > 0 {
				return resp, nil
			}
			return Response{}, p.handleError(err)
		}

		text := messageText(message)
		if text == "" {
			continue
		}
		resp.Texts = append(resp.Texts, text)
		resp.TokensIn += tokenCount(int(message.Usage.InputTokens), req.System, req.Prompt)
		resp.TokensOut += tokenCount(int(message.Usage.OutputTokens), text)
	}

	if len(resp.Texts) == 0 {
		return Response{}, p.classifier.EmptyResponseError()
	}
	return resp, nil
}

func (p *anthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		// Anthropic accepts 0.0 to 1.0.
		params.Temperature = anthropic.Float(clampFloat64(*req.Temperature, 0.0, 1.0))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

func messageText(message *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.StatusCode, "request rejected", err)
	}

	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}
