package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when the config leaves Model empty.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM for OpenAI's chat completion API.
// Multiple candidates are requested natively through the N parameter.
type openAIProvider struct {
	BaseProvider
	client *openai.Client
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	clientConfig, err := openAIClientConfig(config)
	if err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	return &openAIProvider{
		BaseProvider: newBaseProvider("openai", model),
		client:       openai.NewClientWithConfig(clientConfig),
	}, nil
}

// openAIClientConfig is shared with the embedder.
func openAIClientConfig(config ClientConfig) (openai.ClientConfig, error) {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return clientConfig, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}
	return clientConfig, nil
}

// DoRequest sends one chat completion request and returns every choice.
func (p *openAIProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	req = normalize(req)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildChatCompletionRequest(req))
	if err != nil {
		return Response{}, p.handleError(err)
	}

	texts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		if choice.Message.Content != "" {
			texts = append(texts, choice.Message.Content)
		}
	}
	if len(texts) == 0 {
		return Response{}, p.classifier.EmptyResponseError()
	}

	return Response{
		Texts:     texts,
		TokensIn:  tokenCount(resp.Usage.PromptTokens, req.System, req.Prompt),
		TokensOut: tokenCount(resp.Usage.CompletionTokens, texts...),
	}, nil
}

func (p *openAIProvider) buildChatCompletionRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	out := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		N:         req.Candidates,
	}
	if req.Temperature != nil {
		// OpenAI accepts 0.0 to 2.0.
		out.Temperature = float32(clampFloat64(*req.Temperature, 0.0, 2.0))
	}
	return out
}

// handleError classifies and wraps errors from the OpenAI API.
func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.classifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError("openai", ErrorTypeNetwork, 0, "request failed", err)
}
