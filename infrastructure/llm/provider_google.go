package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when the config leaves Model empty.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for the Gemini API. Candidates are
// requested natively through CandidateCount.
type googleProvider struct {
	BaseProvider
	client *genai.Client
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.HTTPOptions.BaseURL = validatedURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider: newBaseProvider("google", model),
		client:       client,
	}, nil
}

// DoRequest sends one GenerateContent call and returns the text of every
// candidate.
func (p *googleProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	req = normalize(req)

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.buildGenerationConfig(req))
	if err != nil {
		return Response{}, p.handleError(err)
	}

	texts := candidateTexts(resp)
	if len(texts) == 0 {
		return Response{}, p.classifier.EmptyResponseError()
	}

	out := Response{Texts: texts}
	if usage := resp.UsageMetadata; usage != nil {
		out.TokensIn = int(usage.PromptTokenCount)
		out.TokensOut = int(usage.CandidatesTokenCount)
	}
	out.TokensIn = tokenCount(out.TokensIn, req.System, req.Prompt)
	out.TokensOut = tokenCount(out.TokensOut, texts...)
	return out, nil
}

func (p *googleProvider) buildGenerationConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		CandidateCount:  int32(min(req.Candidates, math.MaxInt32)),
		MaxOutputTokens: int32(min(req.MaxTokens, math.MaxInt32)),
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(clampFloat64(*req.Temperature, 0.0, 2.0)))
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return config
}

func candidateTexts(resp *genai.GenerateContentResponse) []string {
	var texts []string
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			texts = append(texts, sb.String())
		}
	}
	return texts
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.classifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return p.classifier.ClassifyHTTPError(genaiErr.Code, genaiErr.Message, err)
	}

	return NewProviderError("google", ErrorTypeNetwork, 0, "request failed", err)
}

// containsContentPolicyError reports whether a Google API error was raised
// by safety filtering.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "safety") ||
		strings.Contains(lower, "policy") ||
		strings.Contains(lower, "blocked") {
		return true
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
