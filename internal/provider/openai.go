package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerline/statements/internal/cache"
	"github.com/ledgerline/statements/internal/domain"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"

	modelListTTL = 10 * time.Minute
)

// OpenAICompat speaks the OpenAI chat-completions dialect with
// JSON-schema-constrained output. OpenAI, Mistral and Ollama all expose this
// surface, differing only in base URL and auth.
type OpenAICompat struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	models  cache.Cache // caches the fetched model list per base URL
}

// NewOpenAI creates an extractor against the OpenAI API.
func NewOpenAI(apiKey, model string, models cache.Cache) *OpenAICompat {
	return newOpenAICompat("openai", openAIBaseURL, apiKey, model, models)
}

// NewMistral creates an extractor against the Mistral API.
func NewMistral(apiKey, model string, models cache.Cache) *OpenAICompat {
	return newOpenAICompat("mistral", mistralBaseURL, apiKey, model, models)
}

// NewOllama creates an extractor against a local Ollama server via its
// OpenAI-compatible endpoint. host is e.g. "http://localhost:11434".
func NewOllama(host, model string, models cache.Cache) *OpenAICompat {
	return newOpenAICompat("ollama", strings.TrimRight(host, "/")+"/v1", "", model, models)
}

func newOpenAICompat(name, baseURL, apiKey, model string, models cache.Cache) *OpenAICompat {
	return &OpenAICompat{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 2 * time.Minute},
		models:  models,
	}
}

// Name implements Extractor.
func (p *OpenAICompat) Name() string { return p.name }

// Wire types for the chat-completions dialect.

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type modelListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// jsonSchema is the response_format schema mirroring StatementExtraction.
var jsonSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"bank_name":      map[string]any{"type": "string"},
		"account_number": map[string]any{"type": "string"},
		"period_start":   map[string]any{"type": "string"},
		"period_end":     map[string]any{"type": "string"},
		"currency":       map[string]any{"type": "string"},
		"transactions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"amount":      map[string]any{"type": "number"},
					"type":        map[string]any{"type": "string", "enum": []string{"debit", "credit"}},
				},
				"required":             []string{"date", "description", "amount", "type"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"transactions"},
	"additionalProperties": false,
}

// Extract implements Extractor.
func (p *OpenAICompat) Extract(ctx context.Context, req ExtractRequest) (*StatementExtraction, error) {
	if err := p.validateModel(ctx); err != nil {
		return nil, err
	}

	content := []chatContent{{Type: "text", Text: req.Prompt}}
	for _, page := range req.Pages {
		if strings.HasPrefix(page.MIMEType, "text/") {
			content = append(content, chatContent{Type: "text", Text: string(page.Data)})
			continue
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s",
			page.MIMEType, base64.StdEncoding.EncodeToString(page.Data))
		content = append(content, chatContent{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}})
	}

	body := chatRequest{
		Model:    p.model,
		Messages: []chatMessage{{Role: "user", Content: content}},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "bank_statement_extraction",
				"strict": true,
				"schema": jsonSchema,
			},
		},
	}

	var resp chatResponse
	if err := p.post(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, newFailure(p.name, domain.FailureUnknown, errors.New("response has no choices"))
	}

	var out StatementExtraction
	if err := json.Unmarshal([]byte(cleanModelJSON(resp.Choices[0].Message.Content)), &out); err != nil {
		return nil, newFailure(p.name, domain.FailureUnknown,
			fmt.Errorf("unmarshal model response: %w", err))
	}
	return &out, nil
}

// validateModel checks the configured model against the provider's model
// list so an unknown model is reported as model-invalid rather than a
// generic request failure. The list is cached; a failed list call does not
// block extraction.
func (p *OpenAICompat) validateModel(ctx context.Context) error {
	key := p.baseURL + "/models"

	var ids []string
	if cached, ok := p.models.Get(key); ok {
		ids, _ = cached.([]string)
	} else {
		var list modelListResponse
		if err := p.get(ctx, "/models", &list); err != nil {
			return nil // stay permissive when the list endpoint is unavailable
		}
		ids = make([]string, len(list.Data))
		for i, m := range list.Data {
			ids[i] = m.ID
		}
		p.models.Set(key, ids, modelListTTL)
	}

	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if id == p.model {
			return nil
		}
	}
	return newFailure(p.name, domain.FailureModelInvalid,
		fmt.Errorf("model %q not recognized by provider", p.model))
}

func (p *OpenAICompat) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return newFailure(p.name, domain.FailureUnknown, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return newFailure(p.name, domain.FailureUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.do(req, out)
}

func (p *OpenAICompat) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return newFailure(p.name, domain.FailureUnknown, err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.do(req, out)
}

func (p *OpenAICompat) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return newFailure(p.name, domain.FailureUnknown, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return newFailure(p.name, domain.FailureUnknown, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		message := string(data)
		var apiErr chatResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			message = apiErr.Error.Message
		}
		return newFailure(p.name, categorizeStatus(resp.StatusCode, message),
			fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, message))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return newFailure(p.name, domain.FailureUnknown, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
