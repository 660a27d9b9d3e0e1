package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ledgerline/statements/internal/domain"
)

// statementSchema constrains Gemini's response to the StatementExtraction
// shape.
var statementSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"bank_name":      {Type: genai.TypeString},
		"account_number": {Type: genai.TypeString},
		"period_start":   {Type: genai.TypeString},
		"period_end":     {Type: genai.TypeString},
		"currency":       {Type: genai.TypeString},
		"transactions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"date":        {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"amount":      {Type: genai.TypeNumber},
					"type":        {Type: genai.TypeString, Enum: []string{"debit", "credit"}},
				},
				Required: []string{"date", "description", "amount", "type"},
			},
		},
	},
	Required: []string{"transactions"},
}

// Google extracts statements with the Gemini API using a named response
// schema.
type Google struct {
	apiKey string
	model  string
}

// NewGoogle creates a Gemini-backed extractor.
func NewGoogle(apiKey, model string) *Google {
	return &Google{apiKey: apiKey, model: model}
}

// Name implements Extractor.
func (g *Google) Name() string { return "google" }

// Extract implements Extractor.
func (g *Google) Extract(ctx context.Context, req ExtractRequest) (*StatementExtraction, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, newFailure(g.Name(), domain.FailureAuth, fmt.Errorf("create genai client: %w", err))
	}

	parts := make([]*genai.Part, 0, len(req.Pages)+1)
	parts = append(parts, &genai.Part{Text: req.Prompt})
	for _, page := range req.Pages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: page.MIMEType,
				Data:     page.Data,
			},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   statementSchema,
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, g.categorize(err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, newFailure(g.Name(), domain.FailureUnknown, errors.New("empty response from model"))
	}

	var out StatementExtraction
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return nil, newFailure(g.Name(), domain.FailureUnknown,
			fmt.Errorf("unmarshal model response: %w", err))
	}
	return &out, nil
}

func (g *Google) categorize(err error) *Failure {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newFailure(g.Name(), categorizeStatus(apiErr.Code, apiErr.Message), err)
	}
	return newFailure(g.Name(), categorizeStatus(0, err.Error()), err)
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
