package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// envelopeResponseSchema mirrors CodeEnvelope in the Gemini schema dialect.
var envelopeResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"code": {Type: genai.TypeString, Description: "code text without code block characters"},
	},
	Required: []string{"code"},
}

// Gemini asks the model for the envelope directly through a JSON response schema.
type Gemini struct {
	client *genai.Client
	model  string
	system string
	logger *logrus.Logger
}

func NewGemini(ctx context.Context, apiKey, baseURL, model, systemTemplate string, logger *logrus.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, system: systemTemplate, logger: logger}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt, promptName string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(g.system, promptName), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    envelopeResponseSchema,
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := StripFences(resp.Text())
	g.logger.Debugf("Gemini envelope for %s: %s", promptName, text)
	return text, nil
}
