package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// ScrapeTool is the function the model is forced to call to return code.
var ScrapeTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "scrape_code",
		Description: "Scrape code from user input.",
		Parameters:  EnvelopeSchema(),
	},
}

// OpenAI talks to any OpenAI compatible chat completions endpoint. A prompt
// takes two calls: one that generates freely under the system prompt, and one
// that extracts the code through ScrapeTool.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
	logger *logrus.Logger
}

func NewOpenAI(apiKey, baseURL, model, systemTemplate string, logger *logrus.Logger) *OpenAI {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		system: systemTemplate,
		logger: logger,
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt, promptName string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(o.system, promptName)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	answer := resp.Choices[0].Message.Content
	o.logger.Debugf("Model answer for %s:\n%s", promptName, answer)

	scraped, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ScrapeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: ScrapePrompt + "\n" + answer},
		},
		Tools: []openai.Tool{ScrapeTool},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: ScrapeTool.Function.Name},
		},
	})
	if err != nil {
		return "", fmt.Errorf("code extraction failed: %w", err)
	}
	if len(scraped.Choices) == 0 || len(scraped.Choices[0].Message.ToolCalls) == 0 {
		return "", errors.New("code extraction returned no tool call")
	}
	args := scraped.Choices[0].Message.ToolCalls[0].Function.Arguments
	o.logger.Debugf("Extracted envelope for %s: %s", promptName, args)
	return args, nil
}
