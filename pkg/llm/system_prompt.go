package llm

import (
	"fmt"
	"os"
	"strings"
)

// TagNamePlaceholder is replaced by the prompt name in the system prompt.
const TagNamePlaceholder = "<<<TAGNAME>>>"

// DefaultSystemPrompt is sent as the system message of every generation call.
const DefaultSystemPrompt = `You are a Coding Assistant. Your main role is to generate code based on user commands and context information. When specific <<<TAGNAME>>> <<<TAGNAME>>>/ markers are present in the input code, generate and return new functions or modifications to be inserted directly between these tags only, without altering any other part of the code. If no such markers are present, it indicates a request for refactoring or comprehensive code generation. In this case, please provide a full implementation of the code with all requested features and optimizations.

Follow these specific guidelines:
- Describe code and any modifications by embedding comments in code blocks.
- Focus on generating accurate, efficient code based on the provided instructions and context.
- Return the whole modified code if no specific tags guide the insertion or modification point.

Remember, your goal is to assist in generating accurate, efficient code based on the provided instructions and context.`

// ScrapeSystemPrompt and ScrapePrompt drive the second call that extracts the
// code from a free-form answer.
const ScrapeSystemPrompt = `You are a Code Scraper Assistant, adept at extracting and refining code from mixed content.
Your task is to identify, format, and output code segments from the provided content accurately.
Ensure the code is clean, well-formatted, and ready for integration into a larger codebase.
Pay special attention to maintaining the integrity and structure of the code as intended in the original generation request.`

const ScrapePrompt = `Please use the function to output the code of the program from the content.

CONTENT_CONTAINING_CODE:
`

// LoadSystemPrompt reads a system prompt template from path, or returns the
// built-in one when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	return string(data), nil
}

// SystemPrompt fills a template for one prompt.
func SystemPrompt(template, promptName string) string {
	return strings.ReplaceAll(template, TagNamePlaceholder, promptName)
}
