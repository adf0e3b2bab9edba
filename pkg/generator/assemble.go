package generator

import (
	"strings"

	"github.com/grovetools/contextlang/pkg/directive"
	"github.com/grovetools/contextlang/pkg/parser"
)

// Block headers of an assembled prompt.
const (
	CodeToModifyHeader  = "CODE_TO_MODIFY:"
	GlobalContextHeader = "GLOBAL_CONTEXT:"
)

func substitution(name, value string) string {
	return "\n\n" + name + ":\n" + value
}

// Assemble builds the text sent for prompt p. content is the file as it is on
// disk right now: output tag values substituted for {Tag} and the
// CODE_TO_MODIFY block both come from it, so a prompt sees what earlier
// prompts already wrote. A tag whose markers are gone falls back to its parsed
// content; a missing explicit target is an error.
func Assemble(task *parser.Task, p *parser.Prompt, content string) (string, error) {
	text := p.Text
	for _, v := range task.Variables {
		text = strings.ReplaceAll(text, directive.Token(v.Name), substitution(v.Name, v.Value))
	}
	for _, tag := range task.OutputTags {
		token := directive.Token(tag.Name)
		if !strings.Contains(text, token) {
			continue
		}
		value, err := TagContent(content, tag.Name)
		if err != nil {
			value = tag.Content
		}
		text = strings.ReplaceAll(text, token, substitution(tag.Name, value))
	}

	if p.Target != "" {
		current, err := TagContent(content, p.Target)
		if err != nil {
			return "", err
		}
		text += "\n\n" + CodeToModifyHeader + "\n" + current
	}
	if task.GlobalContext != "" {
		text += "\n" + GlobalContextHeader + "\n" + task.GlobalContext
	}
	return text, nil
}
