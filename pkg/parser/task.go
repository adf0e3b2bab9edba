package parser

import (
	"fmt"
	"strings"
)

// ContextVariable is a named value that {Name} placeholders in prompts expand to.
type ContextVariable struct {
	Name  string
	Value string
}

// Prompt is a named generation request.
type Prompt struct {
	Name string
	// Text is the raw template, whitespace-trimmed.
	Text string
	// Target names the output tag this prompt writes into when it differs
	// from the prompt's own name. Empty when the prompt has no explicit target.
	Target string
	// Dependencies lists the other prompts referenced by Text, in order of
	// first reference. Filled in by the resolver.
	Dependencies []string
	Line         int
}

// OutputTag is a <Name>...<Name/> region as it was declared when the file was parsed.
type OutputTag struct {
	Name    string
	Content string
}

// Task holds everything extracted from one file that declares at least one prompt.
type Task struct {
	FilePath      string
	RelPath       string
	GlobalContext string
	Variables     []ContextVariable
	// Prompts are kept in declaration order.
	Prompts []*Prompt
	// Placeholders is the set of prompt names whose {Name} token appears in the
	// file outside of every prompt body.
	Placeholders map[string]bool
	OutputTags   []OutputTag
	// Targets maps a prompt name to the output tag it writes into.
	Targets map[string]string

	// Order and Layers are set by the resolver.
	Order  []string
	Layers [][]string
}

// Prompt returns the prompt with the given name.
func (t *Task) Prompt(name string) (*Prompt, bool) {
	for _, p := range t.Prompts {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Variable returns the value bound to a context variable name.
func (t *Task) Variable(name string) (string, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// OutputTag returns the declared output tag with the given name.
func (t *Task) OutputTag(name string) (OutputTag, bool) {
	for _, o := range t.OutputTags {
		if o.Name == name {
			return o, true
		}
	}
	return OutputTag{}, false
}

// PromptNames returns prompt names in declaration order.
func (t *Task) PromptNames() []string {
	names := make([]string, len(t.Prompts))
	for i, p := range t.Prompts {
		names[i] = p.Name
	}
	return names
}

// IsPlaceholder reports whether the prompt writes into {name} placeholder lines.
func (t *Task) IsPlaceholder(name string) bool {
	return t.Placeholders[name]
}

// TagOutput returns the output tag a prompt writes into: its explicit target
// if it has one, otherwise a tag sharing the prompt's name.
func (t *Task) TagOutput(name string) (string, bool) {
	if target, ok := t.Targets[name]; ok {
		return target, true
	}
	if _, ok := t.OutputTag(name); ok {
		return name, true
	}
	return "", false
}

// HasOutputs reports whether any prompt of the task can write into the file.
func (t *Task) HasOutputs() bool {
	return len(t.Placeholders) > 0 || len(t.OutputTags) > 0 || len(t.Targets) > 0
}

// ExecutionOrder returns the resolved order, or declaration order when the
// task was never resolved.
func (t *Task) ExecutionOrder() []string {
	if len(t.Order) > 0 {
		return t.Order
	}
	return t.PromptNames()
}

func (t *Task) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task(%s)\n", t.RelPath)
	if t.GlobalContext != "" {
		fmt.Fprintf(&b, "  global context: %d chars\n", len(t.GlobalContext))
	}
	for _, v := range t.Variables {
		fmt.Fprintf(&b, "  context %s: %d chars\n", v.Name, len(v.Value))
	}
	for _, p := range t.Prompts {
		var outputs []string
		if t.IsPlaceholder(p.Name) {
			outputs = append(outputs, "{"+p.Name+"}")
		}
		if tag, ok := t.TagOutput(p.Name); ok {
			outputs = append(outputs, "<"+tag+">")
		}
		if len(outputs) == 0 {
			outputs = append(outputs, "none")
		}
		fmt.Fprintf(&b, "  prompt %s -> %s\n", p.Name, strings.Join(outputs, ", "))
	}
	for i, layer := range t.Layers {
		fmt.Fprintf(&b, "  layer %d: %s\n", i, strings.Join(layer, ", "))
	}
	return b.String()
}
