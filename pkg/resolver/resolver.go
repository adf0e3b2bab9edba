// Package resolver orders a task's prompts so that every prompt runs after the
// prompts whose output it references.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grovetools/contextlang/pkg/directive"
	"github.com/grovetools/contextlang/pkg/parser"
	"github.com/sirupsen/logrus"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

// CycleError reports prompts that can never be scheduled. Cycle holds one
// concrete loop found among them; Blocked holds every prompt left unscheduled,
// in declaration order, including prompts that only depend on the loop.
type CycleError struct {
	File    string
	Cycle   []string
	Blocked []string
}

func (e *CycleError) Error() string {
	loop := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("dependency cycle detected among prompts in %s: %s (unscheduled: %s)",
		e.File, strings.Join(loop, " -> "), strings.Join(e.Blocked, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// Resolver computes prompt schedules.
type Resolver struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve fills in Dependencies for every prompt and Order/Layers for the
// task. On a cycle the task keeps no order at all.
func (r *Resolver) Resolve(task *parser.Task) error {
	task.Order, task.Layers = nil, nil

	for _, p := range task.Prompts {
		p.Dependencies = Dependencies(task, p)
	}

	order, layers, err := Order(task.Prompts)
	if err != nil {
		var ce *CycleError
		if errors.As(err, &ce) {
			ce.File = task.RelPath
		}
		return err
	}
	task.Order, task.Layers = order, layers

	r.logger.WithField("file", task.RelPath).Debugf("Resolved prompt order %v in %d layer(s)", order, len(layers))
	return nil
}

// Dependencies returns the declared prompts referenced as {Name} in p's
// template. Self-references and names that are not prompts are ignored.
func Dependencies(task *parser.Task, p *parser.Prompt) []string {
	var deps []string
	for _, name := range directive.Placeholders(p.Text) {
		if name == p.Name {
			continue
		}
		if _, ok := task.Prompt(name); ok {
			deps = append(deps, name)
		}
	}
	return deps
}

// Order layers prompts with Kahn's algorithm using each prompt's
// Dependencies. Each layer lists prompts in declaration order.
func Order(prompts []*parser.Prompt) ([]string, [][]string, error) {
	remaining := make(map[string]map[string]bool, len(prompts))
	for _, p := range prompts {
		deps := make(map[string]bool, len(p.Dependencies))
		for _, d := range p.Dependencies {
			deps[d] = true
		}
		remaining[p.Name] = deps
	}

	var order []string
	var layers [][]string
	emitted := make(map[string]bool, len(prompts))

	for len(emitted) < len(prompts) {
		var layer []string
		for _, p := range prompts {
			if !emitted[p.Name] && len(remaining[p.Name]) == 0 {
				layer = append(layer, p.Name)
			}
		}
		if len(layer) == 0 {
			break
		}
		for _, name := range layer {
			emitted[name] = true
			for _, deps := range remaining {
				delete(deps, name)
			}
		}
		layers = append(layers, layer)
		order = append(order, layer...)
	}

	if len(emitted) == len(prompts) {
		return order, layers, nil
	}

	var blocked []string
	for _, p := range prompts {
		if !emitted[p.Name] {
			blocked = append(blocked, p.Name)
		}
	}
	return nil, nil, &CycleError{Cycle: findCycle(blocked, remaining), Blocked: blocked}
}

// findCycle follows unresolved dependencies from the first blocked prompt
// until a name repeats. Every blocked prompt has at least one unresolved
// dependency, and those dependencies are blocked too, so the walk must loop.
func findCycle(blocked []string, remaining map[string]map[string]bool) []string {
	position := make(map[string]int)
	var path []string
	current := blocked[0]
	for {
		if i, seen := position[current]; seen {
			return path[i:]
		}
		position[current] = len(path)
		path = append(path, current)
		current = firstDependency(blocked, remaining[current])
	}
}

// firstDependency picks a dependency deterministically by declaration order.
func firstDependency(blocked []string, deps map[string]bool) string {
	for _, name := range blocked {
		if deps[name] {
			return name
		}
	}
	return ""
}
