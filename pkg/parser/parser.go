package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/contextlang/pkg/aggregator"
	"github.com/grovetools/contextlang/pkg/directive"
	"github.com/sirupsen/logrus"
)

// ErrUnresolvedTarget is returned when a prompt targets an output tag that is
// not declared in the same file. No task is produced for such a file.
var ErrUnresolvedTarget = errors.New("unresolved output target")

// Parser turns files into tasks.
type Parser struct {
	logger  *logrus.Logger
	baseDir string
}

// New creates a parser. baseDir anchors relative import paths and the relative
// file paths used in error reports.
func New(logger *logrus.Logger, baseDir string) *Parser {
	return &Parser{logger: logger, baseDir: baseDir}
}

// ParseFiles parses every path. A failing file never stops the others; its
// problems are returned as errors next to the tasks of the files that parsed.
func (p *Parser) ParseFiles(paths []string) ([]*Task, []aggregator.Error) {
	var tasks []*Task
	collector := aggregator.New()

	for _, path := range paths {
		task, err := p.ParseFile(path, collector)
		if err != nil {
			collector.Add(p.relPath(path), err)
			p.logger.WithError(err).Errorf("Error processing file %s", p.relPath(path))
			continue
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, collector.Errors()
}

// ParseFile extracts one file. Per-directive problems go to errs and do not
// stop extraction. The returned error is reserved for failures that prevent a
// task from being built at all: an unreadable file, an unrecognized tag
// prefix, or an output target that does not exist. A nil task with a nil
// error means the file declares no prompts.
func (p *Parser) ParseFile(path string, errs *aggregator.Collector) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(path, string(data), errs)
}

// Parse extracts content as if it had been read from path.
func (p *Parser) Parse(path, content string, errs *aggregator.Collector) (*Task, error) {
	rel := p.relPath(path)
	log := p.logger.WithField("file", rel)

	directives, err := directive.Scan(content)
	if err != nil {
		return nil, err
	}

	b := &builder{
		parser: p,
		log:    log,
		errs:   errs,
		task: &Task{
			FilePath:     path,
			RelPath:      rel,
			Placeholders: make(map[string]bool),
			Targets:      make(map[string]string),
		},
	}
	for _, d := range directives {
		b.apply(d)
	}

	if err := b.finish(content); err != nil {
		return nil, err
	}
	if len(b.task.Prompts) == 0 {
		log.Debug("No prompts found, skipping file")
		return nil, nil
	}
	return b.task, nil
}

func (p *Parser) relPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	base, err := filepath.Abs(p.baseDir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return path
	}
	return rel
}

// builder dispatches directives in source order onto a task.
type builder struct {
	parser      *Parser
	log         *logrus.Entry
	errs        *aggregator.Collector
	task        *Task
	globals     int
	promptSpans [][2]int
	tags        []directive.Directive
}

func (b *builder) fail(kind directive.Kind, format string, args ...any) {
	msg := kind.String() + ": " + fmt.Sprintf(format, args...)
	b.errs.Addf(b.task.RelPath, "%s", msg)
	b.log.Errorf("Error processing %s: %s", kind, msg)
}

func (b *builder) apply(d directive.Directive) {
	switch d.Kind {
	case directive.KindGlobal:
		b.globals++
		switch b.globals {
		case 1:
			b.task.GlobalContext = strings.TrimSpace(d.Body)
		case 2:
			b.fail(d.Kind, "Multiple Global tags found in file %s", b.task.RelPath)
		}
	case directive.KindImport:
		b.importAll(d)
	case directive.KindNamedImport:
		b.importNamed(d)
	case directive.KindFileImport:
		b.importFile(d)
	case directive.KindContext:
		if _, ok := b.task.Variable(d.Name); ok {
			b.fail(d.Kind, "Context variable '%s' already declared in file.", d.Name)
			return
		}
		b.bind(d.Name, strings.TrimSpace(d.Body))
	case directive.KindPrompt:
		b.promptSpans = append(b.promptSpans, [2]int{d.Start, d.End})
		b.prompt(d)
	case directive.KindOutput:
		b.tags = append(b.tags, d)
	}
}

func (b *builder) bind(name, value string) {
	b.task.Variables = append(b.task.Variables, ContextVariable{Name: name, Value: value})
}

func (b *builder) prompt(d directive.Directive) {
	if strings.Contains(d.Spec, directive.TargetSeparator) && (d.Name == "" || d.Target == "") {
		b.fail(d.Kind, "Invalid prompt output-target syntax '%s'.", d.Spec)
		return
	}
	if _, ok := b.task.Prompt(d.Name); ok {
		b.fail(d.Kind, "Prompt '%s' already declared in file.", d.Name)
		return
	}
	b.task.Prompts = append(b.task.Prompts, &Prompt{
		Name:   d.Name,
		Text:   strings.TrimSpace(d.Body),
		Target: d.Target,
		Line:   d.Line,
	})
	if d.Target != "" {
		b.task.Targets[d.Name] = d.Target
	}
}

func (b *builder) importAll(d directive.Directive) {
	path := strings.TrimSpace(d.Body)
	b.log.Debugf("Importing context variables from %s", path)
	content, err := b.readImport(path)
	if err != nil {
		b.fail(d.Kind, "%v", err)
		return
	}
	imported, err := directive.Scan(content)
	if err != nil {
		b.fail(d.Kind, "failed to parse '%s': %v", path, err)
		return
	}
	for _, id := range imported {
		if id.Kind != directive.KindContext {
			continue
		}
		if _, ok := b.task.Variable(id.Name); ok {
			b.fail(d.Kind, "Context variable '%s' from '%s' already exists in scope.", id.Name, path)
			continue
		}
		b.bind(id.Name, strings.TrimSpace(id.Body))
	}
}

func (b *builder) importNamed(d directive.Directive) {
	path := strings.TrimSpace(d.Body)
	b.log.Debugf("Importing context variable %s from %s", d.Name, path)
	content, err := b.readImport(path)
	if err != nil {
		b.fail(d.Kind, "%v", err)
		return
	}
	imported, err := directive.Scan(content)
	if err != nil {
		b.fail(d.Kind, "failed to parse '%s': %v", path, err)
		return
	}
	for _, id := range imported {
		if id.Kind != directive.KindContext || id.Name != d.Name {
			continue
		}
		if _, ok := b.task.Variable(d.Name); ok {
			b.fail(d.Kind, "Context variable '%s' from '%s' already exists in scope of %s.", d.Name, path, b.task.RelPath)
			return
		}
		b.bind(d.Name, strings.TrimSpace(id.Body))
		return
	}
	b.fail(d.Kind, "Context variable '%s' does not exist in '%s'.", d.Name, path)
}

func (b *builder) importFile(d directive.Directive) {
	path := strings.TrimSpace(d.Body)
	if _, ok := b.task.Variable(d.Name); ok {
		b.fail(d.Kind, "File '%s' already declared in scope.", d.Name)
		return
	}
	content, err := b.readImport(path)
	if err != nil {
		b.fail(d.Kind, "%v", err)
		return
	}
	b.bind(d.Name, content)
}

// readImport resolves a relative import against the base directory first and
// the importing file's directory second.
func (b *builder) readImport(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty import path")
	}
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = []string{
			filepath.Join(b.parser.baseDir, path),
			filepath.Join(filepath.Dir(b.task.FilePath), path),
		}
	}
	var firstErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return string(data), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", fmt.Errorf("failed to read import '%s': %w", path, firstErr)
}

// finish runs the checks that need the whole file: output tags against bound
// variables, placeholder classification and output-target resolution.
func (b *builder) finish(content string) error {
	for _, d := range b.tags {
		if _, ok := b.task.Variable(d.Name); ok {
			b.fail(d.Kind, "Prompt output variable '%s' already declared in file.", d.Name)
			continue
		}
		if _, ok := b.task.OutputTag(d.Name); ok {
			b.log.Debugf("Output tag %s declared more than once, keeping the first region", d.Name)
			continue
		}
		b.task.OutputTags = append(b.task.OutputTags, OutputTag{Name: d.Name, Content: strings.TrimSpace(d.Body)})
	}

	outside := stripSpans(content, b.promptSpans)
	for _, p := range b.task.Prompts {
		if strings.Contains(outside, directive.Token(p.Name)) {
			b.log.Debugf("Prompt %s is a placeholder output", p.Name)
			b.task.Placeholders[p.Name] = true
		}
	}

	for _, p := range b.task.Prompts {
		if p.Target == "" {
			continue
		}
		if _, ok := b.task.OutputTag(p.Target); !ok {
			return fmt.Errorf("%w: Prompts: Prompt '%s' targets output tag '%s', but no such output tag exists in this file", ErrUnresolvedTarget, p.Name, p.Target)
		}
	}
	return nil
}

// stripSpans removes the given non-overlapping, ordered spans from content.
func stripSpans(content string, spans [][2]int) string {
	if len(spans) == 0 {
		return content
	}
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		if s[0] < prev {
			continue
		}
		b.WriteString(content[prev:s[0]])
		prev = s[1]
	}
	b.WriteString(content[prev:])
	return b.String()
}
