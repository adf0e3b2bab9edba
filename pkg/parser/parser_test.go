package parser

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/contextlang/pkg/aggregator"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseOne(t *testing.T, dir, name, content string) ([]*Task, []aggregator.Error) {
	t.Helper()
	path := writeFile(t, dir, name, content)
	return New(quietLogger(), dir).ParseFiles([]string{path})
}

func messages(errs []aggregator.Error) string {
	var parts []string
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

func TestParseFiles_NoPromptsIsNoop(t *testing.T) {
	dir := t.TempDir()
	tasks, errs := parseOne(t, dir, "plain.txt", "just text\n<context:A>a<context:A/>\n{A}\n")
	assert.Empty(t, tasks)
	assert.Empty(t, errs)
}

func TestParseFiles_HappyPath(t *testing.T) {
	dir := t.TempDir()
	content := `# <context>
# Use Go 1.22.
# <context/>
# <context:LANG>Go<context:LANG/>
# <prompt:Hello>Write a hello world in {LANG}.<prompt:Hello/>
# <prompt:Refine->Body>Make it shorter.<prompt:Refine/>
{Hello}
<Body>
old
<Body/>
`
	tasks, errs := parseOne(t, dir, "main.py", content)
	require.Empty(t, errs, messages(errs))
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "main.py", task.RelPath)
	assert.Equal(t, "# Use Go 1.22.\n#", task.GlobalContext)
	assert.Equal(t, []ContextVariable{{Name: "LANG", Value: "Go"}}, task.Variables)
	assert.Equal(t, []string{"Hello", "Refine"}, task.PromptNames())

	hello, ok := task.Prompt("Hello")
	require.True(t, ok)
	assert.Equal(t, "Write a hello world in {LANG}.", hello.Text)
	assert.Equal(t, 5, hello.Line)

	assert.True(t, task.IsPlaceholder("Hello"))
	assert.False(t, task.IsPlaceholder("Refine"))
	assert.Equal(t, map[string]string{"Refine": "Body"}, task.Targets)
	assert.Equal(t, []OutputTag{{Name: "Body", Content: "old"}}, task.OutputTags)

	tag, ok := task.TagOutput("Refine")
	require.True(t, ok)
	assert.Equal(t, "Body", tag)
	_, ok = task.TagOutput("Hello")
	assert.False(t, ok)
}

func TestParseFiles_DuplicatesReportedFirstWins(t *testing.T) {
	dir := t.TempDir()
	content := `<context>one<context/>
<context>two<context/>
<context:FOO>foo-value<context:FOO/>
<context:FOO>other<context:FOO/>
<context:BAR>bar-value<context:BAR/>
<prompt:Build>first<prompt:Build/>
<prompt:Build>second<prompt:Build/>
`
	tasks, errs := parseOne(t, dir, "dups.txt", content)
	require.Len(t, tasks, 1)
	task := tasks[0]

	assert.Equal(t, "one", task.GlobalContext)
	v, _ := task.Variable("FOO")
	assert.Equal(t, "foo-value", v)
	v, _ = task.Variable("BAR")
	assert.Equal(t, "bar-value", v)
	p, _ := task.Prompt("Build")
	assert.Equal(t, "first", p.Text)

	all := messages(errs)
	require.Len(t, errs, 3, all)
	assert.Contains(t, all, "Global: Multiple Global tags")
	assert.Contains(t, all, "Context_Variables: Context variable 'FOO' already declared")
	assert.Contains(t, all, "Prompts: Prompt 'Build' already declared")
	for _, e := range errs {
		assert.Equal(t, "dups.txt", e.File)
	}
}

func TestParseFiles_Imports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vars.txt", "<context:A>alpha<context:A/>\n<context:B> beta <context:B/>\n")
	writeFile(t, dir, "more.txt", "<context:C>gamma<context:C/>\n")
	writeFile(t, dir, "code.go", "package main\n")

	content := `<import>vars.txt<import/>
<import:C>more.txt<import:C/>
<import:Z>more.txt<import:Z/>
<import:A>vars.txt<import:A/>
<file:CODE>code.go<file:CODE/>
<import>missing.txt<import/>
<prompt:P>{A}{B}{C}{CODE}<prompt:P/>
`
	tasks, errs := parseOne(t, dir, "main.txt", content)
	require.Len(t, tasks, 1)
	task := tasks[0]

	assert.Equal(t, []ContextVariable{
		{Name: "A", Value: "alpha"},
		{Name: "B", Value: "beta"},
		{Name: "C", Value: "gamma"},
		{Name: "CODE", Value: "package main\n"},
	}, task.Variables)

	all := messages(errs)
	require.Len(t, errs, 3, all)
	assert.Contains(t, all, "Context variable 'Z' does not exist in 'more.txt'")
	assert.Contains(t, all, "Context variable 'A' from 'vars.txt' already exists in scope")
	assert.Contains(t, all, "failed to read import 'missing.txt'")
}

func TestParseFiles_ImportRelativeToFileDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub/vars.txt", "<context:A>alpha<context:A/>")
	tasks, errs := parseOne(t, dir, "sub/main.txt", "<import>vars.txt<import/>\n<prompt:P>{A}<prompt:P/>")
	require.Empty(t, errs, messages(errs))
	require.Len(t, tasks, 1)
	v, ok := tasks[0].Variable("A")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)
	assert.Equal(t, filepath.Join("sub", "main.txt"), tasks[0].RelPath)
}

func TestParseFiles_PlaceholderInsideOwnBodyDoesNotCount(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A>refer to {A} and {B}<prompt:A/>\n<prompt:B>b<prompt:B/>\n"
	tasks, errs := parseOne(t, dir, "x.txt", content)
	require.Empty(t, errs)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].IsPlaceholder("A"))
	assert.False(t, tasks[0].IsPlaceholder("B"))
	assert.False(t, tasks[0].HasOutputs())
}

func TestParseFiles_PlaceholderOutsidePromptCounts(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A>seed<prompt:A/>\n{A}\n"
	tasks, errs := parseOne(t, dir, "x.txt", content)
	require.Empty(t, errs)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsPlaceholder("A"))
}

func TestParseFiles_UnresolvedTargetDropsFile(t *testing.T) {
	dir := t.TempDir()
	tasks, errs := parseOne(t, dir, "x.txt", "<prompt:C->Missing>x<prompt:C/>\n")
	assert.Empty(t, tasks)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "targets output tag 'Missing'")
}

func TestParseFile_UnresolvedTargetIsTyped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.txt", "<prompt:C->Missing>x<prompt:C/>\n")
	_, err := New(quietLogger(), dir).ParseFile(path, aggregator.New())
	assert.ErrorIs(t, err, ErrUnresolvedTarget)
}

func TestParseFiles_MalformedTargetDropsPrompt(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:->A>x<prompt:->A/>\n<prompt:Ok>y<prompt:Ok/>\n<A><A/>\n"
	tasks, errs := parseOne(t, dir, "x.txt", content)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"Ok"}, tasks[0].PromptNames())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Invalid prompt output-target syntax '->A'")
}

func TestParseFiles_UnrecognizedPrefixAbortsOnlyThatFile(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", "<prompt:P>x<prompt:P/>\n<weird:X>y<weird:X/>\n")
	good := writeFile(t, dir, "good.txt", "<prompt:P>x<prompt:P/>\n{P}\n")

	tasks, errs := New(quietLogger(), dir).ParseFiles([]string{bad, good})
	require.Len(t, tasks, 1)
	assert.Equal(t, "good.txt", tasks[0].RelPath)
	require.Len(t, errs, 1)
	assert.Equal(t, "bad.txt", errs[0].File)
	assert.Contains(t, errs[0].Message, "unrecognized tag prefix 'weird:'")
}

func TestParseFiles_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	tasks, errs := New(quietLogger(), dir).ParseFiles([]string{filepath.Join(dir, "nope.txt")})
	assert.Empty(t, tasks)
	require.Len(t, errs, 1)
	assert.Equal(t, "nope.txt", errs[0].File)
	assert.Contains(t, errs[0].Message, "failed to read file")
}

func TestParseFiles_OutputTagCollidingWithVariable(t *testing.T) {
	dir := t.TempDir()
	content := "<context:X>v<context:X/>\n<X>\nold\n<X/>\n<prompt:X>p<prompt:X/>\n"
	tasks, errs := parseOne(t, dir, "x.txt", content)
	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].OutputTags)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Prompt output variable 'X' already declared")
}

func TestParseFiles_DuplicateOutputTagKeepsFirst(t *testing.T) {
	dir := t.TempDir()
	content := "<T>\none\n<T/>\n<T>\ntwo\n<T/>\n<prompt:T>p<prompt:T/>\n"
	tasks, errs := parseOne(t, dir, "x.txt", content)
	require.Empty(t, errs)
	require.Len(t, tasks, 1)
	assert.Equal(t, []OutputTag{{Name: "T", Content: "one"}}, tasks[0].OutputTags)
}

func TestParseFiles_LongNames(t *testing.T) {
	dir := t.TempDir()
	name := strings.Repeat("A", 300)
	content := "<context:" + name + ">value<context:" + name + "/>\n" +
		"<prompt:P" + name + ">Do thing<prompt:P" + name + "/>\n{P" + name + "}\n"
	tasks, errs := parseOne(t, dir, "long.txt", content)
	require.Empty(t, errs)
	require.Len(t, tasks, 1)
	v, _ := tasks[0].Variable(name)
	assert.Equal(t, "value", v)
	assert.True(t, tasks[0].IsPlaceholder("P"+name))
}
