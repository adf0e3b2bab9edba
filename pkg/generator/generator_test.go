package generator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/grovetools/contextlang/pkg/llm"
	"github.com/grovetools/contextlang/pkg/parser"
	"github.com/grovetools/contextlang/pkg/resolver"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeClient answers from a table keyed by prompt name and records what it
// was sent.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
	prompts   map[string]string
}

func newFakeClient(responses map[string]string) *fakeClient {
	return &fakeClient{responses: responses, failures: map[string]error{}, prompts: map[string]string{}}
}

func (f *fakeClient) Generate(_ context.Context, prompt, promptName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, promptName)
	f.prompts[promptName] = prompt
	if err := f.failures[promptName]; err != nil {
		return "", err
	}
	if r, ok := f.responses[promptName]; ok {
		return r, nil
	}
	return llm.Envelope("generated " + promptName), nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// load writes content to dir/name, parses and resolves it.
func load(t *testing.T, dir, name, content string) *parser.Task {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	logger := quietLogger()
	tasks, errs := parser.New(logger, dir).ParseFiles([]string{path})
	require.Empty(t, errs)
	require.Len(t, tasks, 1)
	require.NoError(t, resolver.New(logger).Resolve(tasks[0]))
	return tasks[0]
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func runOne(t *testing.T, client llm.Client, opts Options, task *parser.Task) Result {
	t.Helper()
	g := New(quietLogger(), client, opts)
	return g.RunTask(context.Background(), logrus.NewEntry(quietLogger()), task)
}

func TestRunTask_PlaceholderLineReplaced(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.txt", "<prompt:A>seed<prompt:A/>\n{A}\n")

	result := runOne(t, newFakeClient(map[string]string{"A": `{"code":"X"}`}), Options{}, task)
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"A"}, result.Applied)
	assert.Equal(t, "<prompt:A>seed<prompt:A/>\nX\n", readFile(t, task.FilePath))
}

func TestRunTask_CodeToModifySeesEarlierOutput(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A>write code<prompt:A/>\n<prompt:D->A>refine it<prompt:D->A/>\n<A>\nold\n<A/>\n"
	task := load(t, dir, "a.go", content)
	require.Equal(t, []string{"A", "D"}, task.ExecutionOrder())

	client := newFakeClient(map[string]string{
		"A": llm.Envelope("new code"),
		"D": llm.Envelope("refined code"),
	})
	result := runOne(t, client, Options{}, task)
	require.NoError(t, result.Err)

	assert.Equal(t, "refine it\n\nCODE_TO_MODIFY:\nnew code", client.prompts["D"])
	assert.NotContains(t, client.prompts["D"], "old")
	assert.Equal(t, "<prompt:A>write code<prompt:A/>\n<prompt:D->A>refine it<prompt:D->A/>\n<A>\nrefined code\n<A/>\n",
		readFile(t, task.FilePath))
}

func TestRunTask_LastWriterWins(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A->X>first<prompt:A/>\n<prompt:B->X>second<prompt:B/>\n<X>\n<X/>\n"
	task := load(t, dir, "x.txt", content)

	client := newFakeClient(map[string]string{"A": llm.Envelope("from A"), "B": llm.Envelope("from B")})
	result := runOne(t, client, Options{}, task)
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"A", "B"}, result.Applied)

	got, err := TagContent(readFile(t, task.FilePath), "X")
	require.NoError(t, err)
	assert.Equal(t, "from B", got)
}

func TestRunTask_OutputTagSubstitutionReadsDisk(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:B>extend {A}<prompt:B/>\n<prompt:A>seed<prompt:A/>\n<A>\nold\n<A/>\n<B>\n<B/>\n"
	task := load(t, dir, "dep.txt", content)
	require.Equal(t, []string{"A", "B"}, task.ExecutionOrder())

	client := newFakeClient(map[string]string{"A": llm.Envelope("alpha")})
	result := runOne(t, client, Options{}, task)
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"A", "B"}, client.calls)
	assert.Equal(t, "extend \n\nA:\nalpha", client.prompts["B"])
}

func TestRunTask_MissingCodeIsNoop(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A>seed<prompt:A/>\n{A}\n"
	task := load(t, dir, "a.txt", content)

	for _, response := range []string{`{"other":1}`, `{"code":"   "}`, `{"code":null}`} {
		result := runOne(t, newFakeClient(map[string]string{"A": response}), Options{}, task)
		require.NoError(t, result.Err, response)
		assert.Empty(t, result.Applied)
		assert.Equal(t, []string{"A"}, result.Skipped)
		assert.Equal(t, content, readFile(t, task.FilePath))
	}
}

func TestRunTask_MalformedResponseAbortsTask(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt:A>a<prompt:A/>\n<prompt:B>b<prompt:B/>\n{A}\n{B}\n"
	task := load(t, dir, "a.txt", content)

	client := newFakeClient(map[string]string{"A": "this is not json"})
	result := runOne(t, client, Options{}, task)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrMalformedResponse)
	assert.Equal(t, []string{"A"}, client.calls)
	assert.Equal(t, content, readFile(t, task.FilePath))
}

func TestRunTask_BackendErrorAbortsTask(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.txt", "<prompt:A>a<prompt:A/>\n{A}\n")

	client := newFakeClient(nil)
	boom := errors.New("rate limited")
	client.failures["A"] = boom
	result := runOne(t, client, Options{}, task)
	assert.ErrorIs(t, result.Err, boom)
}

func TestRunTask_MissingTagAtApplyTime(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.txt", "<prompt:A>a<prompt:A/>\n<A>\nold\n<A/>\n")
	require.NoError(t, os.WriteFile(task.FilePath, []byte("<prompt:A>a<prompt:A/>\n<A>\nold\n"), 0644))

	result := runOne(t, newFakeClient(nil), Options{}, task)
	var missing *MissingTagError
	require.ErrorAs(t, result.Err, &missing)
	assert.Equal(t, "A", missing.Tag)
	assert.Equal(t, "<A/>", missing.Marker)
}

func TestRunTask_NoOutputLocationSkipsPrompt(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.txt", "<prompt:A>a<prompt:A/>\n<prompt:B>b<prompt:B/>\n{A}\n")

	client := newFakeClient(nil)
	result := runOne(t, client, Options{}, task)
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"A"}, client.calls)
	assert.Equal(t, []string{"A"}, result.Applied)
	assert.Equal(t, []string{"B"}, result.Skipped)
}

func TestRunTask_PlaceholderAndTagFromSamePayload(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.txt", "<prompt:A>a<prompt:A/>\n{A}\n<A>\n<A/>\n")

	result := runOne(t, newFakeClient(map[string]string{"A": llm.Envelope("X")}), Options{}, task)
	require.NoError(t, result.Err)
	assert.Equal(t, "<prompt:A>a<prompt:A/>\nX\n<A>\nX\n<A/>\n", readFile(t, task.FilePath))
}

func TestRunTask_DryRunDoesNotCallOrWrite(t *testing.T) {
	dir := t.TempDir()
	content := "<context>Be terse.<context/>\n<prompt:A>a<prompt:A/>\n{A}\n"
	task := load(t, dir, "a.txt", content)

	client := newFakeClient(nil)
	result := runOne(t, client, Options{DryRun: true}, task)
	require.NoError(t, result.Err)
	assert.Zero(t, client.callCount())
	assert.Equal(t, "a\nGLOBAL_CONTEXT:\nBe terse.", result.Prompts["A"])
	assert.Equal(t, content, readFile(t, task.FilePath))
}

func TestRunTask_KeepsFileMode(t *testing.T) {
	dir := t.TempDir()
	task := load(t, dir, "a.sh", "<prompt:A>a<prompt:A/>\n{A}\n")
	require.NoError(t, os.Chmod(task.FilePath, 0600))

	result := runOne(t, newFakeClient(nil), Options{}, task)
	require.NoError(t, result.Err)
	info, err := os.Stat(task.FilePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRun_FailureStaysWithItsFile(t *testing.T) {
	dir := t.TempDir()
	good := load(t, dir, "good.txt", "<prompt:G>g<prompt:G/>\n{G}\n")
	bad := load(t, dir, "bad.txt", "<prompt:B>b<prompt:B/>\n{B}\n")

	client := newFakeClient(nil)
	client.failures["B"] = errors.New("unauthorized")

	results, errs := New(quietLogger(), client, Options{Jobs: 2}).Run(context.Background(), []*parser.Task{good, bad})
	require.Len(t, results, 2)
	assert.Equal(t, []string{"G"}, results[0].Applied)
	assert.Error(t, results[1].Err)

	require.Len(t, errs, 1)
	assert.Equal(t, "bad.txt", errs[0].File)
	assert.Contains(t, errs[0].Message, "unauthorized")
	assert.Equal(t, "<prompt:G>g<prompt:G/>\ngenerated G\n", readFile(t, good.FilePath))
}
