package aggregator

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Error is one user-facing problem attributed to a file, identified by its
// path relative to the run's base directory.
type Error struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.File + ": " + e.Message
}

// FileErrors groups every error reported for one file.
type FileErrors struct {
	File     string
	Messages []string
}

// Collector accumulates errors from any number of files. It is safe for
// concurrent use.
type Collector struct {
	mu   sync.Mutex
	errs []Error
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{}
}

// Add records err against file. A nil err is ignored. Errors that already
// are an Error or wrap several of them keep their own file attribution.
func (c *Collector) Add(file string, err error) {
	if err == nil {
		return
	}
	var fe Error
	if errors.As(err, &fe) && fe.File != "" {
		c.Append(fe)
		return
	}
	c.Append(Error{File: file, Message: err.Error()})
}

// Addf records a formatted message against file.
func (c *Collector) Addf(file, format string, args ...any) {
	c.Append(Error{File: file, Message: fmt.Sprintf(format, args...)})
}

// Append records already attributed errors.
func (c *Collector) Append(errs ...Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, errs...)
}

// Errors returns a copy of everything recorded so far, in recording order.
func (c *Collector) Errors() []Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Group orders errors by the first time each file was reported.
func Group(errs []Error) []FileErrors {
	var groups []FileErrors
	index := make(map[string]int)
	for _, e := range errs {
		i, ok := index[e.File]
		if !ok {
			i = len(groups)
			index[e.File] = i
			groups = append(groups, FileErrors{File: e.File})
		}
		groups[i].Messages = append(groups[i].Messages, e.Message)
	}
	return groups
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	fileStyle    = lipgloss.NewStyle().Bold(true)
	messageStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Render writes a per-file report. Files without errors are not mentioned and
// nothing is written when errs is empty.
func Render(w io.Writer, errs []Error) error {
	groups := Group(errs)
	if len(groups) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Errors found in %d file(s)", len(groups))))
	b.WriteString("\n")
	for _, g := range groups {
		b.WriteString("\n")
		b.WriteString(fileStyle.Render(fmt.Sprintf("Total errors in %s: %d", g.File, len(g.Messages))))
		b.WriteString("\n")
		for i, msg := range g.Messages {
			b.WriteString(messageStyle.Render(fmt.Sprintf("%d. %s", i+1, msg)))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
