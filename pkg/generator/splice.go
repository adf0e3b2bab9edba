package generator

import (
	"fmt"
	"os"
	"strings"

	"github.com/grovetools/contextlang/pkg/directive"
)

// MissingTagError is returned when an output tag marker cannot be found in
// the file at apply time.
type MissingTagError struct {
	Tag    string
	Marker string
}

func (e *MissingTagError) Error() string {
	return fmt.Sprintf("missing tag: marker '%s' of output tag '%s' not found in file", e.Marker, e.Tag)
}

// MarkerOrderError is returned when the first closing marker of a tag comes
// before its first opening marker.
type MarkerOrderError struct {
	Tag string
}

func (e *MarkerOrderError) Error() string {
	return fmt.Sprintf("closing marker '%s' appears before opening marker '%s'",
		directive.ClosingMarker(e.Tag), directive.OpeningMarker(e.Tag))
}

// splitLines splits content into lines that keep their line endings.
func splitLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineEnding returns "\r\n" for a CRLF-terminated line and "\n" otherwise.
func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// blockLines turns a payload into lines terminated by eol.
func blockLines(code, eol string) []string {
	parts := strings.Split(code, "\n")
	for i := range parts {
		parts[i] = strings.TrimSuffix(parts[i], "\r") + eol
	}
	return parts
}

func firstLineContaining(lines []string, marker string) int {
	for i, line := range lines {
		if strings.Contains(line, marker) {
			return i
		}
	}
	return -1
}

// tagRegion locates the first opening marker line of a tag and the closing
// marker line that ends its region. A closing marker on an earlier line is an
// inversion. On the opening line only a closing marker after the opening one
// counts; otherwise the region ends at the next line holding a closing marker.
func tagRegion(lines []string, tag string) (start, end int, err error) {
	open, close := directive.OpeningMarker(tag), directive.ClosingMarker(tag)
	start = firstLineContaining(lines, open)
	if start < 0 {
		return 0, 0, &MissingTagError{Tag: tag, Marker: open}
	}
	end = firstLineContaining(lines, close)
	if end < 0 {
		return 0, 0, &MissingTagError{Tag: tag, Marker: close}
	}
	if end < start {
		return 0, 0, &MarkerOrderError{Tag: tag}
	}
	if end > start {
		return start, end, nil
	}

	line := lines[start]
	if after := strings.Index(line, open) + len(open); strings.Contains(line[after:], close) {
		return start, start, nil
	}
	if next := firstLineContaining(lines[start+1:], close); next >= 0 {
		return start, start + 1 + next, nil
	}
	return 0, 0, &MarkerOrderError{Tag: tag}
}

// TagContent returns the current text of an output tag region without the
// surrounding blank lines. CRLF line endings are returned as "\n".
func TagContent(content, tag string) (string, error) {
	lines := splitLines(content)
	start, end, err := tagRegion(lines, tag)
	if err != nil {
		return "", err
	}
	if start == end {
		line := lines[start]
		open := directive.OpeningMarker(tag)
		from := strings.Index(line, open) + len(open)
		to := from + strings.Index(line[from:], directive.ClosingMarker(tag))
		return strings.TrimSpace(line[from:to]), nil
	}
	body := strings.ReplaceAll(strings.Join(lines[start+1:end], ""), "\r\n", "\n")
	return strings.Trim(body, "\n"), nil
}

// ReplaceTag replaces every line strictly between the tag's opening and
// closing marker lines with code. Markers sharing one line are split onto
// separate lines first; text around them on that line is kept. Inserted
// lines use the line ending of the opening marker line.
func ReplaceTag(content, tag, code string) (string, error) {
	lines := splitLines(content)
	start, end, err := tagRegion(lines, tag)
	if err != nil {
		return "", err
	}

	var updated []string
	updated = append(updated, lines[:start]...)
	if start == end {
		line := lines[start]
		open := directive.OpeningMarker(tag)
		from := strings.Index(line, open) + len(open)
		to := from + strings.Index(line[from:], directive.ClosingMarker(tag))
		eol := lineEnding(line)
		updated = append(updated, line[:from]+eol)
		updated = append(updated, blockLines(code, eol)...)
		updated = append(updated, line[to:])
	} else {
		updated = append(updated, lines[start])
		updated = append(updated, blockLines(code, lineEnding(lines[start]))...)
		updated = append(updated, lines[end])
	}
	updated = append(updated, lines[end+1:]...)
	return strings.Join(updated, ""), nil
}

// ReplacePlaceholder replaces every whole line containing {name} with code,
// keeping that line's line ending. It reports whether any line matched.
func ReplacePlaceholder(content, name, code string) (string, bool) {
	token := directive.Token(name)
	lines := splitLines(content)
	found := false
	for i, line := range lines {
		if strings.Contains(line, token) {
			lines[i] = strings.Join(blockLines(code, lineEnding(line)), "")
			found = true
		}
	}
	return strings.Join(lines, ""), found
}

// writeFile rewrites path in full, keeping its permission bits.
func writeFile(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
