package directive

import (
	"sort"
	"strings"
)

// Directive is one matched marker pair. Body is the raw text between the
// markers, untrimmed. Start and End delimit the whole directive including both
// markers, so content[Start:End] is its literal source span.
type Directive struct {
	Kind   Kind
	Name   string
	Target string
	Spec   string
	Body   string
	Start  int
	End    int
	Line   int
}

type marker struct {
	word    string
	spec    string
	colon   bool
	closing bool
	start   int
	end     int
	line    int
}

func (m marker) key() string {
	if m.colon {
		return m.word + ":" + m.spec
	}
	return m.word
}

// Scan locates every directive in content with a single left-to-right pass
// over the markers. Directives are returned in source order.
//
// Each kind is matched independently of the others: a prompt body that
// contains <context:X>...<context:X/> yields both the prompt and the context
// variable. Within one kind an opening marker that falls inside an earlier
// match of that kind is part of that match's body and is not reopened.
func Scan(content string) ([]Directive, error) {
	markers, err := lex(content)
	if err != nil {
		return nil, err
	}

	closers := make(map[string][]int)
	for _, m := range markers {
		if m.closing {
			closers[m.key()] = append(closers[m.key()], m.start)
		}
	}
	byStart := make(map[int]marker, len(markers))
	for _, m := range markers {
		if m.closing {
			byStart[m.start] = m
		}
	}

	consumed := make(map[Kind]int)
	var directives []Directive
	for _, m := range markers {
		if m.closing {
			continue
		}
		kind, ok := classify(m)
		if !ok {
			continue
		}
		if m.start < consumed[kind] {
			continue
		}

		keys := []string{m.key()}
		name, target := m.spec, ""
		if kind == KindPrompt {
			if i := strings.Index(m.spec, TargetSeparator); i >= 0 {
				name, target = m.spec[:i], m.spec[i+len(TargetSeparator):]
				keys = append(keys, WordPrompt+":"+name)
			}
		}
		if kind == KindOutput {
			name = m.word
		}

		closeStart := -1
		for _, k := range keys {
			if pos := firstAfter(closers[k], m.end); pos >= 0 && (closeStart < 0 || pos < closeStart) {
				closeStart = pos
			}
		}
		if closeStart < 0 {
			continue
		}
		c := byStart[closeStart]

		directives = append(directives, Directive{
			Kind:   kind,
			Name:   name,
			Target: target,
			Spec:   m.spec,
			Body:   content[m.end:c.start],
			Start:  m.start,
			End:    c.end,
			Line:   m.line,
		})
		consumed[kind] = c.end
	}
	return directives, nil
}

func firstAfter(positions []int, offset int) int {
	i := sort.SearchInts(positions, offset)
	if i == len(positions) {
		return -1
	}
	return positions[i]
}

func classify(m marker) (Kind, bool) {
	if m.colon {
		switch m.word {
		case WordContext:
			return KindContext, true
		case WordImport:
			return KindNamedImport, true
		case WordFile:
			return KindFileImport, true
		case WordPrompt:
			return KindPrompt, true
		}
		return 0, false
	}
	switch m.word {
	case WordContext:
		return KindGlobal, true
	case WordImport:
		return KindImport, true
	case WordFile, WordPrompt:
		return 0, false
	}
	return KindOutput, true
}

// lex returns every well-formed opening and closing marker in content.
func lex(content string) ([]marker, error) {
	var markers []marker
	line := 1
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			line++
			continue
		case '<':
		default:
			continue
		}
		m, ok, err := lexMarker(content, i, line)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		markers = append(markers, m)
		i = m.end - 1
	}
	return markers, nil
}

func lexMarker(content string, start, line int) (marker, bool, error) {
	wordEnd := scanIdent(content, start+1)
	if wordEnd == start+1 || wordEnd >= len(content) {
		return marker{}, false, nil
	}
	m := marker{word: content[start+1 : wordEnd], start: start, line: line}

	pos := wordEnd
	if content[pos] == ':' {
		if !IsReserved(m.word) {
			return marker{}, false, &PrefixError{Prefix: m.word, Line: line}
		}
		m.colon = true
		specStart := pos + 1
		pos = scanIdent(content, specStart)
		if m.word == WordPrompt && strings.HasPrefix(content[pos:], TargetSeparator) {
			pos = scanIdent(content, pos+len(TargetSeparator))
		}
		m.spec = content[specStart:pos]
		if m.spec == "" {
			return marker{}, false, nil
		}
	}

	switch {
	case strings.HasPrefix(content[pos:], ">"):
		m.end = pos + 1
	case strings.HasPrefix(content[pos:], "/>"):
		m.closing = true
		m.end = pos + 2
	default:
		return marker{}, false, nil
	}
	return m, true, nil
}

func scanIdent(content string, pos int) int {
	for pos < len(content) && isIdentByte(content[pos]) {
		pos++
	}
	return pos
}
