// Package directive recognizes the tag language embedded in source files.
//
// A directive is an opening marker, a body and a closing marker. Closing markers
// are written <kind/> or <kind:NAME/>, they are not XML closing tags:
//
//	<context>global text<context/>
//	<import>path/to/vars.txt<import/>
//	<import:NAME>path/to/vars.txt<import:NAME/>
//	<file:NAME>path/to/file.go<file:NAME/>
//	<context:NAME>value<context:NAME/>
//	<prompt:NAME>template<prompt:NAME/>
//	<prompt:NAME->TARGET>template<prompt:NAME/>
//	<NAME>generated region<NAME/>
package directive

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind identifies the directive a marker pair belongs to.
type Kind int

const (
	KindGlobal Kind = iota
	KindImport
	KindNamedImport
	KindFileImport
	KindContext
	KindPrompt
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "Global"
	case KindImport:
		return "Import_Context_Variables"
	case KindNamedImport:
		return "Import_Specific_Context_Variable"
	case KindFileImport:
		return "Import_File_Context_Variables"
	case KindContext:
		return "Context_Variables"
	case KindPrompt:
		return "Prompts"
	case KindOutput:
		return "Prompt_Output_Tags"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TargetSeparator splits a prompt name from the output tag it writes into.
const TargetSeparator = "->"

// Reserved tag words. They never name an output tag.
const (
	WordContext = "context"
	WordImport  = "import"
	WordFile    = "file"
	WordPrompt  = "prompt"
)

var reservedWords = map[string]bool{
	WordContext: true,
	WordImport:  true,
	WordFile:    true,
	WordPrompt:  true,
}

// IsReserved reports whether word is one of the directive kind words.
func IsReserved(word string) bool {
	return reservedWords[word]
}

// ErrUnrecognizedPrefix is wrapped by PrefixError.
var ErrUnrecognizedPrefix = errors.New("unrecognized tag prefix")

// PrefixError is returned when a <word: marker uses a word outside the
// supported prefixes. It aborts extraction for the whole file.
type PrefixError struct {
	Prefix string
	Line   int
}

func (e *PrefixError) Error() string {
	return fmt.Sprintf("unrecognized tag prefix '%s:' on line %d. Supported prefixes are: context, prompt, import, file", e.Prefix, e.Line)
}

func (e *PrefixError) Unwrap() error {
	return ErrUnrecognizedPrefix
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Placeholders returns the names referenced as {Name} in text, in order of
// first appearance and without duplicates.
func Placeholders(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Token returns the literal {name} placeholder token.
func Token(name string) string {
	return "{" + name + "}"
}

// OpeningMarker returns the opening marker of an output tag.
func OpeningMarker(name string) string {
	return "<" + name + ">"
}

// ClosingMarker returns the closing marker of an output tag.
func ClosingMarker(name string) string {
	return "<" + name + "/>"
}

// IsIdentifier reports whether s matches [A-Za-z0-9_]+.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
