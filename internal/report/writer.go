package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer renders a Report.
type Writer interface {
	Write(r *Report) (int, error)
}

// Output formats accepted by NewWriter.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to several Writers in order and stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders r with every writer and returns the total bytes written.
func (m *MultiWriter) Write(r *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// heading turns a wire identifier such as "auto_bookmark" or "tabClose"
// into a display heading.
func heading(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// truncate shortens s to at most maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
