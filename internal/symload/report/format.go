package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/symload/internal/symload/loader"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (text, json, yaml)", s)
	}
}

// Formatter renders a report.
type Formatter interface {
	Format(r Report) (string, error)
}

// NewFormatter creates a formatter for the given format. Color only
// affects text output.
func NewFormatter(format OutputFormat, color bool) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TextFormatter{Color: color}
	}
}

var (
	loadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)

// TextFormatter formats output as human-readable text.
type TextFormatter struct {
	Color bool
	// Verbose also lists loaded files.
	Verbose bool
}

func (f *TextFormatter) paint(s lipgloss.Style, text string) string {
	if !f.Color {
		return text
	}
	return s.Render(text)
}

// Format implements Formatter.
func (f *TextFormatter) Format(r Report) (string, error) {
	var buf strings.Builder

	for _, rec := range r.Records {
		switch rec.Outcome {
		case loader.OutcomeLoaded:
			if f.Verbose {
				buf.WriteString(f.paint(loadedStyle, rec.String()))
				buf.WriteByte('\n')
			}
		case loader.OutcomeSkipped:
			buf.WriteString(f.paint(skipStyle, rec.String()))
			buf.WriteByte('\n')
		default:
			buf.WriteString(f.paint(failedStyle, rec.String()))
			buf.WriteByte('\n')
		}
	}
	for _, msg := range r.messages {
		buf.WriteString(f.paint(failedStyle, msg))
		buf.WriteByte('\n')
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}

	s := r.Summary
	fmt.Fprintf(&buf, "Candidates: %s  Loaded: %s  Skipped: %s  Failed: %s\n",
		f.paint(countStyle, fmt.Sprint(s.Total)),
		f.paint(countStyle, fmt.Sprint(s.Loaded)),
		f.paint(countStyle, fmt.Sprint(s.Skipped)),
		f.paint(countStyle, fmt.Sprint(s.Failed)),
	)
	buf.WriteString(f.headline(s))
	buf.WriteByte('\n')
	if s.Interrupted {
		buf.WriteString(f.paint(failedStyle, "Interrupted: remaining candidates were not processed."))
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func (f *TextFormatter) headline(s Summary) string {
	root := f.paint(pathStyle, fmt.Sprintf("'%s'", s.Root))
	switch {
	case s.Loaded == 1:
		return fmt.Sprintf("Total loaded %s symbol file.", f.paint(countStyle, "1"))
	case s.Loaded > 1:
		return fmt.Sprintf("Total loaded %s symbol files.", f.paint(countStyle, fmt.Sprint(s.Loaded)))
	case s.Skipped > 0 && s.Failed == 0:
		return fmt.Sprintf("All symbol files in %s have already been loaded.", root)
	default:
		return fmt.Sprintf("No symbol files were loaded from: %s", root)
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(r Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data) + "\n", nil
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// Format implements Formatter.
func (f *YAMLFormatter) Format(r Report) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}
