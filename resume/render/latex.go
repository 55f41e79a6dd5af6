package render

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"resume-workflow/resume/model"
)

// ErrInvalidDraft is returned when a draft cannot be typeset.
var ErrInvalidDraft = errors.New("invalid draft")

// Document is the typeset output of one render pass.
type Document struct {
	Source         string
	Considerations string
}

//go:embed templates/resume.tex.tmpl
var latexTemplate string

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`^`, `\textasciicircum{}`,
	`~`, `\textasciitilde{}`,
)

// EscapeLatex escapes LaTeX special characters in a single pass.
func EscapeLatex(s string) string {
	return latexEscaper.Replace(s)
}

// LatexRenderer renders drafts to a standalone LaTeX source.
type LatexRenderer struct {
	tmpl *template.Template
}

// NewLatexRenderer parses the embedded document template.
func NewLatexRenderer() (*LatexRenderer, error) {
	tmpl, err := template.New("resume").
		Delims("[[", "]]").
		Funcs(template.FuncMap{
			"esc":     EscapeLatex,
			"join":    joinEscaped,
			"url":     escapeURL,
			"dates":   dateRange,
			"contact": contactLine,
		}).
		Parse(latexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse latex template: %w", err)
	}
	return &LatexRenderer{tmpl: tmpl}, nil
}

type templateData struct {
	Draft  model.DraftResume
	Labels Labels
}

// Render typesets draft using the labels for language.
func (r *LatexRenderer) Render(draft model.DraftResume, language string) (Document, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return Document{}, fmt.Errorf("%w: name is required", ErrInvalidDraft)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, templateData{Draft: draft, Labels: LabelsFor(language)}); err != nil {
		return Document{}, fmt.Errorf("execute latex template: %w", err)
	}
	return Document{
		Source:         buf.String(),
		Considerations: draft.Considerations,
	}, nil
}

func joinEscaped(items []string) string {
	escaped := make([]string, 0, len(items))
	for _, item := range items {
		escaped = append(escaped, EscapeLatex(item))
	}
	return strings.Join(escaped, ", ")
}

// escapeURL keeps a URL usable inside \href while neutralising characters
// that would break the argument.
func escapeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u != "" && !strings.Contains(u, "://") && !strings.HasPrefix(u, "mailto:") {
		u = "https://" + u
	}
	return strings.NewReplacer(`\`, "", `{`, "%7B", `}`, "%7D", `%`, `\%`, `#`, `\#`).Replace(u)
}

func dateRange(start, end string) string {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if end == "" {
		return EscapeLatex(start)
	}
	if start == "" {
		return EscapeLatex(end)
	}
	return EscapeLatex(start + " - " + end)
}

func contactLine(d model.DraftResume) string {
	parts := make([]string, 0, 4)
	if email := strings.TrimSpace(d.Email); email != "" {
		parts = append(parts, fmt.Sprintf(`Email: \href{%s}{%s}`, escapeURL("mailto:"+email), EscapeLatex(email)))
	}
	if phone := strings.TrimSpace(d.Phone); phone != "" {
		parts = append(parts, EscapeLatex(phone))
	}
	for _, link := range []string{d.LinkedIn, d.GitHub} {
		if link = strings.TrimSpace(link); link != "" {
			parts = append(parts, fmt.Sprintf(`\href{%s}{%s}`, escapeURL(link), EscapeLatex(link)))
		}
	}
	return strings.Join(parts, ` {\textbullet} `)
}
