// Package format turns raw answer text from the AI service into sanitised
// HTML. The text first runs through an ordered list of rewrite rules that
// recover markdown structure (headings, bullets, paragraphs), then it is
// rendered with GitHub-flavoured markdown where a single newline is a line
// break.
package format

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/mohammad-safakhou/gemsearch/models"
)

// Formatter is safe for concurrent use.
type Formatter struct {
	rules  []Rule
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithRules replaces the default rewrite rules.
func WithRules(rules ...Rule) Option {
	return func(f *Formatter) {
		f.rules = rules
	}
}

// WithMarkdown replaces the goldmark instance used to render normalised text.
func WithMarkdown(md goldmark.Markdown) Option {
	return func(f *Formatter) {
		if md != nil {
			f.md = md
		}
	}
}

// WithPolicy replaces the HTML sanitisation policy applied after rendering.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(f *Formatter) {
		if p != nil {
			f.policy = p
		}
	}
}

// New builds a Formatter with DefaultRules and the answer sanitisation policy.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		rules: DefaultRules(),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithUnsafe(),
			),
		),
		policy: AnswerPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Normalize applies the rewrite rules in order and returns markdown.
func (f *Formatter) Normalize(text string) string {
	for _, r := range f.rules {
		text = r.Apply(text)
	}
	return text
}

// Format normalises text and renders it to sanitised HTML.
func (f *Formatter) Format(text string) (string, error) {
	src := f.Normalize(text)
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(src), &buf); err != nil {
		return "", &models.FormattingError{Message: "failed to render answer", Err: err}
	}
	return strings.TrimSpace(f.policy.SanitizeReader(&buf).String()), nil
}
