package format

import (
	"regexp"
	"strings"
)

// Rule is one named rewrite applied to the whole answer text.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	// "Label:" at line start, optionally followed by spaces and the rest of the line.
	labelLineRe = regexp.MustCompile(`(?m)^([A-Za-z][A-Za-z \t]+):([ \t]*)(.*)$`)
	// "Label:" at line start glued to the following text.
	inlineLabelRe = regexp.MustCompile(`(?m)^([A-Za-z][A-Za-z \t]+):(\S.*)$`)
	bulletRe      = regexp.MustCompile(`(?m)^[•●○][ \t]*`)
)

// DefaultRules returns the normalisation pipeline in the order it must run.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "crlf", Apply: normalizeLineEndings},
		{Name: "label-heading", Apply: promoteLabelHeadings},
		{Name: "inline-label-heading", Apply: promoteInlineLabels},
		{Name: "bullets", Apply: normalizeBullets},
		{Name: "paragraphs", Apply: separateParagraphs},
	}
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func promoteLabelHeadings(s string) string {
	return labelLineRe.ReplaceAllStringFunc(s, func(line string) string {
		m := labelLineRe.FindStringSubmatch(line)
		if m[2] == "" && keepGlued(m[3]) {
			return line
		}
		return heading("##", m[1], m[3])
	})
}

func promoteInlineLabels(s string) string {
	return inlineLabelRe.ReplaceAllStringFunc(s, func(line string) string {
		m := inlineLabelRe.FindStringSubmatch(line)
		if keepGlued(m[2]) {
			return line
		}
		return heading("###", m[1], m[2])
	})
}

// keepGlued reports whether text directly after a colon marks a time, ratio
// or URL scheme ("Time:3:00", "https://...") rather than a label.
func keepGlued(rest string) bool {
	if rest == "" {
		return false
	}
	c := rest[0]
	return (c >= '0' && c <= '9') || c == '/'
}

func heading(marker, label, rest string) string {
	h := marker + " " + strings.TrimRight(label, " \t")
	if rest = strings.TrimSpace(rest); rest != "" {
		h += "\n" + rest
	}
	return h
}

func normalizeBullets(s string) string {
	return bulletRe.ReplaceAllString(s, "* ")
}

// separateParagraphs drops empty paragraphs and gives plain-text ones a
// trailing newline so the renderer never merges them into a neighbour.
func separateParagraphs(s string) string {
	parts := strings.Split(s, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "#") || strings.HasPrefix(p, "*") || strings.HasPrefix(p, "-") {
			out = append(out, p)
			continue
		}
		out = append(out, p+"\n")
	}
	return strings.Join(out, "\n\n")
}
