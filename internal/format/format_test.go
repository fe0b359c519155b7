package format

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"

	"github.com/mohammad-safakhou/gemsearch/models"
)

type brokenRenderer struct{}

func (brokenRenderer) Render(io.Writer, []byte, ast.Node) error { return errors.New("render failed") }
func (brokenRenderer) AddOptions(...renderer.Option) {}

func ruleByName(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range DefaultRules() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("rule %q not found", name)
	return Rule{}
}

func TestDefaultRulesOrder(t *testing.T) {
	var names []string
	for _, r := range DefaultRules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"crlf", "label-heading", "inline-label-heading", "bullets", "paragraphs"}, names)
}

func TestRuleCRLF(t *testing.T) {
	r := ruleByName(t, "crlf")
	assert.Equal(t, "a\nb\n\nc", r.Apply("a\r\nb\r\n\r\nc"))
}

func TestRuleLabelHeading(t *testing.T) {
	r := ruleByName(t, "label-heading")
	cases := map[string]string{
		"Status: Done":              "## Status\nDone",
		"Summary:":                  "## Summary",
		"Key Points:   ":            "## Key Points",
		"intro\nWeather Today: Sun": "intro\n## Weather Today\nSun",
		"Time:3:00":                 "Time:3:00",
		"no label here":             "no label here",
		"  Indented: x":             "  Indented: x",
		"A: single letter":          "A: single letter",
		"Status:Done":               "## Status\nDone",
		"Note:see below":            "## Note\nsee below",
		"https://a.example/path":    "https://a.example/path",
		"Ratio of things:2 to 1":    "Ratio of things:2 to 1",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Apply(in), "input %q", in)
	}
}

func TestRuleInlineLabelHeading(t *testing.T) {
	r := ruleByName(t, "inline-label-heading")
	cases := map[string]string{
		"Note:see below":         "### Note\nsee below",
		"Time:3:00":              "Time:3:00",
		"https://a.example/path": "https://a.example/path",
		"plain line\nTip:drink":  "plain line\n### Tip\ndrink",
		"Status: already spaced": "Status: already spaced",
		"Ratio of things:2 to 1": "Ratio of things:2 to 1",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Apply(in), "input %q", in)
	}
}

func TestLabelHeadingLeavesNothingForInlineRule(t *testing.T) {
	f := New(WithRules(ruleByName(t, "label-heading"), ruleByName(t, "inline-label-heading")))
	cases := map[string]string{
		"Status:Done":    "## Status\nDone",
		"Tip:drink more": "## Tip\ndrink more",
		"Time:3:00":      "Time:3:00",
		"https://a.b/c":  "https://a.b/c",
	}
	for in, want := range cases {
		assert.Equal(t, want, f.Normalize(in), "input %q", in)
	}
}

func TestRuleBullets(t *testing.T) {
	r := ruleByName(t, "bullets")
	assert.Equal(t, "* item", r.Apply("• item"))
	assert.Equal(t, "* one\n* two\n* three", r.Apply("●one\n○  two\n• three"))
	assert.Equal(t, "a • b", r.Apply("a • b"))
}

func TestRuleParagraphs(t *testing.T) {
	r := ruleByName(t, "paragraphs")
	in := "first para\n\n\n\n## Heading\n\n* item\n\n- dash\n\nlast"
	want := "first para\n\n\n## Heading\n\n* item\n\n- dash\n\nlast\n"
	assert.Equal(t, want, r.Apply(in))
}

func TestNormalizeStatusLine(t *testing.T) {
	f := New()
	got := f.Normalize("Status: Done\n• item")
	assert.True(t, strings.HasPrefix(got, "## Status"), got)
	assert.Contains(t, got, "* item")
}

func TestNormalizeWithoutLabelsOnlySplitsParagraphs(t *testing.T) {
	f := New()
	in := "The sky is blue.\n\nWater is wet."
	assert.Equal(t, "The sky is blue.\n\n\nWater is wet.\n", f.Normalize(in))
}

func TestFormatRendersHeadingAndParagraph(t *testing.T) {
	f := New()
	got, err := f.Format("Summary: Sunny.")
	require.NoError(t, err)
	assert.Contains(t, got, "<h2>Summary</h2>")
	assert.Contains(t, got, "<p>Sunny.</p>")
}

func TestFormatGluedLabelIsLevelTwoHeading(t *testing.T) {
	f := New()
	for _, in := range []string{"Status:Done", "Status: Done"} {
		got, err := f.Format(in)
		require.NoError(t, err)
		assert.Equal(t, "<h2>Status</h2>\n<p>Done</p>", got, "input %q", in)
	}
}

func TestFormatRendersBulletList(t *testing.T) {
	f := New()
	got, err := f.Format("• alpha\n• beta")
	require.NoError(t, err)
	assert.Contains(t, got, "<ul>")
	assert.Contains(t, got, "<li>alpha</li>")
	assert.Contains(t, got, "<li>beta</li>")
}

func TestFormatPlainTextHasNoHeadings(t *testing.T) {
	f := New()
	got, err := f.Format("The sky is blue.\n\nWater is wet.")
	require.NoError(t, err)
	assert.NotContains(t, got, "<h")
	assert.Contains(t, got, "<p>The sky is blue.</p>")
	assert.Contains(t, got, "<p>Water is wet.</p>")
}

func TestFormatSingleNewlineIsLineBreak(t *testing.T) {
	f := New()
	got, err := f.Format("line one\nline two")
	require.NoError(t, err)
	assert.Contains(t, got, "<br")
}

func TestFormatEmptyInput(t *testing.T) {
	f := New()
	got, err := f.Format("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = f.Format("\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestFormatStripsScripts(t *testing.T) {
	f := New()
	got, err := f.Format("Hello <script>alert(1)</script> world")
	require.NoError(t, err)
	assert.NotContains(t, got, "<script")
	assert.Contains(t, got, "Hello")
}

func TestWithRulesOverridesPipeline(t *testing.T) {
	upper := Rule{Name: "upper", Apply: strings.ToUpper}
	f := New(WithRules(upper))
	assert.Equal(t, "STATUS: DONE", f.Normalize("Status: Done"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Summary\nSunny.", PlainText("<h2>Summary</h2>\n<p>Sunny.</p>"))
}

func TestPlainTextDecodesEntities(t *testing.T) {
	assert.Equal(t, "Tom & Jerry's", PlainText("<p>Tom &amp; Jerry&#39;s</p>"))
}

func TestFormatRenderFailure(t *testing.T) {
	f := New(WithMarkdown(goldmark.New(goldmark.WithRenderer(brokenRenderer{}))))
	got, err := f.Format("Summary: Sunny.")

	var fe *models.FormattingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "failed to render answer: render failed", fe.Error())
	assert.Empty(t, got)
}

func TestWithMarkdownIgnoresNil(t *testing.T) {
	f := New(WithMarkdown(nil))
	got, err := f.Format("Summary: Sunny.")
	require.NoError(t, err)
	assert.Contains(t, got, "<h2>Summary</h2>")
}
