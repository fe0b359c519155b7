package format

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	answerPolicyOnce sync.Once
	answerPolicy     *bluemonday.Policy

	plainPolicyOnce sync.Once
	plainPolicy     *bluemonday.Policy
)

// AnswerPolicy keeps the markup a rendered answer can contain (headings,
// lists, emphasis, tables, code, links) and drops scripts, event handlers and
// non-http link schemes the upstream text may have smuggled in.
func AnswerPolicy() *bluemonday.Policy {
	answerPolicyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowURLSchemes("http", "https", "mailto")
		p.RequireParseableURLs(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		answerPolicy = p
	})
	return answerPolicy
}

// PlainText strips every tag from rendered HTML and decodes entities, for
// terminal output.
func PlainText(rendered string) string {
	plainPolicyOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(rendered)))
}
