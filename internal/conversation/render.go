package conversation

import (
	"regexp"
	"strings"
)

// Persona text carries two emphasis conventions: *word* for emphasis and
// a trailing "— *attribution*" signature line. Rendering is a two-stage
// pure function: structural characters are escaped FIRST, then a fixed
// ordered rule list rewrites the escaped text. Escaping after rewriting
// would strip the generated markup; rewriting before escaping would let
// injected markup through. Within the list, the signature rule runs
// before the emphasis rule or its asterisks would already be consumed.

// Rule is one pattern rewrite applied to already-escaped text.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

var htmlRules = []Rule{
	{Pattern: regexp.MustCompile(`— \*(.*?)\*`), Replace: `<span class="signature">— $1</span>`},
	{Pattern: regexp.MustCompile(`\*([^*]+)\*`), Replace: `<em>$1</em>`},
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// RenderHTML produces sanitized HTML for one persona message.
func RenderHTML(raw string) string {
	return ApplyRules(htmlEscaper.Replace(raw), htmlRules)
}

// ApplyRules runs an ordered rule list over escaped text. Exposed so
// other output formats (the terminal view) can reuse the same rewrite
// engine with their own rule set.
func ApplyRules(escaped string, rules []Rule) string {
	out := escaped
	for _, r := range rules {
		out = r.Pattern.ReplaceAllString(out, r.Replace)
	}
	return out
}
