package conversation

import (
	"regexp"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "drink some water today",
			want: "drink some water today",
		},
		{
			name: "emphasis",
			in:   "you are *stronger* than you think",
			want: "you are <em>stronger</em> than you think",
		},
		{
			name: "signature line",
			in:   "take care\n\n— *Solace is recalling Nadia's words*",
			want: "take care\n\n<span class=\"signature\">— Solace is recalling Nadia's words</span>",
		},
		{
			name: "signature and emphasis together",
			in:   "*beta*, eat something\n\n— *Your Nadia*",
			want: "<em>beta</em>, eat something\n\n<span class=\"signature\">— Your Nadia</span>",
		},
		{
			name: "structural characters escaped",
			in:   "1 < 2 & 3 > 2",
			want: "1 &lt; 2 &amp; 3 &gt; 2",
		},
		{
			name: "injected markup neutralized, emphasis still renders",
			in:   "<script>alert(1)</script> but *bold* stays",
			want: "&lt;script&gt;alert(1)&lt;/script&gt; but <em>bold</em> stays",
		},
		{
			name: "asterisk markup cannot smuggle tags",
			in:   "*<b>*",
			want: "<em>&lt;b&gt;</em>",
		},
		{
			name: "unpaired asterisk untouched",
			in:   "5 * 3 = 15",
			want: "5 * 3 = 15",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderHTML(tt.in); got != tt.want {
				t.Errorf("RenderHTML(%q)\n got %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}

// allowedTags are the only elements the renderer may emit.
var allowedTags = map[string]bool{"em": true, "span": true}

// TestRenderHTMLNeverEmitsForeignTags parses the rendered output and
// walks the resulting tree: whatever the input, only the renderer's own
// elements may appear, and raw input text must survive as text nodes.
func TestRenderHTMLNeverEmitsForeignTags(t *testing.T) {
	inputs := []string{
		"<script>alert('x')</script>",
		"<img src=x onerror=alert(1)>",
		"*<script>alert(1)</script>*",
		"— *<iframe></iframe>*",
		"&lt;already escaped&gt;",
		"<div>*deep*<span onclick=x>click</span></div>",
	}
	for _, in := range inputs {
		out := RenderHTML(in)

		doc, err := html.Parse(strings.NewReader("<html><body>" + out + "</body></html>"))
		if err != nil {
			t.Fatalf("parse %q: %v", out, err)
		}

		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.Data {
				case "html", "head", "body":
				default:
					if !allowedTags[n.Data] {
						t.Errorf("input %q rendered a foreign element <%s>: %q", in, n.Data, out)
					}
					for _, attr := range n.Attr {
						if strings.HasPrefix(attr.Key, "on") {
							t.Errorf("input %q rendered an event handler attribute %q", in, attr.Key)
						}
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
	}
}

func TestApplyRulesRespectsOrder(t *testing.T) {
	// With the emphasis rule first, the signature rule's asterisks are
	// already consumed and it can never fire. The documented order keeps
	// both rules reachable.
	reversed := []Rule{htmlRules[1], htmlRules[0]}

	in := "bye\n\n— *Your Nadia*"
	withOrder := ApplyRules(in, htmlRules)
	withoutOrder := ApplyRules(in, reversed)

	if !strings.Contains(withOrder, `<span class="signature">`) {
		t.Errorf("documented order lost the signature: %q", withOrder)
	}
	if strings.Contains(withoutOrder, `<span class="signature">`) {
		t.Errorf("reversed order unexpectedly produced a signature: %q", withoutOrder)
	}
}

func TestApplyRulesWithCustomRuleSet(t *testing.T) {
	// Other output formats supply their own replacements over the same
	// engine; the terminal view does this with ANSI sequences.
	rules := []Rule{
		{Pattern: regexp.MustCompile(`\*([^*]+)\*`), Replace: "_$1_"},
	}
	if got := ApplyRules("so *proud* of you", rules); got != "so _proud_ of you" {
		t.Errorf("ApplyRules = %q", got)
	}
}
