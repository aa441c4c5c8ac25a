package distill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	data := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{`"&"`, "&quot;&amp;&quot;"},
		{"<b>", "&lt;b&gt;"},
		{"a  b", "a &nbsp;b"},
		{"a   b", "a &nbsp; b"},
		{"line\nbreak", "line&lt;br/&gt;break"},
		{"café", "caf&#233;"},
		{"日本", "&#26085;&#26412;"},
		{"\u00a0", "&#160;"},
		{"", ""},
	}
	for _, d := range data {
		t.Run(d.in, func(t *testing.T) {
			got := EscapeHTML(d.in)
			assert.Equal(t, d.want, got)
			assert.Equal(t, d.in, UnescapeHTML(got))
		})
	}
}

func TestEscapeHTMLPlainASCIIRoundTrip(t *testing.T) {
	for _, s := range []string{"Holiday 2009", "a-b_c.d", "It's fine!", "x = y + 1"} {
		assert.Equal(t, s, EscapeHTML(s))
		assert.Equal(t, s, EscapeHTML(UnescapeHTML(s)))
	}
}

func TestScriptString(t *testing.T) {
	data := []struct {
		in   string
		want string
	}{
		{"it's", `it\'s`},
		{"two\nlines", "two lines"},
		{"crlf\r\nend", "crlf end"},
		{"<i>'x'</i>", `&lt;i&gt;\'x\'&lt;/i&gt;`},
	}
	for _, d := range data {
		assert.Equal(t, d.want, ScriptString(d.in), "input %q", d.in)
	}
}
