package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotRendersMarkdown(t *testing.T) {
	r := New()
	out := r.Bot("**Gold loan** rates:\n\n- 12% p.a.\n- 18% p.a.")

	assert.Contains(t, out, "<strong>Gold loan</strong>")
	assert.Contains(t, out, "<li>12% p.a.</li>")
}

func TestBotSanitizesScripts(t *testing.T) {
	r := New()
	out := r.Bot("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>")

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}

func TestBotWithoutSanitizerStripsScripts(t *testing.T) {
	r := New(WithSanitizer(nil))
	out := r.Bot("hi\n\n<script type=\"text/javascript\">steal()</script>\n\nbye")

	assert.NotContains(t, out, "steal()")
	assert.Contains(t, out, "bye")
}

func TestUserTextIsEscaped(t *testing.T) {
	r := New()
	out := r.User("<b>bold</b> & **not markdown**")

	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt; &amp; **not markdown**", out)
}

type panicSanitizer struct{}

func (panicSanitizer) Sanitize(string) string { panic("boom") }

func TestBotRecoversFromRenderingPanic(t *testing.T) {
	r := New(WithSanitizer(panicSanitizer{}))
	out := r.Bot("a < b")

	assert.Equal(t, "a &lt; b", out)
}

func TestStripScriptsIsCaseInsensitive(t *testing.T) {
	out := StripScripts("<p>ok</p><SCRIPT>x()</SCRIPT>")
	assert.False(t, strings.Contains(strings.ToLower(out), "script"))
	assert.Contains(t, out, "<p>ok</p>")
}
