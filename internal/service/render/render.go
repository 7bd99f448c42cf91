// Package render turns transcript text into HTML that is safe to insert into
// the widget.
package render

import (
	"html"
	"regexp"
	"sync"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

var scriptTag = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)

// Sanitizer cleans untrusted HTML.
type Sanitizer interface {
	Sanitize(s string) string
}

// Renderer renders bot replies as Markdown and user input as literal text.
type Renderer struct {
	sanitizer Sanitizer
	logger    zerolog.Logger
	warnOnce  sync.Once
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSanitizer replaces the default bluemonday UGC policy. Passing nil
// disables sanitization and falls back to stripping script tags.
func WithSanitizer(s Sanitizer) Option {
	return func(r *Renderer) {
		r.sanitizer = s
	}
}

// WithLogger sets the logger used for rendering warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New returns a Renderer using bluemonday's UGC policy.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		sanitizer: bluemonday.UGCPolicy(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// User escapes text so it is never interpreted as markup.
func (r *Renderer) User(text string) string {
	return html.EscapeString(text)
}

// Bot converts Markdown to sanitized HTML. A rendering failure degrades to
// escaped text.
func (r *Renderer) Bot(text string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("markdown rendering failed, using plain text")
			out = html.EscapeString(text)
		}
	}()

	raw := string(markdownToHTML([]byte(text)))
	if r.sanitizer == nil {
		r.warnOnce.Do(func() {
			r.logger.Warn().Msg("no HTML sanitizer configured, only stripping script tags")
		})
		return StripScripts(raw)
	}
	return r.sanitizer.Sanitize(raw)
}

// StripScripts removes <script> elements. It is a last-resort fallback and
// much weaker than a real sanitizer.
func StripScripts(s string) string {
	return scriptTag.ReplaceAllString(s, "")
}

func markdownToHTML(md []byte) []byte {
	// parsers keep state and cannot be reused between documents
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse(md)

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}
