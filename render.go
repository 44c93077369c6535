package singularity

import (
	"bytes"
	"context"
	"net/http"
	"regexp"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/json"

	"github.com/dipannama/singularity/views"
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFuncRegexp(regexp.MustCompile("[/+]json$"), json.Minify)
	return m
}

// Render writes a templ component as an HTTP 200 HTML response.
func (a *App) Render(c echo.Context, cmp templ.Component) error {
	return a.RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
// The component is rendered into a buffer first so that strict-mode checks
// and minification see the complete document.
func (a *App) RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	ctx := c.Request().Context()
	var buf bytes.Buffer
	if err := cmp.Render(ctx, &buf); err != nil {
		return err
	}
	if a.strictChecks() {
		a.checkDeterministic(ctx, c.Request().URL.Path, cmp, buf.Bytes())
	}

	body := buf.Bytes()
	if a.Build.SWCMinify {
		out, err := a.minifier.Bytes("text/html", body)
		if err != nil {
			a.Logger.Warn().Err(err).Str("path", c.Request().URL.Path).Msg("minify failed, serving unminified html")
		} else {
			body = out
		}
	}
	return c.HTMLBlob(code, body)
}

// renderPage renders page in the document shell selected by the build config.
func (a *App) renderPage(c echo.Context, code int, name string, page views.Page) error {
	a.metrics.pageRenders.WithLabelValues(name).Inc()
	return a.RenderStatus(c, code, a.compose(a.document(c.Request().URL.Path), page))
}

func (a *App) compose(doc views.Document, page views.Page) templ.Component {
	if a.Build.Experimental.AppDir {
		return views.Layout(doc, page)
	}
	return views.Bare(doc, page)
}

// document returns the per-request document record. The footer year is
// taken from the clock on every call.
func (a *App) document(path string) views.Document {
	doc := a.Document
	doc.Year = a.Config.Now().Year()
	doc.Path = path
	return doc
}

func (a *App) strictChecks() bool {
	return a.Build.ReactStrictMode && a.Config.Development()
}

// checkDeterministic renders cmp a second time and logs when the output
// differs from first.
func (a *App) checkDeterministic(ctx context.Context, path string, cmp templ.Component, first []byte) {
	var again bytes.Buffer
	if err := cmp.Render(ctx, &again); err != nil {
		a.Logger.Warn().Err(err).Str("path", path).Msg("strict mode: second render failed")
		a.metrics.strictMismatches.Inc()
		return
	}
	if !bytes.Equal(first, again.Bytes()) {
		a.Logger.Warn().Str("path", path).Msg("strict mode: renders differ")
		a.metrics.strictMismatches.Inc()
	}
}
