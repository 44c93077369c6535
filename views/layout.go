package views

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// StylesheetPath is where the site stylesheet is served.
const StylesheetPath = "/public/globals.css"

// Head renders the <head> element for a document and resolved title.
func Head(doc Document, title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		md := doc.Metadata
		m := &markup{w: w}

		m.raw(`<head><meta charset="utf-8">`)
		m.meta("name", "viewport", doc.Viewport.Content())
		for _, tc := range doc.Viewport.ThemeColors {
			m.raw(`<meta name="theme-color"`)
			m.attr("media", tc.Media)
			m.attr("content", tc.Color)
			m.raw(">")
		}

		m.raw("<title>")
		m.text(title)
		m.raw("</title>")
		if md.Description != "" {
			m.meta("name", "description", md.Description)
		}
		for _, a := range md.Authors {
			if a.URL != "" {
				m.link("author", a.URL)
			}
			m.meta("name", "author", a.Name)
		}
		if len(md.Keywords) > 0 {
			m.meta("name", "keywords", strings.Join(md.Keywords, ","))
		}
		if md.Creator != "" {
			m.meta("name", "creator", md.Creator)
		}
		if md.Publisher != "" {
			m.meta("name", "publisher", md.Publisher)
		}
		m.meta("name", "robots", md.Robots.Content())
		m.meta("name", "googlebot", md.Robots.GoogleBot.Content())
		if md.Verification.Google != "" {
			m.meta("name", "google-site-verification", md.Verification.Google)
		}
		if fd := md.FormatDetection.Content(); fd != "" {
			m.meta("name", "format-detection", fd)
		}
		if doc.Path != "" {
			m.link("canonical", md.Resolve(doc.Path))
		}

		og := md.OpenGraph
		m.meta("property", "og:title", og.Title)
		m.meta("property", "og:description", og.Description)
		if og.URL != "" {
			m.meta("property", "og:url", md.Resolve(og.URL))
		}
		if og.SiteName != "" {
			m.meta("property", "og:site_name", og.SiteName)
		}
		if og.Locale != "" {
			m.meta("property", "og:locale", og.Locale)
		}
		for _, img := range og.Images {
			m.meta("property", "og:image", md.Resolve(img.URL))
			if img.Width > 0 {
				m.meta("property", "og:image:width", strconv.Itoa(img.Width))
			}
			if img.Height > 0 {
				m.meta("property", "og:image:height", strconv.Itoa(img.Height))
			}
			if img.Alt != "" {
				m.meta("property", "og:image:alt", img.Alt)
			}
		}
		m.meta("property", "og:type", og.Type)

		tw := md.Twitter
		m.meta("name", "twitter:card", tw.Card)
		if tw.Creator != "" {
			m.meta("name", "twitter:creator", tw.Creator)
		}
		m.meta("name", "twitter:title", tw.Title)
		m.meta("name", "twitter:description", tw.Description)
		for _, img := range tw.Images {
			m.meta("name", "twitter:image", md.Resolve(img))
		}

		m.link("preconnect", "https://fonts.googleapis.com")
		m.link("preconnect", "https://fonts.gstatic.com", "crossorigin", "")
		m.link("stylesheet", doc.Font.StylesheetURL())
		m.link("stylesheet", StylesheetPath)

		m.link("icon", "/favicon.ico", "sizes", "any")
		m.link("icon", "/favicon.svg", "type", "image/svg+xml")
		m.link("apple-touch-icon", "/apple-touch-icon.png")
		m.link("manifest", "/manifest.json")
		m.meta("name", "msapplication-TileColor", "#000000")
		m.meta("name", "theme-color", "#ffffff")

		m.raw(`<script type="application/ld+json">`)
		m.raw(WebsiteJsonLD(md))
		m.raw("</script></head>")
		return m.err
	})
}

// Layout renders the full document: head, skip link, header, the page inside
// <main>, footer and the live region.
func Layout(doc Document, page Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{w: w}
		openDocument(m, doc)
		if m.err != nil {
			return m.err
		}
		if err := Head(doc, doc.Metadata.ResolveTitle(page.Title)).Render(ctx, w); err != nil {
			return err
		}

		m.raw(`<body class="font-sans antialiased" data-suppress-hydration-warning="true">`)
		m.raw(`<a href="#` + MainContentID + `" class="skip-link">Skip to main content</a>`)
		m.raw(`<div class="flex flex-col min-h-screen">`)
		m.raw(`<header class="site-header"><div class="container"><nav class="site-nav">`)
		m.raw(`<div class="brand"><h1>`)
		m.text(doc.Brand)
		m.raw(`</h1></div><div class="nav-items"></div></nav></div></header>`)
		m.raw(`<main id="` + MainContentID + `" class="flex-1" tabindex="-1">`)
		if m.err != nil {
			return m.err
		}
		if page.Body != nil {
			if err := page.Body.Render(ctx, w); err != nil {
				return err
			}
		}
		m.raw(`</main>`)

		m.raw(`<footer class="site-footer"><div class="container"><div class="footer-inner">`)
		m.raw(`<p class="copyright">© `)
		m.text(strconv.Itoa(doc.Year))
		m.raw(" ")
		m.text(doc.Brand)
		m.raw(`. Built with Go.</p>`)
		m.raw(`<div class="tagline"><span>Made with ❤️ for production</span></div>`)
		m.raw(`</div></div></footer></div>`)

		m.raw(`<div id="` + LiveRegionID + `" aria-live="polite" aria-atomic="true" class="sr-only"></div>`)
		m.raw(`</body></html>`)
		return m.err
	})
}

// Bare renders the head and the page body without the persistent chrome.
func Bare(doc Document, page Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{w: w}
		openDocument(m, doc)
		if m.err != nil {
			return m.err
		}
		if err := Head(doc, doc.Metadata.ResolveTitle(page.Title)).Render(ctx, w); err != nil {
			return err
		}
		m.raw(`<body class="font-sans antialiased" data-suppress-hydration-warning="true">`)
		if m.err != nil {
			return m.err
		}
		if page.Body != nil {
			if err := page.Body.Render(ctx, w); err != nil {
				return err
			}
		}
		m.raw(`</body></html>`)
		return m.err
	})
}

func openDocument(m *markup, doc Document) {
	class := "scroll-smooth"
	if fc := doc.Font.ClassName(); fc != "" {
		class = fc + " " + class
	}
	m.raw("<!doctype html>")
	m.raw(`<html lang="en"`)
	m.attr("class", class)
	m.raw(` data-suppress-hydration-warning="true">`)
}
