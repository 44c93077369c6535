package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// WelcomeText is the home page heading.
const WelcomeText = "Welcome to the Dipan Nama AI world. Let's build the world's most powerful AI"

// Home is the root page: one full-viewport centered heading.
func Home() Page {
	return Page{Body: centered(WelcomeText, "")}
}

// NotFound is rendered for unknown routes.
func NotFound() Page {
	return Page{
		Title: "Not Found",
		Body:  centered("Page not found", "The page you are looking for does not exist."),
	}
}

// ServerError is rendered when a handler fails.
func ServerError() Page {
	return Page{
		Title: "Server Error",
		Body:  centered("Something went wrong", "Please try again in a moment."),
	}
}

func centered(heading, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{w: w}
		m.raw(`<div class="hero min-h-screen flex items-center justify-center">`)
		m.raw(`<h1 class="hero-title">`)
		m.text(heading)
		m.raw(`</h1>`)
		if detail != "" {
			m.raw(`<p class="hero-detail">`)
			m.text(detail)
			m.raw(`</p>`)
		}
		m.raw(`</div>`)
		return m.err
	})
}
