package views

import (
	"io"

	"github.com/a-h/templ"
)

// markup writes HTML to w, remembering the first write error so callers can
// check once at the end.
type markup struct {
	w   io.Writer
	err error
}

func (m *markup) raw(s string) {
	if m.err != nil {
		return
	}
	_, m.err = io.WriteString(m.w, s)
}

func (m *markup) text(s string) {
	m.raw(templ.EscapeString(s))
}

func (m *markup) attr(name, value string) {
	m.raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}

func (m *markup) meta(key, name, content string) {
	m.raw("<meta")
	m.attr(key, name)
	m.attr("content", content)
	m.raw(">")
}

func (m *markup) link(rel, href string, extra ...string) {
	m.raw("<link")
	m.attr("rel", rel)
	m.attr("href", href)
	for i := 0; i+1 < len(extra); i += 2 {
		m.attr(extra[i], extra[i+1])
	}
	m.raw(">")
}
