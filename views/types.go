package views

import (
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// MainContentID is the id of the <main> landmark. The skip link targets it.
const MainContentID = "main-content"

// LiveRegionID is the id of the polite live region reserved for announcements.
const LiveRegionID = "accessibility-announcements"

// Document carries everything the layout needs to render the <head> and chrome.
type Document struct {
	Metadata Metadata
	Viewport Viewport
	Font     Font
	Brand    string
	Year     int    // footer copyright year, computed by the caller at render time
	Path     string // request path, used for the canonical link
}

// Page is a routed view rendered inside the layout's <main> slot.
type Page struct {
	Title string // empty means the metadata default title
	Body  templ.Component
}

// Title holds the default title and the template applied to page titles.
type Title struct {
	Default  string
	Template string // "%s" is replaced with the page title
}

// Author names a content author.
type Author struct {
	Name string
	URL  string
}

// FormatDetection controls mobile browsers' automatic linking.
type FormatDetection struct {
	Email     bool
	Address   bool
	Telephone bool
}

// OGImage is an Open Graph image entry.
type OGImage struct {
	URL    string
	Width  int
	Height int
	Alt    string
}

// OpenGraph carries og:* tags.
type OpenGraph struct {
	Type        string
	Locale      string
	URL         string
	Title       string
	Description string
	SiteName    string
	Images      []OGImage
}

// Twitter carries twitter:* card tags.
type Twitter struct {
	Card        string
	Title       string
	Description string
	Images      []string
	Creator     string
}

// GoogleBot holds crawler directives specific to googlebot.
type GoogleBot struct {
	Index           bool
	Follow          bool
	MaxVideoPreview int    // -1 means unrestricted
	MaxImagePreview string // none, standard or large
	MaxSnippet      int    // -1 means unrestricted
}

// Robots holds robots meta directives.
type Robots struct {
	Index     bool
	Follow    bool
	GoogleBot GoogleBot
}

// Verification holds site ownership tokens.
type Verification struct {
	Google string
}

// Metadata is the immutable document metadata record built once at startup.
type Metadata struct {
	Title           Title
	Description     string
	Keywords        []string
	Authors         []Author
	Creator         string
	Publisher       string
	FormatDetection FormatDetection
	Base            *url.URL // metadata base for relative URLs
	OpenGraph       OpenGraph
	Twitter         Twitter
	Robots          Robots
	Verification    Verification
}

// ResolveTitle returns the document title for a page title.
func (m Metadata) ResolveTitle(page string) string {
	if page == "" {
		return m.Title.Default
	}
	if m.Title.Template == "" {
		return page
	}
	return strings.ReplaceAll(m.Title.Template, "%s", page)
}

// Resolve resolves ref against the metadata base. Absolute refs are returned
// unchanged; with no base, ref is returned as is.
func (m Metadata) Resolve(ref string) string {
	if m.Base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return m.Base.ResolveReference(u).String()
}

// ThemeColor pairs a media query with a theme color.
type ThemeColor struct {
	Media string
	Color string
}

// Viewport is the immutable viewport record.
type Viewport struct {
	Width        string
	InitialScale float64
	MaximumScale float64
	UserScalable bool
	ThemeColors  []ThemeColor
}

// Font describes the web font declared in the document head.
type Font struct {
	Family   string
	Subsets  []string
	Display  string
	Variable string // CSS custom property exposed on <html>, e.g. "--font-inter"
}
