package page

import (
	"html"

	"github.com/PuerkitoBio/goquery"
)

// DefaultScriptURL is the Google Publisher Tag library.
const DefaultScriptURL = "https://www.googletagservices.com/tag/js/gpt.js"

// ScriptLoader inserts the GPT library into a document at most once.
type ScriptLoader struct {
	URL string
}

// Loaded reports whether doc already references the library.
func (l ScriptLoader) Loaded(doc *goquery.Document) bool {
	return doc.Find("script[src]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		return src == l.url()
	}).Length() > 0
}

// Ensure inserts the library unless it is already present and reports
// whether it inserted it. The tag goes before the first script on the page,
// otherwise at the end of head, otherwise at the end of body.
func (l ScriptLoader) Ensure(doc *goquery.Document) bool {
	if l.Loaded(doc) {
		return false
	}
	tag := `<script async src="` + html.EscapeString(l.url()) + `"></script>`

	if first := doc.Find("script").First(); first.Length() > 0 {
		first.BeforeHtml(tag)
		return true
	}
	if head := doc.Find("head").First(); head.Length() > 0 {
		head.AppendHtml(tag)
		return true
	}
	doc.Find("body").First().AppendHtml(tag)
	return true
}

func (l ScriptLoader) url() string {
	if l.URL == "" {
		return DefaultScriptURL
	}
	return l.URL
}
