package tracker

import "fmt"

// Markup renders a (label, url) pair in the tracker's active markup flavor.
type Markup interface {
	Link(label, url string) string
}

// MarkdownMarkup renders links for trackers configured with Markdown text
// formatting.
type MarkdownMarkup struct{}

func (MarkdownMarkup) Link(label, url string) string {
	return fmt.Sprintf("[%s](%s)", label, url)
}

// TextileMarkup renders links for trackers configured with Textile text
// formatting.
type TextileMarkup struct{}

func (TextileMarkup) Link(label, url string) string {
	return fmt.Sprintf("\"%s\":%s", label, url)
}

// MarkupFor returns the formatter for a configured flavor name, defaulting to
// Markdown for unknown values.
func MarkupFor(flavor string) Markup {
	if flavor == "textile" {
		return TextileMarkup{}
	}
	return MarkdownMarkup{}
}
