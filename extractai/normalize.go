// CLAUDE:SUMMARY HTML normalization: sanitize, title extraction, markdown conversion for AI prompts.
package extractai

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// maxPromptChars caps the text handed to the collaborator.
const maxPromptChars = 30000

// Normalizer converts rendered pages into collaborator-ready markdown:
// scripts and trackers stripped, layout flattened, length capped. Promo
// tables survive conversion, which matters for flyer price grids.
type Normalizer struct {
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Markdown sanitizes raw HTML and converts it to markdown. sourceURL
// resolves relative links.
func (n *Normalizer) Markdown(rawHTML, sourceURL string) (string, error) {
	clean := n.policy.Sanitize(rawHTML)
	md, err := n.mdConverter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return "", err
	}
	md = strings.TrimSpace(md)
	if len(md) > maxPromptChars {
		md = md[:maxPromptChars]
	}
	return md, nil
}

// PageTitle pulls the <title> text out of raw HTML. Empty when absent or
// unparseable.
func PageTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
