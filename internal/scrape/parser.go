package scrape

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/pagetrail/internal/model"
)

// feedTypes are the link types treated as feeds.
var feedTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/feed+json": true,
}

// Parser extracts page metadata from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from one document.
type ParseResult struct {
	Title        string
	OGTitle      string
	CanonicalURL string
	Feeds        []model.Feed
	Links        []model.LinkInfo
}

// NewParser creates a new HTML parser with the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content in a single pass.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Feeds: make([]model.Feed, 0),
		Links: make([]model.LinkInfo, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if result.Title == "" {
			result.Title = NormalizeText(textContent(n))
		}

	case "meta":
		if getAttr(n, "property") == "og:title" && result.OGTitle == "" {
			result.OGTitle = strings.TrimSpace(getAttr(n, "content"))
		}

	case "link":
		rels := strings.Fields(strings.ToLower(getAttr(n, "rel")))
		href := getAttr(n, "href")
		for _, rel := range rels {
			switch rel {
			case "canonical":
				if result.CanonicalURL == "" {
					result.CanonicalURL = p.resolveURL(href)
				}
			case "alternate":
				typ := strings.ToLower(getAttr(n, "type"))
				if feedTypes[typ] {
					if resolved := p.resolveURL(href); resolved != "" {
						result.Feeds = append(result.Feeds, model.Feed{
							Href:  resolved,
							Title: getAttr(n, "title"),
							Type:  typ,
						})
					}
				}
			}
		}

	case "a":
		if href := getAttr(n, "href"); href != "" {
			if resolved := p.resolveURL(href); resolved != "" {
				result.Links = append(result.Links, model.LinkInfo{
					Text: NormalizeText(textContent(n)),
					URL:  resolved,
				})
			}
		}
	}
}

// resolveURL resolves a relative URL against the base URL. Script, mail,
// telephone and data links resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// textContent concatenates the text nodes under n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// NormalizeText applies Unicode NFC and collapses whitespace runs.
// Anchor text from clicks and from captures goes through it so both
// compare equal.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
