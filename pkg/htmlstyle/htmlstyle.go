// Package htmlstyle finds the <style> elements of HTML documents.
package htmlstyle

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var styleSelector = cascadia.MustCompile("style")

// Parser returns the text of every <style> element of a document. The zero
// value is ready to use.
type Parser struct{}

// StyleTexts parses doc and returns the text content of its <style>
// elements in document order. Unparseable input yields no styles.
func (Parser) StyleTexts(doc string) []string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var texts []string
	for _, n := range styleSelector.MatchAll(root) {
		texts = append(texts, textContent(n))
	}
	return texts
}

// textContent concatenates the text nodes below n, like the DOM property
// of the same name.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
