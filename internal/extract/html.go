package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Elements whose content is never spoken.
const silentSelector = "head, title, script, style, noscript, template, svg, img, picture, video, audio, iframe, object, form, button, input, select, textarea"

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"center": true, "dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true, "tr": true,
	"ul": true,
}

func (e *Extractor) renderHTML(source string) ([]string, error) {
	if e.opts.Readability {
		article, err := readability.FromReader(strings.NewReader(source), nil)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			if paragraphs, err := renderDocument(article.Content); err == nil && len(paragraphs) > 0 {
				return paragraphs, nil
			}
		}
	}
	return renderDocument(source)
}

func renderDocument(source string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find(silentSelector).Remove()
	doc.Find("*").FilterFunction(isHidden).Remove()

	var b paragraphBuilder
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	renderNodes(root, &b)
	b.flush()
	return b.paragraphs, nil
}

func renderNodes(sel *goquery.Selection, b *paragraphBuilder) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			b.write(node.Text())
		case strings.HasPrefix(name, "#"):
			// comments and doctype
		case name == "a":
			if looksLikeURL(strings.TrimSpace(node.Text())) {
				return
			}
			renderNodes(node, b)
		case blockElements[name]:
			b.flush()
			renderNodes(node, b)
			b.flush()
		default:
			renderNodes(node, b)
		}
	})
}

// isHidden matches elements a mail client would not display, including
// tracking pixels sized 1x1 or 0x0.
func isHidden(_ int, sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	if v, _ := sel.Attr("aria-hidden"); strings.EqualFold(v, "true") {
		return true
	}
	style, _ := sel.Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") ||
		strings.Contains(style, "max-height:0") || strings.Contains(style, "font-size:0") {
		return true
	}
	width, _ := sel.Attr("width")
	height, _ := sel.Attr("height")
	return isPixel(width) && isPixel(height)
}

func isPixel(v string) bool {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	return v == "0" || v == "1"
}

type paragraphBuilder struct {
	current    strings.Builder
	paragraphs []string
}

func (b *paragraphBuilder) write(s string) {
	b.current.WriteString(s)
}

func (b *paragraphBuilder) flush() {
	if text := strings.TrimSpace(b.current.String()); text != "" {
		b.paragraphs = append(b.paragraphs, text)
	}
	b.current.Reset()
}
