// Package htmlconv はエディタのHTMLと構造化文書の相互変換を提供する。
//
// FromHTMLはエディタが送るHTMLを許可リストでサニタイズしてから解析し、
// 未知の要素はテキストとして扱う。ToHTMLは公開ページとエディタの初期表示に使う。
package htmlconv

import (
	"regexp"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/markdown"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// importPolicy はエディタHTMLの取り込み時に使う許可リスト。
// 文書ツリーに対応するタグと、画像のsrc/altのみを通す。
var importPolicy = newImportPolicy()

func newImportPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "div", "br", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"ul", "ol", "li", "hr",
		"figure", "figcaption",
		"strong", "b", "em", "i",
	)
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("http", "https")
	p.AllowDataURIImages()
	p.AllowRelativeURLs(false)
	return p
}

var spaceRun = regexp.MustCompile(`[ \t\r\n]+`)

// FromHTML はエディタのHTMLを文書に変換する。解析できない入力でも空でない文書を返す。
func FromHTML(raw string) document.Document {
	clean := importPolicy.Sanitize(raw)
	nodes, err := html.ParseFragment(strings.NewReader(clean), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return document.New(document.Paragraph(document.Plain(clean)...))
	}

	var b builder
	for _, n := range nodes {
		b.block(n)
	}
	b.flush()

	doc := document.New(b.blocks...)
	doc.Normalize()
	return doc
}

// HTMLToMarkdown はエディタのHTMLをMarkdownに変換する。
func HTMLToMarkdown(raw string) string {
	return markdown.ToMarkdown(FromHTML(raw))
}

// builder はトップレベルのノードを順にブロックへ変換する。
// ブロック要素の外にあるテキストとインライン要素はpendingに溜めて段落にする。
type builder struct {
	blocks  []document.Block
	pending []document.Span
}

func (b *builder) flush() {
	spans := trimSpans(b.pending)
	b.pending = nil
	if len(spans) > 0 {
		b.blocks = append(b.blocks, document.Paragraph(spans...))
	}
}

func (b *builder) add(blk document.Block) {
	b.flush()
	b.blocks = append(b.blocks, blk)
}

func (b *builder) block(n *html.Node) {
	if n.Type == html.TextNode {
		b.pending = append(b.pending, inlineText(n.Data, document.StylePlain)...)
		return
	}
	if n.Type != html.ElementNode {
		return
	}

	switch n.DataAtom {
	case atom.H1:
		b.add(document.Heading(1, trimSpans(inline(n, document.StylePlain))...))
	case atom.H2:
		b.add(document.Heading(2, trimSpans(inline(n, document.StylePlain))...))
	case atom.H3, atom.H4, atom.H5, atom.H6:
		b.add(document.Heading(3, trimSpans(inline(n, document.StylePlain))...))
	case atom.Blockquote:
		b.add(document.Blockquote(trimSpans(inline(n, document.StylePlain))...))
	case atom.Pre:
		b.add(document.CodeBlock(strings.Trim(textContent(n), "\n")))
	case atom.Ul, atom.Ol:
		b.add(list(n))
	case atom.Hr:
		b.add(document.Divider())
	case atom.Img:
		if src := attr(n, "src"); src != "" {
			b.add(document.Image(src, attr(n, "alt"), ""))
		}
	case atom.Figure:
		if img := figure(n); img != nil {
			b.add(*img)
		}
	case atom.Br:
		b.flush()
	case atom.P, atom.Div:
		if hasBlockChild(n) {
			b.flush()
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				b.block(c)
			}
			b.flush()
			return
		}
		b.add(document.Paragraph(trimSpans(inline(n, document.StylePlain))...))
	default:
		b.pending = append(b.pending, inlineNode(n, document.StylePlain)...)
	}
}

// inline は要素の子孫をSpan列に変換する。書式は最も内側の要素のものを使う。
func inline(n *html.Node, style document.Style) []document.Span {
	var out []document.Span
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.P || c.DataAtom == atom.Div || c.DataAtom == atom.Li) {
			// 引用内の段落などは改行で区切る
			out = trimSpans(out)
			if len(out) > 0 {
				out = append(out, document.Span{Text: "\n", Style: style})
			}
			out = append(out, trimSpans(inline(c, style))...)
			continue
		}
		out = append(out, inlineNode(c, style)...)
	}
	return document.NormalizeSpans(out)
}

// inlineNode は1つのノードをSpan列に変換する。
func inlineNode(n *html.Node, style document.Style) []document.Span {
	switch n.Type {
	case html.TextNode:
		return inlineText(n.Data, style)
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Strong, atom.B:
			return inline(n, document.StyleBold)
		case atom.Em, atom.I:
			return inline(n, document.StyleItalic)
		case atom.Code:
			return []document.Span{{Text: textContent(n), Style: document.StyleCode}}
		case atom.Br:
			return []document.Span{{Text: "\n", Style: style}}
		}
		return inline(n, style)
	}
	return nil
}

func inlineText(s string, style document.Style) []document.Span {
	s = spaceRun.ReplaceAllString(s, " ")
	if s == "" {
		return nil
	}
	return []document.Span{{Text: s, Style: style}}
}

func list(n *html.Node) document.Block {
	var items [][]document.Span
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			items = append(items, trimSpans(inline(c, document.StylePlain)))
		}
	}
	return document.List(n.DataAtom == atom.Ol, items...)
}

func figure(n *html.Node) *document.Block {
	var src, alt, caption string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Img:
				if src == "" {
					src, alt = attr(c, "src"), attr(c, "alt")
				}
			case atom.Figcaption:
				caption = strings.TrimSpace(spaceRun.ReplaceAllString(textContent(c), " "))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	if src == "" {
		return nil
	}
	img := document.Image(src, alt, caption)
	return &img
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
			atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Hr, atom.Figure, atom.Img:
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// trimSpans は先頭と末尾の空白を取り除く。
func trimSpans(spans []document.Span) []document.Span {
	spans = document.NormalizeSpans(spans)
	for len(spans) > 0 {
		spans[0].Text = strings.TrimLeft(spans[0].Text, " ")
		if spans[0].Text != "" {
			break
		}
		spans = spans[1:]
	}
	for len(spans) > 0 {
		last := len(spans) - 1
		spans[last].Text = strings.TrimRight(spans[last].Text, " ")
		if spans[last].Text != "" {
			break
		}
		spans = spans[:last]
	}
	return spans
}
