package htmlconv

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/markdown"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ToHTML は文書をHTMLに変換する。空の段落は出力しない。
// テキストと属性値はエスケープされる。
func ToHTML(doc document.Document) string {
	var buf bytes.Buffer
	for _, blk := range doc.Blocks {
		n := renderBlock(blk)
		if n == nil {
			continue
		}
		// bytes.Bufferへの書き込みは失敗しない
		_ = html.Render(&buf, n)
		buf.WriteByte('\n')
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// MarkdownToHTML はMarkdownをHTMLに変換する。
func MarkdownToHTML(md string) string {
	return ToHTML(markdown.FromMarkdown(md))
}

func renderBlock(blk document.Block) *html.Node {
	switch blk.Kind {
	case document.KindHeading:
		level := blk.Level
		if level < 1 || level > 3 {
			level = 1
		}
		tag := "h" + strconv.Itoa(level)
		n := element(atom.Lookup([]byte(tag)), tag)
		appendInline(n, blk.Spans)
		return n
	case document.KindBlockquote:
		n := element(atom.Blockquote, "blockquote")
		appendInline(n, blk.Spans)
		return n
	case document.KindCode:
		pre := element(atom.Pre, "pre")
		code := element(atom.Code, "code")
		code.AppendChild(text(document.TextOf(blk.Spans)))
		pre.AppendChild(code)
		return pre
	case document.KindList:
		tag, a := "ul", atom.Ul
		if blk.Ordered {
			tag, a = "ol", atom.Ol
		}
		n := element(a, tag)
		for _, item := range blk.Items {
			li := element(atom.Li, "li")
			appendInline(li, item)
			n.AppendChild(li)
		}
		return n
	case document.KindDivider:
		return element(atom.Hr, "hr")
	case document.KindImage:
		fig := element(atom.Figure, "figure")
		img := element(atom.Img, "img")
		img.Attr = []html.Attribute{{Key: "src", Val: blk.Src}, {Key: "alt", Val: blk.Alt}}
		fig.AppendChild(img)
		if blk.Caption != "" {
			figcap := element(atom.Figcaption, "figcaption")
			figcap.AppendChild(text(blk.Caption))
			fig.AppendChild(figcap)
		}
		return fig
	default:
		if document.RuneLen(blk.Spans) == 0 {
			return nil
		}
		n := element(atom.P, "p")
		appendInline(n, blk.Spans)
		return n
	}
}

// appendInline はSpan列を子ノードとして追加する。改行は<br>にする。
func appendInline(parent *html.Node, spans []document.Span) {
	for _, s := range spans {
		lines := strings.Split(s.Text, "\n")
		for i, line := range lines {
			if i > 0 {
				parent.AppendChild(element(atom.Br, "br"))
			}
			if line == "" {
				continue
			}
			parent.AppendChild(styled(s.Style, line))
		}
	}
}

func styled(style document.Style, s string) *html.Node {
	var n *html.Node
	switch style {
	case document.StyleBold:
		n = element(atom.Strong, "strong")
	case document.StyleItalic:
		n = element(atom.Em, "em")
	case document.StyleCode:
		n = element(atom.Code, "code")
	default:
		return text(s)
	}
	n.AppendChild(text(s))
	return n
}

func element(a atom.Atom, tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
