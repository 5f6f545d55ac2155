// Package document はエディタが編集する構造化文書（ブロックツリー）を提供する。
//
// 文書はブロックの列で、段落・見出し・引用・コードブロックはSpan列を、
// リストは項目ごとのSpan列を保持する。区切り線と画像はテキストを持たない
// アトミックなブロックとして扱う。位置はブロック番号・リスト項目番号・
// ルーンオフセットの組で表す。
package document

import "strings"

// Kind はブロックの種類を表す。
type Kind string

// ブロック種別の定義。
const (
	KindParagraph  Kind = "paragraph"
	KindHeading    Kind = "heading"
	KindBlockquote Kind = "blockquote"
	KindCode       Kind = "code"
	KindList       Kind = "list"
	KindDivider    Kind = "divider"
	KindImage      Kind = "image"
)

// Block は文書の1ブロック。
type Block struct {
	Kind    Kind     `json:"kind"`
	Level   int      `json:"level,omitempty"`   // 見出しレベル（1〜3）
	Ordered bool     `json:"ordered,omitempty"` // 番号付きリスト
	Spans   []Span   `json:"spans,omitempty"`   // テキストブロックの内容
	Items   [][]Span `json:"items,omitempty"`   // リスト項目
	Src     string   `json:"src,omitempty"`     // 画像URL
	Alt     string   `json:"alt,omitempty"`
	Caption string   `json:"caption,omitempty"`
}

// Paragraph は段落ブロックを生成する。
func Paragraph(spans ...Span) Block {
	return Block{Kind: KindParagraph, Spans: NormalizeSpans(spans)}
}

// Heading は見出しブロックを生成する。
func Heading(level int, spans ...Span) Block {
	return Block{Kind: KindHeading, Level: level, Spans: NormalizeSpans(spans)}
}

// Blockquote は引用ブロックを生成する。
func Blockquote(spans ...Span) Block {
	return Block{Kind: KindBlockquote, Spans: NormalizeSpans(spans)}
}

// CodeBlock はコードブロックを生成する。コードブロック内の書式は保持しない。
func CodeBlock(code string) Block {
	return Block{Kind: KindCode, Spans: Plain(code)}
}

// List はリストブロックを生成する。項目が空の場合は空項目を1つ持つ。
func List(ordered bool, items ...[]Span) Block {
	if len(items) == 0 {
		items = [][]Span{nil}
	}
	return Block{Kind: KindList, Ordered: ordered, Items: items}
}

// Divider は区切り線ブロックを生成する。
func Divider() Block {
	return Block{Kind: KindDivider}
}

// Image は画像ブロックを生成する。
func Image(src, alt, caption string) Block {
	return Block{Kind: KindImage, Src: src, Alt: alt, Caption: caption}
}

// IsText はブロックがSpan列を直接保持するテキストブロックかどうかを返す。
func (b Block) IsText() bool {
	switch b.Kind {
	case KindParagraph, KindHeading, KindBlockquote, KindCode:
		return true
	}
	return false
}

// IsAtomic はブロックがテキストを持たないアトミックブロックかどうかを返す。
func (b Block) IsAtomic() bool {
	return b.Kind == KindDivider || b.Kind == KindImage
}

// Clone はブロックのディープコピーを返す。
func (b Block) Clone() Block {
	c := b
	c.Spans = cloneSpans(b.Spans)
	if b.Items != nil {
		c.Items = make([][]Span, len(b.Items))
		for i, it := range b.Items {
			c.Items[i] = cloneSpans(it)
		}
	}
	return c
}

// Text はテキストブロックの内容、またはリスト項目を改行で連結した内容を返す。
func (b Block) Text() string {
	switch {
	case b.IsText():
		return TextOf(b.Spans)
	case b.Kind == KindList:
		return TextOf(JoinLines(b.Items, "\n"))
	}
	return ""
}

// Document はブロックの列からなる文書。
type Document struct {
	Blocks []Block `json:"blocks"`
}

// New はブロック列から文書を生成し、正規化する。
func New(blocks ...Block) Document {
	d := Document{Blocks: blocks}
	d.Normalize()
	return d
}

// Clone は文書のディープコピーを返す。
func (d Document) Clone() Document {
	c := Document{Blocks: make([]Block, len(d.Blocks))}
	for i, b := range d.Blocks {
		c.Blocks[i] = b.Clone()
	}
	return c
}

// IsEmpty は文書に意味のある内容がないかどうかを返す。
// 空白だけのブロックからなる文書は空とみなす。
func (d Document) IsEmpty() bool {
	for _, b := range d.Blocks {
		if b.IsAtomic() {
			return false
		}
		if strings.TrimSpace(b.Text()) != "" {
			return false
		}
	}
	return true
}

// Normalize は編集可能な状態を保証する。
// ブロックが1つもない場合は空段落を追加し、リストの空配列を補う。
func (d *Document) Normalize() {
	if len(d.Blocks) == 0 {
		d.Blocks = []Block{Paragraph()}
	}
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Kind == KindList && len(b.Items) == 0 {
			b.Items = [][]Span{nil}
		}
		if b.Kind == KindHeading && (b.Level < 1 || b.Level > 3) {
			b.Level = 1
		}
		b.Spans = NormalizeSpans(b.Spans)
	}
}

// FirstImageSrc は文書中で最初に現れる画像のURLを返す。画像がない場合は空文字列。
func (d Document) FirstImageSrc() string {
	for _, b := range d.Blocks {
		if b.Kind == KindImage && b.Src != "" {
			return b.Src
		}
	}
	return ""
}
