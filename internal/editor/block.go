package editor

import (
	"fmt"

	"github.com/hitoshi/gemblog/internal/document"
)

// BlockType はブロック変換の対象種別。
type BlockType string

// ブロック変換の対象種別の定義。
const (
	BlockH1    BlockType = "h1"
	BlockH2    BlockType = "h2"
	BlockH3    BlockType = "h3"
	BlockQuote BlockType = "blockquote"
	BlockCode  BlockType = "code"
)

// ParseBlockType は文字列をBlockTypeに変換する。
func ParseBlockType(s string) (BlockType, error) {
	switch bt := BlockType(s); bt {
	case BlockH1, BlockH2, BlockH3, BlockQuote, BlockCode:
		return bt, nil
	}
	return "", fmt.Errorf("unknown block type: %q", s)
}

// build は行の内容からブロックを組み立てる。
// 見出しは1行にまとめ、引用とコードブロックは改行で連結する。
func (bt BlockType) build(lines [][]document.Span) document.Block {
	switch bt {
	case BlockH1:
		return document.Heading(1, document.JoinLines(lines, " ")...)
	case BlockH2:
		return document.Heading(2, document.JoinLines(lines, " ")...)
	case BlockH3:
		return document.Heading(3, document.JoinLines(lines, " ")...)
	case BlockQuote:
		return document.Blockquote(document.JoinLines(lines, "\n")...)
	default:
		return document.CodeBlock(document.TextOf(document.JoinLines(lines, "\n")))
	}
}

// TransformBlock は選択範囲を指定種別のブロックに変換する。
//   - 範囲選択: 選択テキストで新しいブロックを作り、範囲と置き換える。キャレットはブロックの直後
//   - キャレットのみ: キャレット位置に空のブロックを作り、キャレットをその中に置く
//   - 選択なし: 何もしない
func (e *Editor) TransformBlock(bt BlockType) bool {
	sel, ok := e.selection()
	if !ok {
		return false
	}
	if sel.Collapsed() {
		idx := e.doc.InsertBlocksAt(sel.Focus, bt.build(nil))
		e.setCaret(document.Position{Block: idx})
		e.changed()
		return true
	}

	start, end := sel.Range()
	lines := e.doc.Fragment(start, end)
	caret := e.doc.DeleteRange(start, end)
	idx := e.doc.InsertBlocksAt(caret, bt.build(lines))
	e.caretAfter(idx)
	e.changed()
	return true
}

// MakeList は選択範囲をリストに変換する。選択テキストの各行が1項目になる。
// キャレットのみの場合は空項目1つのリストを作り、キャレットを項目内に置く。
func (e *Editor) MakeList(ordered bool) bool {
	sel, ok := e.selection()
	if !ok {
		return false
	}
	if sel.Collapsed() {
		idx := e.doc.InsertBlocksAt(sel.Focus, document.List(ordered))
		e.setCaret(document.Position{Block: idx})
		e.changed()
		return true
	}

	start, end := sel.Range()
	var items [][]document.Span
	for _, line := range e.doc.Fragment(start, end) {
		if len(line) > 0 {
			items = append(items, line)
		}
	}
	caret := e.doc.DeleteRange(start, end)
	idx := e.doc.InsertBlocksAt(caret, document.List(ordered, items...))
	e.caretAfter(idx)
	e.changed()
	return true
}

// InsertDivider は選択の末尾に区切り線を挿入し、キャレットをその直後に置く。
func (e *Editor) InsertDivider() bool {
	return e.insertAtomic(document.Divider())
}

// InsertImage は選択の末尾に画像ブロックを挿入する。
// altが空の場合は記事タイトル、それもなければ既定値を代替テキストにする。
// キャプションは空で作成し、SetCaptionで編集する。
func (e *Editor) InsertImage(src, alt string) bool {
	if src == "" {
		return false
	}
	if alt == "" {
		alt = e.altText()
	}
	return e.insertAtomic(document.Image(src, alt, ""))
}

func (e *Editor) insertAtomic(b document.Block) bool {
	sel, ok := e.selection()
	if !ok {
		return false
	}
	_, end := sel.Range()
	idx := e.doc.InsertBlocksAt(end, b)
	e.caretAfter(idx)
	e.changed()
	return true
}
