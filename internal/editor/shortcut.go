package editor

import (
	"regexp"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
)

// Key はエディタが解釈するキー入力。
type Key string

// キーの定義。
const (
	KeyEnter     Key = "enter"
	KeySpace     Key = "space"
	KeyBackspace Key = "backspace"
	KeySlash     Key = "slash"
	KeyEscape    Key = "escape"
)

// ShortcutTarget はショートカットで作るブロックの種別。
type ShortcutTarget string

// ショートカットの変換先。
const (
	TargetH1            ShortcutTarget = "h1"
	TargetH2            ShortcutTarget = "h2"
	TargetBlockquote    ShortcutTarget = "blockquote"
	TargetCode          ShortcutTarget = "code"
	TargetUnorderedList ShortcutTarget = "unordered_list"
	TargetOrderedList   ShortcutTarget = "ordered_list"
)

// Shortcut は検出されたMarkdownショートカット。
// PrefixLenは行頭から取り除く記号部分のルーン数。
type Shortcut struct {
	Target    ShortcutTarget
	PrefixLen int
}

type shortcutRule struct {
	re     *regexp.Regexp
	target ShortcutTarget
}

// スペースキーのルールは行全体が記号のみの場合に一致する。
var spaceRules = []shortcutRule{
	{regexp.MustCompile(`^-\s?$`), TargetUnorderedList},
	{regexp.MustCompile(`^1\.\s?$`), TargetOrderedList},
}

// Enterキーのルールは評価順に意味がある。"##" は "#" より先に判定する。
var enterRules = []shortcutRule{
	{regexp.MustCompile(`^##\s`), TargetH2},
	{regexp.MustCompile(`^#\s`), TargetH1},
	{regexp.MustCompile(`^>\s`), TargetBlockquote},
	{regexp.MustCompile(`^-\s`), TargetUnorderedList},
	{regexp.MustCompile(`^1\.\s`), TargetOrderedList},
}

// DetectShortcut はキー入力と行頭からキャレットまでのテキストから
// Markdownショートカットを判定する。
func DetectShortcut(key Key, lineText string) (Shortcut, bool) {
	switch key {
	case KeySpace:
		for _, r := range spaceRules {
			if r.re.MatchString(lineText) {
				return Shortcut{Target: r.target, PrefixLen: len([]rune(lineText))}, true
			}
		}
	case KeyEnter:
		for _, r := range enterRules {
			if loc := r.re.FindStringIndex(lineText); loc != nil {
				return Shortcut{Target: r.target, PrefixLen: len([]rune(lineText[:loc[1]]))}, true
			}
		}
		if strings.TrimSpace(lineText) == "```" {
			return Shortcut{Target: TargetCode, PrefixLen: len([]rune(lineText))}, true
		}
	}
	return Shortcut{}, false
}

// HandleKey はキー入力を処理する。
// Markdownショートカットが成立した場合はブロック変換を行いtrueを返す。
// それ以外はキーの既定動作（分割、空白入力、削除、メニュー開閉）を行いfalseを返す。
func (e *Editor) HandleKey(key Key) bool {
	switch key {
	case KeyEscape:
		e.menuOpen = false
		return false
	case KeySlash:
		if e.InsertText("/") {
			e.menuOpen = true
		}
		return false
	case KeyBackspace:
		sel, ok := e.selection()
		if !ok {
			return false
		}
		if !sel.Collapsed() {
			e.collapse()
			return false
		}
		e.setCaret(e.doc.Backspace(sel.Focus))
		e.changed()
		return false
	}

	caret, ok := e.collapse()
	if !ok {
		return false
	}

	if e.doc.Blocks[caret.Block].Kind == document.KindParagraph {
		_, lineEnd, before := e.doc.LineAt(caret)
		// スペースのショートカットは行を丸ごと置き換えるため、キャレットが行末にある場合のみ
		if sc, ok := DetectShortcut(key, before); ok && (key != KeySpace || caret.Offset == lineEnd) {
			e.applyShortcut(caret, key, sc)
			e.changed()
			return true
		}
	}

	switch key {
	case KeyEnter:
		e.setCaret(e.doc.SplitAt(caret))
	case KeySpace:
		e.setCaret(e.doc.InsertText(caret, " "))
	default:
		return false
	}
	e.changed()
	return false
}

// applyShortcut は現在行から記号を取り除き、行を変換先のブロックに置き換える。
// 行の前後のテキストは元の段落に残る。
func (e *Editor) applyShortcut(caret document.Position, key Key, sc Shortcut) {
	lineStart, lineEnd, _ := e.doc.LineAt(caret)
	spans, _ := e.doc.Container(caret)

	// スペースキーのショートカットは行を消してから空のリストを作る
	var content []document.Span
	if key == KeyEnter {
		content = document.SliceSpans(spans, lineStart+sc.PrefixLen, lineEnd)
	}

	pos := e.doc.DeleteRange(
		document.Position{Block: caret.Block, Offset: lineStart},
		document.Position{Block: caret.Block, Offset: lineEnd},
	)

	var blk document.Block
	switch sc.Target {
	case TargetH1:
		blk = document.Heading(1, content...)
	case TargetH2:
		blk = document.Heading(2, content...)
	case TargetBlockquote:
		blk = document.Blockquote(content...)
	case TargetCode:
		blk = document.CodeBlock(document.TextOf(content))
	case TargetUnorderedList, TargetOrderedList:
		ordered := sc.Target == TargetOrderedList
		if key == KeyEnter && len(content) > 0 {
			// Enterで確定した項目の次に空項目を用意する
			blk = document.List(ordered, content, nil)
			idx := e.doc.InsertBlocksAt(pos, blk)
			e.setCaret(document.Position{Block: idx, Item: 1})
			return
		}
		blk = document.List(ordered)
		idx := e.doc.InsertBlocksAt(pos, blk)
		e.setCaret(document.Position{Block: idx})
		return
	}

	idx := e.doc.InsertBlocksAt(pos, blk)
	if len(content) == 0 {
		e.setCaret(document.Position{Block: idx})
		return
	}
	e.caretAfter(idx)
}
