// Package editor はリッチテキストエディタの編集操作を提供する。
//
// Editorは構造化文書と選択を保持し、インライン書式、ブロック変換、
// Markdownショートカット、スラッシュコマンドを適用する。
// 文書を変更した操作はすべてOnChangeコールバックを呼び出す。
// Editorはゴルーチンセーフではない。呼び出し側で操作を直列化すること。
package editor

import (
	"github.com/hitoshi/gemblog/internal/document"
)

// defaultImageAlt は代替テキストの既定値。
const defaultImageAlt = "Imagem"

// Editor は1つの文書に対する編集セッションの状態。
type Editor struct {
	doc      document.Document
	sel      SelectionProvider
	tracker  *Tracker
	onChange func()
	imageAlt func() string
	menuOpen bool
}

// Option はEditorの設定を変更する関数。
type Option func(*Editor)

// WithOnChange は文書の変更ごとに呼ばれるコールバックを設定する。
func WithOnChange(fn func()) Option {
	return func(e *Editor) { e.onChange = fn }
}

// WithImageAlt は画像挿入時の代替テキストの取得元を設定する。
// 空文字列を返した場合は既定値を使う。
func WithImageAlt(fn func() string) Option {
	return func(e *Editor) { e.imageAlt = fn }
}

// New はEditorを生成する。
func New(doc document.Document, sel SelectionProvider, opts ...Option) *Editor {
	doc = doc.Clone()
	doc.Normalize()
	e := &Editor{
		doc:     doc,
		sel:     sel,
		tracker: NewTracker(sel),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document は現在の文書のコピーを返す。
func (e *Editor) Document() document.Document {
	return e.doc.Clone()
}

// SetDocument は文書全体を置き換え、キャレットを末尾に置く。
func (e *Editor) SetDocument(doc document.Document) {
	e.doc = doc.Clone()
	e.doc.Normalize()
	e.menuOpen = false
	e.sel.SetSelection(Caret(e.doc.EndOf(len(e.doc.Blocks) - 1)))
	e.changed()
}

// Snapshot はRestoreで戻すための文書とメニューの状態。
// 選択はSelectionProviderが保持するため含まない。
type Snapshot struct {
	doc      document.Document
	menuOpen bool
}

// Snapshot は現在の文書とメニューの状態を保存する。
func (e *Editor) Snapshot() Snapshot {
	return Snapshot{doc: e.doc.Clone(), menuOpen: e.menuOpen}
}

// Restore はSnapshotの状態に戻す。変更通知は行わない。
func (e *Editor) Restore(snap Snapshot) {
	e.doc = snap.doc.Clone()
	e.menuOpen = snap.menuOpen
}

// State は現在の選択状態を返す。
func (e *Editor) State() TrackerState {
	return e.tracker.Snapshot(e.doc)
}

// SlashMenuOpen はスラッシュコマンドメニューが開いているかどうかを返す。
func (e *Editor) SlashMenuOpen() bool {
	return e.menuOpen
}

// Select は選択を設定する。位置は文書の範囲内に丸める。
func (e *Editor) Select(sel Selection) {
	e.sel.SetSelection(Selection{Anchor: e.doc.Clamp(sel.Anchor), Focus: e.doc.Clamp(sel.Focus)})
}

// InsertText はキャレット位置にテキストを挿入する。範囲選択中は範囲を置き換える。
// 選択がない場合は何もせずfalseを返す。
func (e *Editor) InsertText(text string) bool {
	caret, ok := e.collapse()
	if !ok {
		return false
	}
	if text == "" {
		return true
	}
	e.setCaret(e.doc.InsertText(caret, text))
	e.changed()
	return true
}

// ApplyInline は選択範囲に書式を適用し、キャレットを範囲の末尾に折り畳む。
// 選択がない、またはキャレットのみの場合は何もしない。
func (e *Editor) ApplyInline(style document.Style) bool {
	sel, ok := e.selection()
	if !ok || sel.Collapsed() || !style.Valid() {
		return false
	}
	start, end := sel.Range()
	e.doc.ApplyStyle(start, end, style)
	e.setCaret(end)
	e.changed()
	return true
}

// SetCaption は画像ブロックのキャプションを設定する。
func (e *Editor) SetCaption(block int, caption string) bool {
	if block < 0 || block >= len(e.doc.Blocks) || e.doc.Blocks[block].Kind != document.KindImage {
		return false
	}
	e.doc.Blocks[block].Caption = caption
	e.changed()
	return true
}

// selection は文書の範囲内に丸めた現在の選択を返す。
func (e *Editor) selection() (Selection, bool) {
	sel, ok := e.sel.Selection()
	if !ok {
		return Selection{}, false
	}
	return Selection{Anchor: e.doc.Clamp(sel.Anchor), Focus: e.doc.Clamp(sel.Focus)}, true
}

// collapse は範囲選択を削除してキャレット位置を返す。
func (e *Editor) collapse() (document.Position, bool) {
	sel, ok := e.selection()
	if !ok {
		return document.Position{}, false
	}
	if sel.Collapsed() {
		return sel.Focus, true
	}
	start, end := sel.Range()
	caret := e.doc.DeleteRange(start, end)
	e.setCaret(caret)
	e.changed()
	return caret, true
}

func (e *Editor) setCaret(p document.Position) {
	e.sel.SetSelection(Caret(e.doc.Clamp(p)))
}

// caretAfter はブロックidxの直後にキャレットを置く。
// 直後にテキストを持つブロックがない場合は空段落を追加する。
func (e *Editor) caretAfter(idx int) {
	next := idx + 1
	if next >= len(e.doc.Blocks) || e.doc.Blocks[next].IsAtomic() {
		e.doc.Blocks = append(e.doc.Blocks[:next:next], append([]document.Block{document.Paragraph()}, e.doc.Blocks[next:]...)...)
	}
	e.setCaret(document.Position{Block: next})
}

func (e *Editor) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

func (e *Editor) altText() string {
	if e.imageAlt != nil {
		if alt := e.imageAlt(); alt != "" {
			return alt
		}
	}
	return defaultImageAlt
}
